package prediction

import (
	"fmt"

	"github.com/banshee-data/prediction.engine/internal/evaluator"
	"github.com/banshee-data/prediction.engine/internal/monitoring"
	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// Scene is the per-cycle context handed through dispatch to the
// strategies: the cycle clock, the obstacle container the ids resolve
// against, and the optional dynamic environment for context-aware
// strategies.
type Scene struct {
	Timestamp float64
	Obstacles *obstacle.Container
	// Env is nil when no ego pose was available this cycle.
	Env *obstacle.DynamicEnvironment
}

// DispatcherConfig sizes the worker pool. CautionWorkers isolates
// cautioned obstacles from bulk traffic; the remaining workers share the
// normal-priority load.
type DispatcherConfig struct {
	CautionWorkers int
	NormalWorkers  int
	MultiThread    bool
}

// Dispatcher walks a cycle's considered obstacles, decides per obstacle
// which strategy applies, runs it and classifies the outcome. All
// dispatch diagnostics are emitted here, never inside the strategies.
type Dispatcher struct {
	registry *evaluator.Registry
	policy   *Policy
	stats    *Stats

	cautionWorkers int
	normalWorkers  int
	pool           *workerPool
}

// NewDispatcher builds a dispatcher. With cfg.MultiThread set it starts
// the long-lived worker pool; otherwise dispatch runs on the caller's
// goroutine.
func NewDispatcher(registry *evaluator.Registry, policy *Policy, stats *Stats, cfg DispatcherConfig) *Dispatcher {
	if cfg.CautionWorkers < 1 {
		cfg.CautionWorkers = 1
	}
	if cfg.NormalWorkers < 1 {
		cfg.NormalWorkers = 1
	}
	d := &Dispatcher{
		registry:       registry,
		policy:         policy,
		stats:          stats,
		cautionWorkers: cfg.CautionWorkers,
		normalWorkers:  cfg.NormalWorkers,
	}
	if cfg.MultiThread {
		d.pool = newWorkerPool(cfg.CautionWorkers + cfg.NormalWorkers)
	}
	return d
}

// Stop shuts the worker pool down. No-op in sequential mode.
func (d *Dispatcher) Stop() {
	if d.pool != nil {
		d.pool.stop()
	}
}

// Dispatch evaluates every admissible obstacle in the scene and blocks
// until all of them have been handled.
func (d *Dispatcher) Dispatch(scene *Scene) {
	if d.pool != nil {
		d.dispatchParallel(scene)
		return
	}
	for _, id := range scene.Obstacles.ConsideredIDs() {
		obs, ok := d.admit(scene, id)
		if !ok {
			continue
		}
		d.EvaluateObstacle(scene, obs)
	}
}

// admit applies the shared drop rules: synthetic ids, ids with no
// backing obstacle, ignored priorities and stationary obstacles never
// reach a strategy. Both dispatch paths admit identically so switching
// MultiThread never changes which obstacles get predictions.
func (d *Dispatcher) admit(scene *Scene, id int) (*obstacle.Obstacle, bool) {
	if id < 0 {
		monitoring.Logf("prediction: skipping invalid obstacle id %d", id)
		d.stats.AddSkipped()
		return nil, false
	}
	obs := scene.Obstacles.Get(id)
	if obs == nil {
		monitoring.Logf("prediction: obstacle %d missing from container", id)
		d.stats.AddSkipped()
		return nil, false
	}
	if obs.Priority == obstacle.PriorityIgnore || obs.Stationary {
		d.stats.AddSkipped()
		return nil, false
	}
	return obs, true
}

// partition groups admitted obstacles into worker buckets. Cautioned
// obstacles hash over the caution workers only; everything else hashes
// over the normal workers. The id hash pins an obstacle to one bucket,
// which is the no-lock guarantee strategies rely on.
func (d *Dispatcher) partition(scene *Scene) [][]*obstacle.Obstacle {
	buckets := make([][]*obstacle.Obstacle, d.cautionWorkers+d.normalWorkers)
	for _, id := range scene.Obstacles.ConsideredIDs() {
		obs, ok := d.admit(scene, id)
		if !ok {
			continue
		}
		var b int
		if obs.Priority == obstacle.PriorityCaution {
			b = id % d.cautionWorkers
		} else {
			b = id%d.normalWorkers + d.cautionWorkers
		}
		buckets[b] = append(buckets[b], obs)
	}
	return buckets
}

func (d *Dispatcher) dispatchParallel(scene *Scene) {
	buckets := d.partition(scene)
	jobs := make([]func(), len(buckets))
	for i, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		bucket := bucket
		jobs[i] = func() {
			for _, obs := range bucket {
				d.EvaluateObstacle(scene, obs)
			}
		}
	}
	d.pool.run(jobs)
}

// EvaluateObstacle routes one admitted obstacle through the decision
// tree. Cautioned vehicles deep in a junction try the grid-backed
// strategy first and fall back to the configured junction route when it
// declines. Vehicles near a junction exit are evaluated as lane
// traffic again.
func (d *Dispatcher) EvaluateObstacle(scene *Scene, obs *obstacle.Obstacle) {
	switch obs.Type {
	case obstacle.TypeVehicle:
		switch {
		case obs.InJunction && !obs.NearJunctionExit:
			if obs.Priority == obstacle.PriorityCaution && d.tryJunctionMap(obs) {
				return
			}
			d.runRoute(scene, obs, d.policy.VehicleInJunction())
		case obs.OnLane:
			d.runRoute(scene, obs, d.policy.VehicleOnLane())
		default:
			monitoring.Logf("prediction: vehicle %d is neither on lane nor in junction, skipping", obs.ID)
			d.stats.AddSkipped()
		}
	case obstacle.TypeBicycle:
		if obs.OnLane {
			d.runRoute(scene, obs, d.policy.CyclistOnLane())
			return
		}
		d.stats.AddSkipped()
	case obstacle.TypePedestrian:
		// Pedestrians are not routed; the interaction strategy stays
		// registered for data-collection runs only.
		d.stats.AddSkipped()
	default:
		if obs.OnLane {
			d.runRoute(scene, obs, d.policy.DefaultOnLane())
			return
		}
		d.stats.AddSkipped()
	}
}

// tryJunctionMap runs the grid-backed junction strategy and reports
// whether the obstacle was handled. A decline returns false so the
// caller falls back; produced and failed are both terminal.
func (d *Dispatcher) tryJunctionMap(obs *obstacle.Obstacle) bool {
	ev, ok := d.registry.Lookup(evaluator.TypeJunctionMap)
	if !ok {
		return false
	}
	res, err := ev.Evaluate(obs)
	if err != nil {
		d.stats.AddFailed()
		monitoring.Logf("prediction: %s failed on obstacle %d: %v", evaluator.TypeJunctionMap, obs.ID, err)
		return true
	}
	if res == evaluator.Produced {
		d.stats.AddProduced()
		return true
	}
	return false
}

// runRoute resolves the routed strategy, executes it and classifies the
// outcome. An empty or unregistered route means config validation and
// registration drifted apart, which is unrecoverable at dispatch time.
func (d *Dispatcher) runRoute(scene *Scene, obs *obstacle.Obstacle, route evaluator.Type) {
	if route == "" {
		panic(fmt.Sprintf("prediction: no evaluator routed for obstacle %d (type %s)", obs.ID, obs.Type))
	}
	ev, ok := d.registry.Lookup(route)
	if !ok {
		panic(fmt.Sprintf("prediction: evaluator %s is routed but not registered", route))
	}

	var res evaluator.Result
	var err error
	if ea, isAware := ev.(evaluator.EnvironmentAware); isAware && scene.Env != nil {
		res, err = ea.EvaluateWithEnvironment(obs, scene.Env)
	} else {
		res, err = ev.Evaluate(obs)
	}

	switch {
	case err != nil:
		d.stats.AddFailed()
		monitoring.Logf("prediction: %s failed on obstacle %d: %v", route, obs.ID, err)
	case res == evaluator.Produced:
		d.stats.AddProduced()
	default:
		d.stats.AddDeclined()
		monitoring.Logf("prediction: %s declined obstacle %d", route, obs.ID)
	}
}
