package prediction

import (
	"github.com/banshee-data/prediction.engine/internal/config"
	"github.com/banshee-data/prediction.engine/internal/evaluator"
	"github.com/banshee-data/prediction.engine/internal/monitoring"
	"github.com/banshee-data/prediction.engine/internal/obstacle"
	"github.com/banshee-data/prediction.engine/internal/semantic"
)

// Engine owns one prediction pipeline: the obstacle and ego-pose
// containers, the strategy registry wired from config, the occupancy
// grid when the semantic map is enabled, and the dispatcher. One
// RunCycle call processes one perception cycle end to end.
//
// The engine itself is not safe for concurrent RunCycle calls; callers
// serialize cycles, which perception's own cadence already guarantees.
type Engine struct {
	mode            string
	semanticEnabled bool
	egoProfile      EgoProfile

	obstacles *obstacle.Container
	egoPose   *obstacle.PoseContainer

	registry   *evaluator.Registry
	policy     *Policy
	dispatcher *Dispatcher
	grid       *semantic.GridBuilder
	sink       FrameSink
	stats      *Stats
}

// NewEngine wires a pipeline from validated config. sink may be nil, in
// which case frame environments are built but not persisted. Strategy
// registration happens here: every routed type, plus the grid-backed
// junction strategy whenever the semantic map is on.
func NewEngine(cfg *config.PredictionConfig, sink FrameSink) *Engine {
	mode := cfg.GetOperatingMode()
	e := &Engine{
		mode:            mode,
		semanticEnabled: cfg.GetSemanticMap(),
		egoProfile: EgoProfile{
			Length: cfg.GetEgoLength(),
			Width:  cfg.GetEgoWidth(),
			Height: cfg.GetEgoHeight(),
		},
		obstacles: obstacle.NewContainer(obstacle.ContainerConfig{
			HistoryCapacity:       cfg.GetHistoryCapacity(),
			StillSpeedThreshold:   cfg.GetStillSpeedThreshold(),
			JunctionExitProximity: obstacle.DefaultJunctionExitProximity,
			StaleAfterSeconds:     cfg.GetStaleAfter().Seconds(),
			EgoID:                 cfg.GetEgoVehicleID(),
		}),
		egoPose: obstacle.NewPoseContainer(),
		sink:    sink,
		stats:   NewStats(),
	}

	if e.semanticEnabled {
		e.grid = semantic.NewGridBuilder(semantic.DefaultConfig())
	}

	e.registry = evaluator.NewRegistry(evaluator.Deps{Grid: e.grid})
	e.policy = NewPolicy(cfg.Routes, mode == config.ModeDataCollection)
	for _, t := range e.policy.Types() {
		e.registry.Register(t)
	}
	if e.semanticEnabled {
		if _, ok := e.registry.Lookup(evaluator.TypeJunctionMap); !ok {
			e.registry.Register(evaluator.TypeJunctionMap)
		}
	}

	e.dispatcher = NewDispatcher(e.registry, e.policy, e.stats, DispatcherConfig{
		CautionWorkers: cfg.GetCautionWorkers(),
		NormalWorkers:  cfg.GetNormalWorkers(),
		MultiThread:    cfg.GetMultiThread(),
	})
	return e
}

// Obstacles returns the engine's obstacle container for ingestion and
// inspection.
func (e *Engine) Obstacles() *obstacle.Container {
	return e.obstacles
}

// EgoPose returns the engine's ego pose container.
func (e *Engine) EgoPose() *obstacle.PoseContainer {
	return e.egoPose
}

// Registry returns the strategy registry, for stats listings.
func (e *Engine) Registry() *evaluator.Registry {
	return e.registry
}

// Grid returns the occupancy grid builder, or nil when the semantic map
// is disabled.
func (e *Engine) Grid() *semantic.GridBuilder {
	return e.grid
}

// Stats returns the engine's cycle counters.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// Close releases the dispatch workers. The engine cannot run further
// cycles afterwards.
func (e *Engine) Close() {
	e.dispatcher.Stop()
}

// ProcessFrame ingests one perception frame and runs the cycle it
// opens: container bookkeeping, then RunCycle.
func (e *Engine) ProcessFrame(frame *PerceptionFrame) error {
	if err := frame.Validate(); err != nil {
		return err
	}

	e.obstacles.StartCycle(frame.Timestamp)
	if frame.EgoPose != nil {
		e.egoPose.Update(*frame.EgoPose)
		e.obstacles.Insert(frame.EgoPose.ToFeature(e.obstacles.EgoID()), obstacle.TypeVehicle, obstacle.PriorityNormal)
	}
	for _, po := range frame.Obstacles {
		e.obstacles.Insert(po.Feature, po.Type, po.Priority)
	}

	e.RunCycle()
	return nil
}

// RunCycle processes the currently open cycle. When the semantic map is
// enabled or the engine runs in frame-dump mode, the cycle first
// snapshots obstacle histories; frame-dump cycles stop there, semantic
// cycles feed the snapshot into the occupancy grid before dispatching.
func (e *Engine) RunCycle() {
	timestamp := e.obstacles.CycleTimestamp()

	if e.semanticEnabled || e.mode == config.ModeFrameDump {
		histories := BuildHistoryMap(e.obstacles, e.egoProfile)
		frameEnv := BuildFrameEnvironment(timestamp, e.obstacles.EgoID(), histories)
		if e.sink != nil {
			if err := e.sink.InsertFrameEnv(frameEnv); err != nil {
				monitoring.Logf("prediction: frame sink rejected cycle %v: %v", timestamp, err)
			} else {
				e.stats.AddFrameOut()
			}
		}
		if e.mode == config.ModeFrameDump {
			e.stats.AddCycle()
			return
		}
		e.grid.RunFrame(timestamp, histories, e.egoCenter(histories))
	}

	scene := &Scene{
		Timestamp: timestamp,
		Obstacles: e.obstacles,
		Env:       e.buildEnvironment(timestamp),
	}
	e.dispatcher.Dispatch(scene)
	e.stats.AddCycle()
}

// egoCenter picks the grid center: the ego's newest snapshot record,
// falling back to the live pose, then to the origin.
func (e *Engine) egoCenter(histories map[int]obstacle.History) obstacle.Point {
	if hist, ok := histories[e.obstacles.EgoID()]; ok && len(hist.Records) > 0 {
		return hist.Records[0].Position
	}
	if pose, ok := e.egoPose.Pose(); ok {
		return pose.Position
	}
	return obstacle.Point{}
}

func (e *Engine) buildEnvironment(timestamp float64) *obstacle.DynamicEnvironment {
	pose, ok := e.egoPose.Pose()
	if !ok {
		return nil
	}
	return obstacle.BuildDynamicEnvironment(e.obstacles, pose, timestamp)
}
