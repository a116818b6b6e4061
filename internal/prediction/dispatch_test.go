package prediction

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/prediction.engine/internal/evaluator"
	"github.com/banshee-data/prediction.engine/internal/obstacle"
	"github.com/banshee-data/prediction.engine/internal/semantic"
)

// laneFeature returns a moving on-lane feature for id.
func laneFeature(id int) obstacle.Feature {
	return obstacle.Feature{
		ObstacleID: id,
		Timestamp:  100.0,
		Position:   obstacle.Point{X: float64(id), Y: 0},
		Velocity:   obstacle.Point{X: 5, Y: 0},
		Speed:      5,
		LaneID:     "lane-1",
	}
}

// junctionFeature returns a moving in-junction feature with no known
// exit distance.
func junctionFeature(id int) obstacle.Feature {
	f := laneFeature(id)
	f.LaneID = ""
	f.JunctionID = "junction-1"
	f.JunctionExitDistance = -1
	f.Position = obstacle.Point{X: 0.5, Y: 0.5}
	return f
}

// newScene returns a cycle-open container wrapped in a scene.
func newScene() *Scene {
	c := obstacle.NewContainer(obstacle.DefaultContainerConfig())
	c.StartCycle(100.0)
	return &Scene{Timestamp: 100.0, Obstacles: c}
}

// newDispatcher wires a dispatcher over the standard routes. When grid
// is non-nil the grid-backed junction strategy is registered against it;
// registerJunctionMap registers it gridless to exercise the declining
// path.
func newDispatcher(grid *semantic.GridBuilder, registerJunctionMap bool, cfg DispatcherConfig) (*Dispatcher, *Stats) {
	reg := evaluator.NewRegistry(evaluator.Deps{Grid: grid})
	policy := NewPolicy(standardRoutes(), false)
	for _, typ := range policy.Types() {
		reg.Register(typ)
	}
	if grid != nil || registerJunctionMap {
		reg.Register(evaluator.TypeJunctionMap)
	}
	stats := NewStats()
	return NewDispatcher(reg, policy, stats, cfg), stats
}

// TestPartitionPriorityLanes verifies the bucket arithmetic that keeps
// cautioned obstacles on their own workers: with one caution worker and
// three normal workers, a cautioned obstacle hashes into bucket 0 and
// normal obstacle 2 lands in bucket 2 mod 3 + 1 = 3. Ignored obstacles
// never reach a bucket.
func TestPartitionPriorityLanes(t *testing.T) {
	t.Parallel()

	d, stats := newDispatcher(nil, false, DispatcherConfig{CautionWorkers: 1, NormalWorkers: 3})
	scene := newScene()
	scene.Obstacles.Insert(junctionFeature(1), obstacle.TypeVehicle, obstacle.PriorityCaution)
	scene.Obstacles.Insert(laneFeature(2), obstacle.TypeVehicle, obstacle.PriorityNormal)
	scene.Obstacles.Insert(laneFeature(3), obstacle.TypePedestrian, obstacle.PriorityNormal)
	scene.Obstacles.Insert(laneFeature(4), obstacle.TypeVehicle, obstacle.PriorityIgnore)

	buckets := d.partition(scene)
	require.Len(t, buckets, 4)

	require.Len(t, buckets[0], 1, "caution lane")
	assert.Equal(t, 1, buckets[0][0].ID)
	require.Len(t, buckets[3], 1)
	assert.Equal(t, 2, buckets[3][0].ID)
	require.Len(t, buckets[1], 1, "pedestrian still partitions; dispatch skips it later")
	assert.Equal(t, 3, buckets[1][0].ID)
	assert.Empty(t, buckets[2])

	snap := stats.GetAndReset()
	assert.Equal(t, int64(1), snap.Skipped, "the ignored obstacle")
}

// TestDispatchDecisionTree walks every branch of the routing tree using
// the prediction source as the witness for which strategy ran.
func TestDispatchDecisionTree(t *testing.T) {
	t.Parallel()

	seq := DispatcherConfig{CautionWorkers: 1, NormalWorkers: 1}

	t.Run("vehicle on lane", func(t *testing.T) {
		t.Parallel()
		d, stats := newDispatcher(nil, false, seq)
		scene := newScene()
		obs := scene.Obstacles.Insert(laneFeature(10), obstacle.TypeVehicle, obstacle.PriorityNormal)
		d.Dispatch(scene)
		assert.Equal(t, string(evaluator.TypeCruiseMLP), obs.Prediction.Source)
		assert.Equal(t, int64(1), stats.GetAndReset().Produced)
	})

	t.Run("vehicle near junction exit is lane traffic", func(t *testing.T) {
		t.Parallel()
		d, _ := newDispatcher(nil, false, seq)
		scene := newScene()
		f := laneFeature(11)
		f.JunctionID = "junction-1"
		f.JunctionExitDistance = 5
		obs := scene.Obstacles.Insert(f, obstacle.TypeVehicle, obstacle.PriorityCaution)
		require.True(t, obs.NearJunctionExit)
		d.Dispatch(scene)
		assert.Equal(t, string(evaluator.TypeCruiseMLP), obs.Prediction.Source)
	})

	t.Run("normal vehicle in junction skips the grid strategy", func(t *testing.T) {
		t.Parallel()
		grid := semantic.NewGridBuilder(semantic.DefaultConfig())
		d, _ := newDispatcher(grid, false, seq)
		scene := newScene()
		obs := scene.Obstacles.Insert(junctionFeature(12), obstacle.TypeVehicle, obstacle.PriorityNormal)
		d.Dispatch(scene)
		assert.Equal(t, string(evaluator.TypeJunctionMLP), obs.Prediction.Source)
	})

	t.Run("caution vehicle falls back when grid strategy declines", func(t *testing.T) {
		t.Parallel()
		d, stats := newDispatcher(nil, true, seq)
		scene := newScene()
		obs := scene.Obstacles.Insert(junctionFeature(13), obstacle.TypeVehicle, obstacle.PriorityCaution)
		d.Dispatch(scene)
		assert.Equal(t, string(evaluator.TypeJunctionMLP), obs.Prediction.Source)
		snap := stats.GetAndReset()
		assert.Equal(t, int64(1), snap.Produced, "the fallback is the single terminal outcome")
		assert.Zero(t, snap.Declined)
	})

	t.Run("caution vehicle uses the grid when it has coverage", func(t *testing.T) {
		t.Parallel()
		grid := semantic.NewGridBuilder(semantic.Config{CellSize: 1, Radius: 20})
		records := make([]obstacle.HistoryRecord, 0)
		for x := 0; x <= 8; x++ {
			for y := -2; y <= 2; y++ {
				records = append(records, obstacle.HistoryRecord{
					ObstacleID: 900,
					Position:   obstacle.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5},
				})
			}
		}
		grid.RunFrame(99.0, map[int]obstacle.History{900: {Records: records}}, obstacle.Point{})

		d, _ := newDispatcher(grid, false, seq)
		scene := newScene()
		obs := scene.Obstacles.Insert(junctionFeature(14), obstacle.TypeVehicle, obstacle.PriorityCaution)
		d.Dispatch(scene)
		assert.Equal(t, string(evaluator.TypeJunctionMap), obs.Prediction.Source)
	})

	t.Run("bicycle on lane", func(t *testing.T) {
		t.Parallel()
		d, _ := newDispatcher(nil, false, seq)
		scene := newScene()
		obs := scene.Obstacles.Insert(laneFeature(15), obstacle.TypeBicycle, obstacle.PriorityNormal)
		d.Dispatch(scene)
		assert.Equal(t, string(evaluator.TypeCyclistKeepLane), obs.Prediction.Source)
	})

	t.Run("bicycle off lane is skipped", func(t *testing.T) {
		t.Parallel()
		d, stats := newDispatcher(nil, false, seq)
		scene := newScene()
		f := laneFeature(16)
		f.LaneID = ""
		obs := scene.Obstacles.Insert(f, obstacle.TypeBicycle, obstacle.PriorityNormal)
		d.Dispatch(scene)
		assert.Empty(t, obs.Prediction.Source)
		assert.Equal(t, int64(1), stats.GetAndReset().Skipped)
	})

	t.Run("pedestrian is never evaluated", func(t *testing.T) {
		t.Parallel()
		d, stats := newDispatcher(nil, false, seq)
		scene := newScene()
		obs := scene.Obstacles.Insert(laneFeature(17), obstacle.TypePedestrian, obstacle.PriorityNormal)
		d.Dispatch(scene)
		assert.Empty(t, obs.Prediction.Source)
		snap := stats.GetAndReset()
		assert.Zero(t, snap.Produced)
		assert.Equal(t, int64(1), snap.Skipped)
	})

	t.Run("unknown class on lane takes the default route", func(t *testing.T) {
		t.Parallel()
		d, _ := newDispatcher(nil, false, seq)
		scene := newScene()
		obs := scene.Obstacles.Insert(laneFeature(18), obstacle.TypeUnknown, obstacle.PriorityNormal)
		d.Dispatch(scene)
		assert.Equal(t, string(evaluator.TypeCost), obs.Prediction.Source)
	})

	t.Run("vehicle in no context is skipped with a diagnostic", func(t *testing.T) {
		t.Parallel()
		d, stats := newDispatcher(nil, false, seq)
		scene := newScene()
		f := laneFeature(19)
		f.LaneID = ""
		obs := scene.Obstacles.Insert(f, obstacle.TypeVehicle, obstacle.PriorityNormal)
		d.Dispatch(scene)
		assert.Empty(t, obs.Prediction.Source)
		assert.Equal(t, int64(1), stats.GetAndReset().Skipped)
	})
}

// TestDispatchAdmission verifies the shared drop rules ahead of the
// decision tree.
func TestDispatchAdmission(t *testing.T) {
	t.Parallel()

	d, stats := newDispatcher(nil, false, DispatcherConfig{CautionWorkers: 1, NormalWorkers: 1})
	scene := newScene()
	scene.Obstacles.Insert(laneFeature(-7), obstacle.TypeVehicle, obstacle.PriorityNormal)
	scene.Obstacles.Insert(laneFeature(20), obstacle.TypeVehicle, obstacle.PriorityIgnore)
	still := laneFeature(21)
	still.Speed = 0.2
	still.Velocity = obstacle.Point{X: 0.2, Y: 0}
	scene.Obstacles.Insert(still, obstacle.TypeVehicle, obstacle.PriorityNormal)
	good := scene.Obstacles.Insert(laneFeature(22), obstacle.TypeVehicle, obstacle.PriorityNormal)

	d.Dispatch(scene)

	snap := stats.GetAndReset()
	assert.Equal(t, int64(3), snap.Skipped, "negative id, ignored, stationary")
	assert.Equal(t, int64(1), snap.Produced)
	assert.Equal(t, string(evaluator.TypeCruiseMLP), good.Prediction.Source)
}

// TestDispatchPanicsOnUnresolvedRoute verifies a missing route or an
// unregistered routed strategy is fatal rather than silently skipped.
func TestDispatchPanicsOnUnresolvedRoute(t *testing.T) {
	t.Parallel()

	t.Run("empty slot", func(t *testing.T) {
		t.Parallel()
		reg := evaluator.NewRegistry(evaluator.Deps{})
		policy := NewPolicy(nil, false)
		d := NewDispatcher(reg, policy, NewStats(), DispatcherConfig{CautionWorkers: 1, NormalWorkers: 1})
		scene := newScene()
		scene.Obstacles.Insert(laneFeature(30), obstacle.TypeVehicle, obstacle.PriorityNormal)
		require.Panics(t, func() { d.Dispatch(scene) })
	})

	t.Run("routed but unregistered", func(t *testing.T) {
		t.Parallel()
		reg := evaluator.NewRegistry(evaluator.Deps{})
		policy := NewPolicy(standardRoutes(), false)
		d := NewDispatcher(reg, policy, NewStats(), DispatcherConfig{CautionWorkers: 1, NormalWorkers: 1})
		scene := newScene()
		scene.Obstacles.Insert(laneFeature(31), obstacle.TypeVehicle, obstacle.PriorityNormal)
		require.Panics(t, func() { d.Dispatch(scene) })
	})
}

// TestDispatchEnvironmentAware verifies the lane-scanning strategy
// receives the dynamic environment when the scene carries one.
func TestDispatchEnvironmentAware(t *testing.T) {
	t.Parallel()

	reg := evaluator.NewRegistry(evaluator.Deps{})
	policy := NewPolicy(standardRoutes(), true)
	for _, typ := range policy.Types() {
		reg.Register(typ)
	}
	stats := NewStats()
	d := NewDispatcher(reg, policy, stats, DispatcherConfig{CautionWorkers: 1, NormalWorkers: 1})

	scene := newScene()
	obs := scene.Obstacles.Insert(laneFeature(40), obstacle.TypeVehicle, obstacle.PriorityNormal)
	scene.Obstacles.Insert(laneFeature(41), obstacle.TypeVehicle, obstacle.PriorityNormal)
	pose := obstacle.Pose{Position: obstacle.Point{X: 0, Y: 0}, Timestamp: 100.0}
	scene.Env = obstacle.BuildDynamicEnvironment(scene.Obstacles, pose, 100.0)

	d.Dispatch(scene)

	require.Equal(t, string(evaluator.TypeLaneScanning), obs.Prediction.Source)
	require.NotEmpty(t, obs.Prediction.FeatureTensor)
	neighborSpeed := obs.Prediction.FeatureTensor[6]
	assert.Equal(t, 5.0, neighborSpeed, "neighbor 41 encoded into the tensor")
}

// TestDispatchParallelMatchesSequential verifies MultiThread changes
// throughput, never outcomes.
func TestDispatchParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	populate := func(scene *Scene) map[int]*obstacle.Obstacle {
		out := make(map[int]*obstacle.Obstacle)
		for id := 1; id <= 20; id++ {
			f := laneFeature(id)
			pri := obstacle.PriorityNormal
			if id%5 == 0 {
				pri = obstacle.PriorityCaution
			}
			typ := obstacle.TypeVehicle
			if id%7 == 0 {
				typ = obstacle.TypeBicycle
			}
			out[id] = scene.Obstacles.Insert(f, typ, pri)
		}
		return out
	}

	seqScene := newScene()
	seqObs := populate(seqScene)
	seqD, seqStats := newDispatcher(nil, false, DispatcherConfig{CautionWorkers: 1, NormalWorkers: 1})
	seqD.Dispatch(seqScene)

	parScene := newScene()
	parObs := populate(parScene)
	parD, parStats := newDispatcher(nil, false, DispatcherConfig{CautionWorkers: 2, NormalWorkers: 3, MultiThread: true})
	defer parD.Stop()
	parD.Dispatch(parScene)

	for id, obs := range seqObs {
		assert.Equal(t, obs.Prediction.Source, parObs[id].Prediction.Source, "obstacle %d", id)
	}
	seqSnap := seqStats.GetAndReset()
	parSnap := parStats.GetAndReset()
	seqSnap.Window, parSnap.Window = 0, 0
	if diff := cmp.Diff(seqSnap, parSnap); diff != "" {
		t.Errorf("outcome mismatch (-seq +par):\n%s", diff)
	}
}
