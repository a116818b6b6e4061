package evaluator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// trackedObstacle builds an obstacle of the given type with n features of
// straight travel along +X at 5 m/s, one feature per 100ms.
func trackedObstacle(id int, typ obstacle.ObstacleType, n int) *obstacle.Obstacle {
	obs := obstacle.NewObstacle(id, typ, obstacle.DefaultHistoryCapacity)
	for i := 0; i < n; i++ {
		t := float64(i) * 0.1
		obs.AppendFeature(obstacle.Feature{
			ObstacleID: id,
			Timestamp:  100.0 + t,
			Position:   obstacle.Point{X: 5.0 * t, Y: 0},
			Velocity:   obstacle.Point{X: 5.0, Y: 0},
			Speed:      5.0,
			Heading:    0,
		})
	}
	return obs
}

// turningObstacle builds a vehicle whose heading sweeps across n features.
func turningObstacle(id int, n int, sweep float64) *obstacle.Obstacle {
	obs := obstacle.NewObstacle(id, obstacle.TypeVehicle, obstacle.DefaultHistoryCapacity)
	for i := 0; i < n; i++ {
		h := sweep * float64(i) / float64(n-1)
		obs.AppendFeature(obstacle.Feature{
			ObstacleID: id,
			Timestamp:  100.0 + float64(i)*0.1,
			Position:   obstacle.Point{X: float64(i), Y: 0},
			Velocity:   obstacle.Point{X: 5 * math.Cos(h), Y: 5 * math.Sin(h)},
			Speed:      5.0,
			Heading:    h,
		})
	}
	return obs
}

// TestCruiseMLP verifies the lane-keep probability responds to heading
// stability and that the trajectory rolls out from the latest pose.
func TestCruiseMLP(t *testing.T) {
	t.Parallel()
	ev := NewCruiseMLP()
	assert.Equal(t, TypeCruiseMLP, ev.Type())

	t.Run("straight travel scores high", func(t *testing.T) {
		t.Parallel()
		obs := trackedObstacle(1, obstacle.TypeVehicle, 8)
		res, err := ev.Evaluate(obs)
		require.NoError(t, err)
		require.Equal(t, Produced, res)

		assert.Equal(t, string(TypeCruiseMLP), obs.Prediction.Source)
		assert.Greater(t, obs.Prediction.Probability, 0.9)
		require.Len(t, obs.Prediction.Trajectories, 1)

		points := obs.Prediction.Trajectories[0].Points
		require.NotEmpty(t, points)
		latest := obs.LatestFeature()
		assert.Equal(t, latest.Position.X, points[0].Position.X)
		assert.InDelta(t, 6.0, points[len(points)-1].RelativeTime, 1e-9)
	})

	t.Run("turning scores lower than straight", func(t *testing.T) {
		t.Parallel()
		straight := trackedObstacle(2, obstacle.TypeVehicle, 8)
		turning := turningObstacle(3, 8, math.Pi/2)
		_, err := ev.Evaluate(straight)
		require.NoError(t, err)
		_, err = ev.Evaluate(turning)
		require.NoError(t, err)
		assert.Less(t, turning.Prediction.Probability, straight.Prediction.Probability)
	})

	t.Run("no history is an error", func(t *testing.T) {
		t.Parallel()
		obs := obstacle.NewObstacle(4, obstacle.TypeVehicle, 10)
		res, err := ev.Evaluate(obs)
		assert.Error(t, err)
		assert.Equal(t, Declined, res)
		assert.Empty(t, obs.Prediction.Trajectories)
	})
}

// TestJunctionMLP verifies the sector intent distribution: three
// hypotheses, normalized probabilities, primary sector best aligned with
// the current heading.
func TestJunctionMLP(t *testing.T) {
	t.Parallel()
	ev := NewJunctionMLP()
	assert.Equal(t, TypeJunctionMLP, ev.Type())

	obs := trackedObstacle(7, obstacle.TypeVehicle, 5)
	res, err := ev.Evaluate(obs)
	require.NoError(t, err)
	require.Equal(t, Produced, res)

	trajectories := obs.Prediction.Trajectories
	require.Len(t, trajectories, 3)

	sum := 0.0
	for _, tr := range trajectories {
		sum += tr.Probability
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	assert.GreaterOrEqual(t, trajectories[0].Probability, trajectories[1].Probability)
	assert.GreaterOrEqual(t, trajectories[0].Probability, trajectories[2].Probability)
	assert.Equal(t, trajectories[0].Probability, obs.Prediction.Probability)

	// Heading 0 sits in sector 0; its center heading is pi/12.
	require.NotEmpty(t, trajectories[0].Points)
	assert.InDelta(t, math.Pi/12, trajectories[0].Points[0].Heading, 1e-9)
}

// TestCyclistKeepLane verifies cyclists score like vehicles but with a
// shorter horizon.
func TestCyclistKeepLane(t *testing.T) {
	t.Parallel()
	ev := NewCyclistKeepLane()
	assert.Equal(t, TypeCyclistKeepLane, ev.Type())

	obs := trackedObstacle(11, obstacle.TypeBicycle, 6)
	res, err := ev.Evaluate(obs)
	require.NoError(t, err)
	require.Equal(t, Produced, res)

	require.Len(t, obs.Prediction.Trajectories, 1)
	points := obs.Prediction.Trajectories[0].Points
	require.NotEmpty(t, points)
	assert.InDelta(t, 5.0, points[len(points)-1].RelativeTime, 1e-9)
	assert.Greater(t, obs.Prediction.Probability, 0.5)
}

// TestPedestrianInteraction verifies velocity smoothing over the recent
// window: a jittery track still rolls out along its mean velocity.
func TestPedestrianInteraction(t *testing.T) {
	t.Parallel()
	ev := NewPedestrianInteraction()
	assert.Equal(t, TypePedestrianInteraction, ev.Type())

	obs := obstacle.NewObstacle(21, obstacle.TypePedestrian, 10)
	jitter := []float64{1.4, 0.6, 1.3, 0.7, 1.0}
	for i, vx := range jitter {
		obs.AppendFeature(obstacle.Feature{
			ObstacleID: 21,
			Timestamp:  50.0 + float64(i)*0.1,
			Position:   obstacle.Point{X: float64(i) * 0.1, Y: 0},
			Velocity:   obstacle.Point{X: vx, Y: 0},
			Speed:      vx,
		})
	}

	res, err := ev.Evaluate(obs)
	require.NoError(t, err)
	require.Equal(t, Produced, res)

	points := obs.Prediction.Trajectories[0].Points
	require.NotEmpty(t, points)
	last := points[len(points)-1]
	// Mean vx is 1.0, so 4 seconds out the rollout has advanced ~4m
	// beyond the latest position regardless of the final frame's jitter.
	latest := obs.LatestFeature()
	assert.InDelta(t, latest.Position.X+4.0, last.Position.X, 1e-9)
}

// TestCost verifies the fallback strategy produces for any class and
// gains confidence with history depth.
func TestCost(t *testing.T) {
	t.Parallel()
	ev := NewCost()
	assert.Equal(t, TypeCost, ev.Type())

	shallow := trackedObstacle(31, obstacle.TypeUnknown, 1)
	deep := trackedObstacle(32, obstacle.TypeUnknown, 9)
	_, err := ev.Evaluate(shallow)
	require.NoError(t, err)
	_, err = ev.Evaluate(deep)
	require.NoError(t, err)

	assert.Greater(t, deep.Prediction.Probability, shallow.Prediction.Probability)
	assert.Equal(t, string(TypeCost), deep.Prediction.Source)
}

// TestMLP verifies the legacy lane evaluator still produces with its
// shorter horizon.
func TestMLP(t *testing.T) {
	t.Parallel()
	ev := NewMLP()
	assert.Equal(t, TypeMLP, ev.Type())

	obs := trackedObstacle(41, obstacle.TypeVehicle, 5)
	res, err := ev.Evaluate(obs)
	require.NoError(t, err)
	require.Equal(t, Produced, res)
	points := obs.Prediction.Trajectories[0].Points
	require.NotEmpty(t, points)
	assert.InDelta(t, 3.0, points[len(points)-1].RelativeTime, 1e-9)
}

// TestLaneScanning verifies the environment-aware path encodes neighbors
// into the feature tensor and that density lowers the keep probability.
func TestLaneScanning(t *testing.T) {
	t.Parallel()
	ev := NewLaneScanning()
	assert.Equal(t, TypeLaneScanning, ev.Type())

	t.Run("without environment", func(t *testing.T) {
		t.Parallel()
		obs := trackedObstacle(51, obstacle.TypeVehicle, 5)
		res, err := ev.Evaluate(obs)
		require.NoError(t, err)
		require.Equal(t, Produced, res)

		tensor := obs.Prediction.FeatureTensor
		require.Len(t, tensor, laneScanSelfValues+laneScanNeighborSlots*laneScanValuesPerSlot)
		assert.Equal(t, 5.0, tensor[0], "own speed leads the tensor")
		for _, v := range tensor[laneScanSelfValues:] {
			assert.Zero(t, v, "neighbor slots stay zero-padded without an environment")
		}
	})

	t.Run("with neighbors", func(t *testing.T) {
		t.Parallel()
		obs := trackedObstacle(52, obstacle.TypeVehicle, 5)
		n1 := trackedObstacle(53, obstacle.TypeVehicle, 3)
		n2 := trackedObstacle(54, obstacle.TypeVehicle, 3)
		env := &obstacle.DynamicEnvironment{
			Neighbors: []*obstacle.Obstacle{obs, n1, n2},
		}

		res, err := ev.EvaluateWithEnvironment(obs, env)
		require.NoError(t, err)
		require.Equal(t, Produced, res)

		tensor := obs.Prediction.FeatureTensor
		// The obstacle itself is skipped; two neighbor slots are filled.
		assert.NotZero(t, tensor[laneScanSelfValues+2], "first neighbor speed")
		assert.NotZero(t, tensor[laneScanSelfValues+laneScanValuesPerSlot+2], "second neighbor speed")

		solo := trackedObstacle(55, obstacle.TypeVehicle, 5)
		_, err = ev.EvaluateWithEnvironment(solo, &obstacle.DynamicEnvironment{})
		require.NoError(t, err)
		assert.Less(t, obs.Prediction.Probability, solo.Prediction.Probability,
			"denser traffic lowers keep probability")
	})
}
