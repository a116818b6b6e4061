package prediction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// TestBuildHistoryMap verifies the snapshot window, the ego footprint
// substitution and the trainable marking.
func TestBuildHistoryMap(t *testing.T) {
	t.Parallel()

	c := obstacle.NewContainer(obstacle.DefaultContainerConfig())
	c.StartCycle(115.0)

	// A long-lived vehicle: 15 features, snapshot keeps the newest 10.
	for i := 1; i <= 15; i++ {
		f := laneFeature(1)
		f.Timestamp = 100.0 + float64(i)
		f.Position = obstacle.Point{X: float64(i), Y: 0}
		f.Length = 4.5
		f.Width = 1.9
		f.Polygon = []obstacle.Point{{X: float64(i) - 2, Y: -1}, {X: float64(i) + 2, Y: 1}}
		c.Insert(f, obstacle.TypeVehicle, obstacle.PriorityNormal)
	}
	c.Insert(laneFeature(2), obstacle.TypePedestrian, obstacle.PriorityNormal)
	c.Insert(laneFeature(3), obstacle.TypeVehicle, obstacle.PriorityIgnore)
	still := laneFeature(4)
	still.Speed = 0
	still.Velocity = obstacle.Point{}
	c.Insert(still, obstacle.TypeVehicle, obstacle.PriorityNormal)
	parked := laneFeature(5)
	parked.Speed = 0
	c.Insert(parked, obstacle.TypeUnknown, obstacle.PriorityNormal)

	egoPose := obstacle.Pose{Position: obstacle.Point{X: -3, Y: 0}, Heading: 0.1, Timestamp: 115.0}
	c.Insert(egoPose.ToFeature(c.EgoID()), obstacle.TypeVehicle, obstacle.PriorityNormal)

	profile := EgoProfile{Length: 4.933, Width: 2.11, Height: 1.48}
	histories := BuildHistoryMap(c, profile)

	require.Contains(t, histories, 1)
	require.Contains(t, histories, 2)
	require.Contains(t, histories, 3)
	require.Contains(t, histories, 4)
	require.Contains(t, histories, c.EgoID())
	assert.NotContains(t, histories, 5, "stationary unknowns are not movable")

	t.Run("window and ordering", func(t *testing.T) {
		t.Parallel()
		records := histories[1].Records
		require.Len(t, records, 10)
		assert.Equal(t, 115.0, records[0].Timestamp, "newest first")
		assert.Equal(t, 106.0, records[9].Timestamp)
	})

	t.Run("perceived shape is kept", func(t *testing.T) {
		t.Parallel()
		rec := histories[1].Records[0]
		assert.Equal(t, 4.5, rec.Length)
		assert.Equal(t, 1.9, rec.Width)
		assert.Len(t, rec.Polygon, 2)
	})

	t.Run("ego takes the profile footprint", func(t *testing.T) {
		t.Parallel()
		ego := histories[c.EgoID()]
		require.Len(t, ego.Records, 1)
		assert.Equal(t, 4.933, ego.Records[0].Length)
		assert.Equal(t, 2.11, ego.Records[0].Width)
		assert.Empty(t, ego.Records[0].Polygon)
		assert.False(t, ego.Trainable)
	})

	t.Run("trainable marking", func(t *testing.T) {
		t.Parallel()
		assert.True(t, histories[1].Trainable, "moving normal vehicle")
		assert.False(t, histories[2].Trainable, "pedestrian")
		assert.False(t, histories[3].Trainable, "ignored")
		assert.False(t, histories[4].Trainable, "stationary")
	})
}

// TestBuildFrameEnvironment verifies the ego split and deterministic
// ordering of the rest.
func TestBuildFrameEnvironment(t *testing.T) {
	t.Parallel()

	histories := map[int]obstacle.History{
		9: {Records: []obstacle.HistoryRecord{{ObstacleID: 9}}, Trainable: true},
		2: {Records: []obstacle.HistoryRecord{{ObstacleID: 2}, {ObstacleID: 2}}},
		-1: {Records: []obstacle.HistoryRecord{{ObstacleID: -1}}},
	}
	env := BuildFrameEnvironment(42.5, -1, histories)

	assert.Equal(t, 42.5, env.Timestamp)
	require.Len(t, env.Ego.Records, 1)
	assert.Equal(t, -1, env.Ego.Records[0].ObstacleID)

	require.Len(t, env.Others, 2)
	assert.Equal(t, 2, env.Others[0].Records[0].ObstacleID)
	assert.Equal(t, 9, env.Others[1].Records[0].ObstacleID)

	assert.Equal(t, 4, env.RecordCount())
	assert.Equal(t, 1, env.TrainableCount())
}

// TestBuildFrameEnvironmentNoEgo verifies frames without an ego track
// still assemble.
func TestBuildFrameEnvironmentNoEgo(t *testing.T) {
	t.Parallel()

	histories := map[int]obstacle.History{
		5: {Records: []obstacle.HistoryRecord{{ObstacleID: 5}}},
	}
	env := BuildFrameEnvironment(1.0, -1, histories)
	assert.Empty(t, env.Ego.Records)
	require.Len(t, env.Others, 1)
}
