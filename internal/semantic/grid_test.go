package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// TestGridBuilderPublish verifies that RunFrame rasterizes history
// records around the ego center and publishes an immutable snapshot.
func TestGridBuilderPublish(t *testing.T) {
	t.Parallel()

	gb := NewGridBuilder(Config{CellSize: 1.0, Radius: 10.0})
	require.Nil(t, gb.Snapshot(), "no snapshot before the first frame")

	histories := map[int]obstacle.History{
		7: {Records: []obstacle.HistoryRecord{
			{ObstacleID: 7, Position: obstacle.Point{X: 3.5, Y: 0.5}},
			{ObstacleID: 7, Position: obstacle.Point{X: 3.5, Y: 0.5}},
		}},
		9: {Records: []obstacle.HistoryRecord{
			{ObstacleID: 9, Position: obstacle.Point{X: -2.5, Y: -2.5}},
		}},
	}
	gb.RunFrame(100.0, histories, obstacle.Point{X: 0, Y: 0})

	snap := gb.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 100.0, snap.Timestamp)
	assert.Equal(t, 20, snap.Cols)

	assert.Equal(t, 2, snap.HitsAt(obstacle.Point{X: 3.5, Y: 0.5}), "two records in the same cell accumulate")
	assert.Equal(t, 1, snap.HitsAt(obstacle.Point{X: -2.5, Y: -2.5}))
	assert.Equal(t, 0, snap.HitsAt(obstacle.Point{X: 8.5, Y: 8.5}), "empty cell")
	assert.Equal(t, 0, snap.HitsAt(obstacle.Point{X: 50, Y: 50}), "outside the grid")
}

// TestGridBuilderPolygonRasterization verifies polygon vertices mark
// cells beyond the record's center position.
func TestGridBuilderPolygonRasterization(t *testing.T) {
	t.Parallel()

	gb := NewGridBuilder(DefaultConfig())
	histories := map[int]obstacle.History{
		3: {Records: []obstacle.HistoryRecord{{
			ObstacleID: 3,
			Position:   obstacle.Point{X: 10.5, Y: 10.5},
			Polygon: []obstacle.Point{
				{X: 8.5, Y: 10.5},
				{X: 12.5, Y: 10.5},
			},
		}}},
	}
	gb.RunFrame(1.0, histories, obstacle.Point{})

	snap := gb.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.HitsAt(obstacle.Point{X: 8.5, Y: 10.5}))
	assert.Equal(t, 1, snap.HitsAt(obstacle.Point{X: 12.5, Y: 10.5}))
}

// TestSnapshotCoverageAround exercises the neighborhood coverage query
// used to decide whether the grid can support an evaluation.
func TestSnapshotCoverageAround(t *testing.T) {
	t.Parallel()

	gb := NewGridBuilder(Config{CellSize: 1.0, Radius: 10.0})
	histories := map[int]obstacle.History{}
	for i := 0; i < 5; i++ {
		histories[i] = obstacle.History{Records: []obstacle.HistoryRecord{
			{ObstacleID: i, Position: obstacle.Point{X: float64(i) + 0.5, Y: 0.5}},
		}}
	}
	gb.RunFrame(2.0, histories, obstacle.Point{})
	snap := gb.Snapshot()
	require.NotNil(t, snap)

	t.Run("dense neighborhood", func(t *testing.T) {
		t.Parallel()
		cov := snap.CoverageAround(obstacle.Point{X: 2.5, Y: 0.5}, 1.0)
		assert.Greater(t, cov, 0.3)
	})

	t.Run("empty neighborhood", func(t *testing.T) {
		t.Parallel()
		cov := snap.CoverageAround(obstacle.Point{X: -8.5, Y: -8.5}, 1.0)
		assert.Equal(t, 0.0, cov)
	})

	t.Run("outside the grid", func(t *testing.T) {
		t.Parallel()
		cov := snap.CoverageAround(obstacle.Point{X: 100, Y: 100}, 1.0)
		assert.Equal(t, 0.0, cov)
	})
}

// TestSnapshotOccupiedCells verifies the occupied-cell listing reports
// world-space cell centers with their accumulated hits.
func TestSnapshotOccupiedCells(t *testing.T) {
	t.Parallel()

	gb := NewGridBuilder(Config{CellSize: 1.0, Radius: 10.0})
	histories := map[int]obstacle.History{
		7: {Records: []obstacle.HistoryRecord{
			{ObstacleID: 7, Position: obstacle.Point{X: 3.2, Y: 0.7}},
			{ObstacleID: 7, Position: obstacle.Point{X: 3.4, Y: 0.1}},
		}},
		9: {Records: []obstacle.HistoryRecord{
			{ObstacleID: 9, Position: obstacle.Point{X: -2.5, Y: -2.5}},
		}},
	}
	gb.RunFrame(100.0, histories, obstacle.Point{})

	cells := gb.Snapshot().OccupiedCells()
	require.Len(t, cells, 2)

	byHits := map[int]obstacle.Point{}
	for _, c := range cells {
		byHits[c.Hits] = c.Position
	}
	assert.Equal(t, obstacle.Point{X: 3.5, Y: 0.5}, byHits[2], "both records share the cell centered at (3.5, 0.5)")
	assert.Equal(t, obstacle.Point{X: -2.5, Y: -2.5}, byHits[1])
}

// TestGridBuilderDefaults verifies invalid dimensions fall back to the
// default grid geometry.
func TestGridBuilderDefaults(t *testing.T) {
	t.Parallel()

	gb := NewGridBuilder(Config{CellSize: -1, Radius: 0})
	gb.RunFrame(1.0, nil, obstacle.Point{})
	snap := gb.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 160, snap.Cols)
}
