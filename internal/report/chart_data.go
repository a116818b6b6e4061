// Package report prepares and renders debug visualisations for the
// prediction engine: predicted trajectories, the semantic occupancy
// grid, dispatch outcome counters and recorded obstacle traces.
// Data preparation is separated from eCharts rendering for testability.
package report

import (
	"math"

	"github.com/banshee-data/prediction.engine/internal/featurestore"
	"github.com/banshee-data/prediction.engine/internal/obstacle"
	"github.com/banshee-data/prediction.engine/internal/prediction"
	"github.com/banshee-data/prediction.engine/internal/semantic"
	"github.com/banshee-data/prediction.engine/internal/units"
)

// ScatterPoint represents a single point in an XY scatter chart.
type ScatterPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value float64 `json:"value"`
}

// TrajectoriesChartData holds prepared data for the predicted
// trajectories chart.
type TrajectoriesChartData struct {
	Points       []ScatterPoint `json:"points"`
	MaxAbs       float64        `json:"max_abs"`
	NumObstacles int            `json:"num_obstacles"`
	NumPoints    int            `json:"num_points"`
	Timestamp    float64        `json:"timestamp"`
	MeanSpeed    float64        `json:"mean_speed"`
	SpeedUnits   string         `json:"speed_units"`
}

// GridChartData holds prepared data for the occupancy grid chart.
type GridChartData struct {
	Points    []ScatterPoint `json:"points"`
	MaxAbs    float64        `json:"max_abs"`
	MaxHits   float64        `json:"max_hits"`
	Timestamp float64        `json:"timestamp"`
	NumCells  int            `json:"num_cells"`
}

// TraceChartData holds prepared data for the recorded trace chart.
type TraceChartData struct {
	Points       []ScatterPoint `json:"points"`
	MaxAbs       float64        `json:"max_abs"`
	MinTime      float64        `json:"min_time"`
	MaxTime      float64        `json:"max_time"`
	RunID        string         `json:"run_id"`
	NumObstacles int            `json:"num_obstacles"`
	NumPoints    int            `json:"num_points"`
	Stride       int            `json:"stride"`
}

// OutcomeMetrics holds dispatch outcome counters for chart display.
type OutcomeMetrics struct {
	Cycles        int64   `json:"cycles"`
	Produced      int64   `json:"produced"`
	Declined      int64   `json:"declined"`
	Failed        int64   `json:"failed"`
	Skipped       int64   `json:"skipped"`
	FramesOut     int64   `json:"frames_out"`
	WindowSeconds float64 `json:"window_seconds"`
}

// PrepareTrajectoriesChartData flattens the committed prediction of
// every considered obstacle into scatter points valued by trajectory
// probability. Mean obstacle speed is converted to displayUnits for the
// chart subtitle; invalid units fall back to m/s.
func PrepareTrajectoriesChartData(c *obstacle.Container, displayUnits string) *TrajectoriesChartData {
	if !units.IsValid(displayUnits) {
		displayUnits = units.MPS
	}

	data := &TrajectoriesChartData{
		Points:     []ScatterPoint{},
		Timestamp:  c.CycleTimestamp(),
		SpeedUnits: displayUnits,
	}

	speedSum := 0.0
	speedCount := 0
	maxAbs := 0.0
	for _, id := range c.ConsideredIDs() {
		obs := c.Get(id)
		if obs == nil || len(obs.Prediction.Trajectories) == 0 {
			continue
		}
		data.NumObstacles++

		if f := obs.LatestFeature(); f != nil {
			speedSum += f.Speed
			speedCount++
		}

		for _, traj := range obs.Prediction.Trajectories {
			for _, pt := range traj.Points {
				x := pt.Position.X
				y := pt.Position.Y
				if math.Abs(x) > maxAbs {
					maxAbs = math.Abs(x)
				}
				if math.Abs(y) > maxAbs {
					maxAbs = math.Abs(y)
				}
				data.Points = append(data.Points, ScatterPoint{X: x, Y: y, Value: traj.Probability})
			}
		}
	}

	// Add padding so points at the edges are visible
	if maxAbs > 0 {
		maxAbs *= 1.05
	} else {
		maxAbs = 1.0
	}
	data.MaxAbs = maxAbs
	data.NumPoints = len(data.Points)

	if speedCount > 0 {
		data.MeanSpeed = units.ConvertSpeed(speedSum/float64(speedCount), displayUnits)
	}
	return data
}

// PrepareGridChartData transforms the published occupancy grid into
// scatter chart data valued by per-cell hit counts.
func PrepareGridChartData(snap *semantic.Snapshot) *GridChartData {
	data := &GridChartData{Points: []ScatterPoint{}}
	if snap == nil {
		data.MaxAbs = 1.0
		data.MaxHits = 1.0
		return data
	}
	data.Timestamp = snap.Timestamp

	maxAbs := 0.0
	maxHits := 0.0
	for _, cell := range snap.OccupiedCells() {
		x := cell.Position.X
		y := cell.Position.Y
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(y) > maxAbs {
			maxAbs = math.Abs(y)
		}
		hits := float64(cell.Hits)
		if hits > maxHits {
			maxHits = hits
		}
		data.Points = append(data.Points, ScatterPoint{X: x, Y: y, Value: hits})
	}

	if maxAbs > 0 {
		maxAbs *= 1.05
	} else {
		maxAbs = 1.0
	}
	if maxHits == 0 {
		maxHits = 1.0
	}
	data.MaxAbs = maxAbs
	data.MaxHits = maxHits
	data.NumCells = len(data.Points)
	return data
}

// PrepareTraceChartData transforms recorded trace points into scatter
// chart data valued by observation time, downsampled by stride to stay
// within maxPoints.
func PrepareTraceChartData(points []featurestore.TracePoint, runID string, maxPoints int) *TraceChartData {
	data := &TraceChartData{
		Points: []ScatterPoint{},
		RunID:  runID,
		Stride: 1,
	}
	if len(points) == 0 {
		data.MaxAbs = 1.0
		return data
	}

	if maxPoints <= 0 {
		maxPoints = 8000
	}
	stride := 1
	if len(points) > maxPoints {
		stride = int(math.Ceil(float64(len(points)) / float64(maxPoints)))
	}
	data.Stride = stride

	ids := make(map[int]struct{})
	maxAbs := 0.0
	minTime := math.Inf(1)
	maxTime := math.Inf(-1)
	for i := 0; i < len(points); i += stride {
		p := points[i]
		ids[p.ObstacleID] = struct{}{}
		if math.Abs(p.X) > maxAbs {
			maxAbs = math.Abs(p.X)
		}
		if math.Abs(p.Y) > maxAbs {
			maxAbs = math.Abs(p.Y)
		}
		if p.Timestamp < minTime {
			minTime = p.Timestamp
		}
		if p.Timestamp > maxTime {
			maxTime = p.Timestamp
		}
		data.Points = append(data.Points, ScatterPoint{X: p.X, Y: p.Y, Value: p.Timestamp})
	}

	if maxAbs > 0 {
		maxAbs *= 1.05
	} else {
		maxAbs = 1.0
	}
	data.MaxAbs = maxAbs
	data.MinTime = minTime
	data.MaxTime = maxTime
	data.NumObstacles = len(ids)
	data.NumPoints = len(data.Points)
	return data
}

// PrepareOutcomeMetrics transforms a stats snapshot into chart-ready
// format.
func PrepareOutcomeMetrics(snap prediction.StatsSnapshot) *OutcomeMetrics {
	return &OutcomeMetrics{
		Cycles:        snap.Cycles,
		Produced:      snap.Produced,
		Declined:      snap.Declined,
		Failed:        snap.Failed,
		Skipped:       snap.Skipped,
		FramesOut:     snap.FramesOut,
		WindowSeconds: snap.Window.Seconds(),
	}
}
