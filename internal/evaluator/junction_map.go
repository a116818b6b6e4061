package evaluator

import (
	"fmt"
	"math"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
	"github.com/banshee-data/prediction.engine/internal/semantic"
)

const (
	// junctionMapMinCoverage is the occupancy-grid coverage below which
	// the strategy declines and lets the caller fall back.
	junctionMapMinCoverage = 0.05
	junctionMapProbeRadius = 8.0
	junctionMapProbeRange  = 6.0
)

// JunctionMap scores in-junction vehicles against the published
// occupancy grid. It is the preferred junction strategy for cautioned
// obstacles but declines whenever the grid has no meaningful coverage
// around the obstacle, so callers must be prepared to fall back.
type JunctionMap struct {
	grid *semantic.GridBuilder
}

// NewJunctionMap returns a grid-backed junction evaluator. A nil grid is
// allowed; the evaluator then declines every obstacle.
func NewJunctionMap(grid *semantic.GridBuilder) *JunctionMap {
	return &JunctionMap{grid: grid}
}

// Type implements Evaluator.
func (e *JunctionMap) Type() Type {
	return TypeJunctionMap
}

// Evaluate implements Evaluator.
func (e *JunctionMap) Evaluate(obs *obstacle.Obstacle) (Result, error) {
	latest := obs.LatestFeature()
	if latest == nil {
		return Declined, fmt.Errorf("obstacle %d has no feature history", obs.ID)
	}
	if e.grid == nil {
		return Declined, nil
	}
	snap := e.grid.Snapshot()
	if snap == nil {
		return Declined, nil
	}
	coverage := snap.CoverageAround(latest.Position, junctionMapProbeRadius)
	if coverage < junctionMapMinCoverage {
		return Declined, nil
	}

	// Probe each exit sector at a fixed range and weight it by how much
	// history the grid has accumulated in that direction.
	best := -1
	bestHits := 0
	for s := 0; s < junctionSectorCount; s++ {
		h := sectorHeading(s)
		probe := obstacle.Point{
			X: latest.Position.X + junctionMapProbeRange*math.Cos(h),
			Y: latest.Position.Y + junctionMapProbeRange*math.Sin(h),
		}
		hits := snap.HitsAt(probe)
		if hits > bestHits {
			best = s
			bestHits = hits
		}
	}
	if best < 0 {
		// Coverage nearby but nothing along any exit ray.
		return Declined, nil
	}

	obs.Prediction = obstacle.PredictionOutput{
		Source:      string(TypeJunctionMap),
		Probability: coverage,
		Trajectories: []obstacle.Trajectory{{
			Probability: coverage,
			Points:      headingAlong(latest, sectorHeading(best), junctionHorizonSecond),
		}},
	}
	return Produced, nil
}
