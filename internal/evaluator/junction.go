package evaluator

import (
	"fmt"
	"math"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

const (
	// junctionSectorCount divides the heading circle into equal exit
	// sectors for in-junction intent scoring.
	junctionSectorCount   = 12
	junctionHorizonSecond = 3.0
)

// sectorHeading returns the center heading of sector i in [-pi, pi).
func sectorHeading(i int) float64 {
	h := (float64(i) + 0.5) * 2 * math.Pi / junctionSectorCount
	return math.Atan2(math.Sin(h), math.Cos(h))
}

// sectorOf returns the sector index containing the given heading.
func sectorOf(heading float64) int {
	h := math.Mod(heading, 2*math.Pi)
	if h < 0 {
		h += 2 * math.Pi
	}
	i := int(h / (2 * math.Pi / junctionSectorCount))
	if i >= junctionSectorCount {
		i = junctionSectorCount - 1
	}
	return i
}

// JunctionMLP scores vehicles inside a junction by distributing intent
// over twelve exit sectors around the current travel heading. The best
// aligned sector carries the bulk of the probability mass and its two
// neighbors split the remainder.
type JunctionMLP struct{}

// NewJunctionMLP returns a ready junction evaluator.
func NewJunctionMLP() *JunctionMLP {
	return &JunctionMLP{}
}

// Type implements Evaluator.
func (e *JunctionMLP) Type() Type {
	return TypeJunctionMLP
}

// Evaluate implements Evaluator.
func (e *JunctionMLP) Evaluate(obs *obstacle.Obstacle) (Result, error) {
	latest := obs.LatestFeature()
	if latest == nil {
		return Declined, fmt.Errorf("obstacle %d has no feature history", obs.ID)
	}

	best := sectorOf(latest.Heading)
	weights := make([]float64, 0, 3)
	sectors := []int{best, (best + 1) % junctionSectorCount, (best - 1 + junctionSectorCount) % junctionSectorCount}
	total := 0.0
	for _, s := range sectors {
		d := math.Abs(angleDiff(sectorHeading(s), latest.Heading))
		w := math.Exp(-2 * d)
		weights = append(weights, w)
		total += w
	}

	trajectories := make([]obstacle.Trajectory, 0, len(sectors))
	for i, s := range sectors {
		trajectories = append(trajectories, obstacle.Trajectory{
			Probability: weights[i] / total,
			Points:      headingAlong(latest, sectorHeading(s), junctionHorizonSecond),
		})
	}

	obs.Prediction = obstacle.PredictionOutput{
		Source:       string(TypeJunctionMLP),
		Probability:  weights[0] / total,
		Trajectories: trajectories,
	}
	return Produced, nil
}
