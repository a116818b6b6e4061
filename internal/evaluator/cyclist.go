package evaluator

import (
	"fmt"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

const (
	cyclistHorizonSeconds = 5.0
	cyclistStabilityGain  = 3.0
	cyclistStabilityBias  = 2.0
)

// CyclistKeepLane scores on-lane cyclists. Cyclists corner harder than
// vehicles, so the keep probability degrades faster with heading spread
// and the horizon is shorter than the cruise strategy's.
type CyclistKeepLane struct{}

// NewCyclistKeepLane returns a ready cyclist evaluator.
func NewCyclistKeepLane() *CyclistKeepLane {
	return &CyclistKeepLane{}
}

// Type implements Evaluator.
func (e *CyclistKeepLane) Type() Type {
	return TypeCyclistKeepLane
}

// Evaluate implements Evaluator.
func (e *CyclistKeepLane) Evaluate(obs *obstacle.Obstacle) (Result, error) {
	latest := obs.LatestFeature()
	if latest == nil {
		return Declined, fmt.Errorf("obstacle %d has no feature history", obs.ID)
	}
	spread := headingSpread(obs.History(), 4)
	keepProb := logistic(cyclistStabilityBias - cyclistStabilityGain*spread)

	obs.Prediction = obstacle.PredictionOutput{
		Source:      string(TypeCyclistKeepLane),
		Probability: keepProb,
		Trajectories: []obstacle.Trajectory{{
			Probability: keepProb,
			Points:      extrapolate(latest, cyclistHorizonSeconds),
		}},
	}
	return Produced, nil
}
