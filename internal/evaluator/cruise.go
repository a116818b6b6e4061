package evaluator

import (
	"fmt"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

const (
	cruiseHorizonSeconds = 6.0
	// cruiseStabilityGain scales heading spread into the lane-keep
	// logit. Larger spread pushes the keep probability toward zero.
	cruiseStabilityGain = 4.0
	cruiseStabilityBias = 3.0
)

// CruiseMLP scores lane-following vehicles. The lane-keep probability is
// driven by how straight the vehicle has been tracking over its recent
// history; the emitted trajectory holds the current velocity.
type CruiseMLP struct{}

// NewCruiseMLP returns a ready cruise evaluator.
func NewCruiseMLP() *CruiseMLP {
	return &CruiseMLP{}
}

// Type implements Evaluator.
func (e *CruiseMLP) Type() Type {
	return TypeCruiseMLP
}

// Evaluate implements Evaluator.
func (e *CruiseMLP) Evaluate(obs *obstacle.Obstacle) (Result, error) {
	latest := obs.LatestFeature()
	if latest == nil {
		return Declined, fmt.Errorf("obstacle %d has no feature history", obs.ID)
	}
	spread := headingSpread(obs.History(), 5)
	keepProb := logistic(cruiseStabilityBias - cruiseStabilityGain*spread)

	obs.Prediction = obstacle.PredictionOutput{
		Source:      string(TypeCruiseMLP),
		Probability: keepProb,
		Trajectories: []obstacle.Trajectory{{
			Probability: keepProb,
			Points:      extrapolate(latest, cruiseHorizonSeconds),
		}},
	}
	return Produced, nil
}
