package evaluator

import (
	"fmt"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

const (
	mlpHorizonSeconds = 3.0
	mlpStabilityGain  = 2.0
	mlpStabilityBias  = 1.5
)

// MLP is the first-generation lane evaluator, kept for config
// compatibility with deployments that have not migrated to the cruise
// strategy. It scores like CruiseMLP but over a shorter horizon and a
// flatter stability response.
type MLP struct{}

// NewMLP returns a ready legacy lane evaluator.
func NewMLP() *MLP {
	return &MLP{}
}

// Type implements Evaluator.
func (e *MLP) Type() Type {
	return TypeMLP
}

// Evaluate implements Evaluator.
func (e *MLP) Evaluate(obs *obstacle.Obstacle) (Result, error) {
	latest := obs.LatestFeature()
	if latest == nil {
		return Declined, fmt.Errorf("obstacle %d has no feature history", obs.ID)
	}
	spread := headingSpread(obs.History(), 3)
	prob := logistic(mlpStabilityBias - mlpStabilityGain*spread)
	obs.Prediction = obstacle.PredictionOutput{
		Source:      string(TypeMLP),
		Probability: prob,
		Trajectories: []obstacle.Trajectory{{
			Probability: prob,
			Points:      extrapolate(latest, mlpHorizonSeconds),
		}},
	}
	return Produced, nil
}
