package evaluator

import (
	"fmt"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

const costHorizonSeconds = 3.0

// Cost is the catch-all strategy for obstacle classes with no dedicated
// model. It emits a short constant-velocity rollout whose probability
// reflects only how much supporting history the track has accumulated.
type Cost struct{}

// NewCost returns a ready cost evaluator.
func NewCost() *Cost {
	return &Cost{}
}

// Type implements Evaluator.
func (e *Cost) Type() Type {
	return TypeCost
}

// Evaluate implements Evaluator.
func (e *Cost) Evaluate(obs *obstacle.Obstacle) (Result, error) {
	latest := obs.LatestFeature()
	if latest == nil {
		return Declined, fmt.Errorf("obstacle %d has no feature history", obs.ID)
	}
	prob := logistic(float64(obs.History().Len()) * 0.5)
	obs.Prediction = obstacle.PredictionOutput{
		Source:      string(TypeCost),
		Probability: prob,
		Trajectories: []obstacle.Trajectory{{
			Probability: prob,
			Points:      extrapolate(latest, costHorizonSeconds),
		}},
	}
	return Produced, nil
}
