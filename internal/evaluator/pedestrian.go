package evaluator

import (
	"fmt"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

const (
	pedestrianHorizonSeconds = 4.0
	pedestrianSmoothWindow   = 5
)

// PedestrianInteraction scores pedestrians from a smoothed velocity over
// their recent history, which damps the frame-to-frame jitter typical of
// perception tracks for walkers.
type PedestrianInteraction struct{}

// NewPedestrianInteraction returns a ready pedestrian evaluator.
func NewPedestrianInteraction() *PedestrianInteraction {
	return &PedestrianInteraction{}
}

// Type implements Evaluator.
func (e *PedestrianInteraction) Type() Type {
	return TypePedestrianInteraction
}

// Evaluate implements Evaluator.
func (e *PedestrianInteraction) Evaluate(obs *obstacle.Obstacle) (Result, error) {
	latest := obs.LatestFeature()
	if latest == nil {
		return Declined, fmt.Errorf("obstacle %d has no feature history", obs.ID)
	}

	recent := obs.History().Recent(pedestrianSmoothWindow)
	smoothed := *latest
	if len(recent) > 1 {
		var vx, vy float64
		for _, f := range recent {
			vx += f.Velocity.X
			vy += f.Velocity.Y
		}
		smoothed.Velocity.X = vx / float64(len(recent))
		smoothed.Velocity.Y = vy / float64(len(recent))
	}

	prob := logistic(1.0 + smoothed.Speed*0.5)
	obs.Prediction = obstacle.PredictionOutput{
		Source:      string(TypePedestrianInteraction),
		Probability: prob,
		Trajectories: []obstacle.Trajectory{{
			Probability: prob,
			Points:      extrapolate(&smoothed, pedestrianHorizonSeconds),
		}},
	}
	return Produced, nil
}
