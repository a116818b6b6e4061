package evaluator

import (
	"fmt"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

const (
	laneScanHorizonSeconds = 6.0
	// laneScanNeighborSlots is the fixed neighbor count encoded into the
	// feature tensor; absent neighbors stay zero-padded.
	laneScanNeighborSlots    = 8
	laneScanValuesPerSlot    = 4
	laneScanSelfValues       = 4
	laneScanKeepLogit        = 2.5
	laneScanCrowdPenaltyGain = 0.3
)

// LaneScanning scores on-lane vehicles with awareness of surrounding
// traffic. When the dispatch layer supplies the per-cycle dynamic
// environment, nearby obstacles are encoded into a fixed-width feature
// tensor and dense traffic lowers the keep probability; without an
// environment it degrades to history-only scoring.
type LaneScanning struct{}

// NewLaneScanning returns a ready lane-scanning evaluator.
func NewLaneScanning() *LaneScanning {
	return &LaneScanning{}
}

// Type implements Evaluator.
func (e *LaneScanning) Type() Type {
	return TypeLaneScanning
}

// Evaluate implements Evaluator.
func (e *LaneScanning) Evaluate(obs *obstacle.Obstacle) (Result, error) {
	return e.EvaluateWithEnvironment(obs, nil)
}

// EvaluateWithEnvironment implements EnvironmentAware.
func (e *LaneScanning) EvaluateWithEnvironment(obs *obstacle.Obstacle, env *obstacle.DynamicEnvironment) (Result, error) {
	latest := obs.LatestFeature()
	if latest == nil {
		return Declined, fmt.Errorf("obstacle %d has no feature history", obs.ID)
	}

	tensor := make([]float64, laneScanSelfValues+laneScanNeighborSlots*laneScanValuesPerSlot)
	tensor[0] = latest.Speed
	tensor[1] = latest.Heading
	tensor[2] = latest.Position.X
	tensor[3] = latest.Position.Y

	neighbors := 0
	if env != nil {
		for _, other := range env.Neighbors {
			if other.ID == obs.ID {
				continue
			}
			of := other.LatestFeature()
			if of == nil {
				continue
			}
			base := laneScanSelfValues + neighbors*laneScanValuesPerSlot
			tensor[base] = of.Position.X - latest.Position.X
			tensor[base+1] = of.Position.Y - latest.Position.Y
			tensor[base+2] = of.Speed
			tensor[base+3] = angleDiff(of.Heading, latest.Heading)
			neighbors++
			if neighbors == laneScanNeighborSlots {
				break
			}
		}
	}

	keepProb := logistic(laneScanKeepLogit - laneScanCrowdPenaltyGain*float64(neighbors))
	obs.Prediction = obstacle.PredictionOutput{
		Source:        string(TypeLaneScanning),
		Probability:   keepProb,
		FeatureTensor: tensor,
		Trajectories: []obstacle.Trajectory{{
			Probability: keepProb,
			Points:      extrapolate(latest, laneScanHorizonSeconds),
		}},
	}
	return Produced, nil
}
