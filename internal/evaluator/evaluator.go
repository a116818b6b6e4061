// Package evaluator holds the obstacle evaluation strategies and the
// registry that owns their lifecycle. Each strategy scores an obstacle's
// likely motion and writes a prediction onto the obstacle itself;
// strategy selection is decided upstream by the dispatch layer.
package evaluator

import (
	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// Type identifies an evaluation strategy on the wire and in config.
type Type string

const (
	TypeMLP                   Type = "MLP_EVALUATOR"
	TypeCruiseMLP             Type = "CRUISE_MLP_EVALUATOR"
	TypeJunctionMLP           Type = "JUNCTION_MLP_EVALUATOR"
	TypeRNN                   Type = "RNN_EVALUATOR"
	TypeCost                  Type = "COST_EVALUATOR"
	TypeCyclistKeepLane       Type = "CYCLIST_KEEP_LANE_EVALUATOR"
	TypeLaneScanning          Type = "LANE_SCANNING_EVALUATOR"
	TypePedestrianInteraction Type = "PEDESTRIAN_INTERACTION_EVALUATOR"
	TypeJunctionMap           Type = "JUNCTION_MAP_EVALUATOR"
)

// IsValid reports whether t names a known strategy, supported or not.
func (t Type) IsValid() bool {
	switch t {
	case TypeMLP, TypeCruiseMLP, TypeJunctionMLP, TypeRNN, TypeCost,
		TypeCyclistKeepLane, TypeLaneScanning, TypePedestrianInteraction,
		TypeJunctionMap:
		return true
	}
	return false
}

// Result is the verdict of a single evaluation attempt. Declined with a
// nil error means the strategy could not commit to a prediction and the
// caller may fall back to another strategy; any non-nil error means the
// attempt failed outright.
type Result int

const (
	// Produced means a prediction was written onto the obstacle.
	Produced Result = iota
	// Declined means the strategy chose not to predict this obstacle.
	Declined
)

// String returns the lowercase verdict name.
func (r Result) String() string {
	switch r {
	case Produced:
		return "produced"
	case Declined:
		return "declined"
	default:
		return "unknown"
	}
}

// Evaluator is one evaluation strategy. Evaluate must be safe to call
// concurrently for distinct obstacles; the dispatch layer guarantees no
// obstacle is evaluated by two goroutines at once.
type Evaluator interface {
	// Type returns the strategy's identity.
	Type() Type
	// Evaluate scores the obstacle and, on Produced, stores the
	// prediction on it.
	Evaluate(obs *obstacle.Obstacle) (Result, error)
}

// EnvironmentAware is implemented by strategies that can consume the
// per-cycle dynamic environment in addition to the obstacle itself. The
// dispatch layer prefers EvaluateWithEnvironment when an environment is
// available.
type EnvironmentAware interface {
	Evaluator
	EvaluateWithEnvironment(obs *obstacle.Obstacle, env *obstacle.DynamicEnvironment) (Result, error)
}
