// Package obstacle holds the per-cycle data model for perceived moving
// objects: typed features, bounded per-obstacle history, and the containers
// the prediction engine borrows obstacles from.
package obstacle

// ObstacleType classifies a perceived obstacle.
type ObstacleType string

const (
	TypeVehicle    ObstacleType = "VEHICLE"
	TypeBicycle    ObstacleType = "BICYCLE"
	TypePedestrian ObstacleType = "PEDESTRIAN"
	TypeUnknown    ObstacleType = "UNKNOWN"
)

// IsValid checks if the obstacle type is a known classification.
func (t ObstacleType) IsValid() bool {
	switch t {
	case TypeVehicle, TypeBicycle, TypePedestrian, TypeUnknown:
		return true
	}
	return false
}

// Priority is the attention class assigned to an obstacle upstream.
// It governs both dispatch eligibility and worker isolation.
type Priority string

const (
	PriorityNormal  Priority = "NORMAL"
	PriorityCaution Priority = "CAUTION"
	PriorityIgnore  Priority = "IGNORE"
)

// IsValid checks if the priority is a known class.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityNormal, PriorityCaution, PriorityIgnore:
		return true
	}
	return false
}

// Status is the motion context an obstacle is evaluated under.
type Status string

const (
	StatusOnLane     Status = "ON_LANE"
	StatusInJunction Status = "IN_JUNCTION"
	StatusOffLane    Status = "OFF_LANE"
)

// IsValid checks if the status is a known motion context.
func (s Status) IsValid() bool {
	switch s {
	case StatusOnLane, StatusInJunction, StatusOffLane:
		return true
	}
	return false
}

// Obstacle is one tracked moving object. The container owns it; the
// prediction engine borrows a reference for the duration of a cycle and
// writes only the Prediction fields. Obstacles carry no lock: the dispatch
// partitioning guarantees a single writer per cycle.
type Obstacle struct {
	ID       int
	Type     ObstacleType
	Priority Priority

	// Motion context, derived from the latest perception feature.
	Stationary       bool
	OnLane           bool
	InJunction       bool
	NearJunctionExit bool

	history *FeatureHistory

	// Prediction output, written by evaluators only.
	Prediction PredictionOutput
}

// PredictionOutput is the result an evaluator writes onto an obstacle.
type PredictionOutput struct {
	// Source is the evaluator type that produced the result.
	Source string

	// Probability of the most likely trajectory, [0, 1].
	Probability float64

	Trajectories []Trajectory

	// FeatureTensor is the flattened feature dump produced in
	// data-collection runs for offline model training.
	FeatureTensor []float64
}

// Trajectory is one predicted motion hypothesis.
type Trajectory struct {
	Probability float64
	Points      []TrajectoryPoint
}

// TrajectoryPoint is a single pose along a predicted trajectory.
type TrajectoryPoint struct {
	Position     Point
	Heading      float64
	Speed        float64
	RelativeTime float64
}

// NewObstacle creates a standalone obstacle with an empty feature
// history of the given capacity. Most obstacles are created through
// Container.Insert, which also derives the motion context flags.
func NewObstacle(id int, typ ObstacleType, historyCapacity int) *Obstacle {
	return &Obstacle{
		ID:      id,
		Type:    typ,
		history: NewFeatureHistory(historyCapacity),
	}
}

// AppendFeature records one feature into the obstacle's history.
func (o *Obstacle) AppendFeature(f Feature) {
	if o.history == nil {
		o.history = NewFeatureHistory(DefaultHistoryCapacity)
	}
	o.history.Append(f)
}

// History returns the obstacle's bounded feature history.
func (o *Obstacle) History() *FeatureHistory {
	return o.history
}

// LatestFeature returns the most recent feature, or nil if none recorded.
func (o *Obstacle) LatestFeature() *Feature {
	if o.history == nil {
		return nil
	}
	return o.history.Latest()
}
