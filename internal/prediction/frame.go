package prediction

import (
	"fmt"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// PerceivedObstacle is one obstacle measurement within a perception
// frame: the raw feature plus the classification and attention class
// assigned upstream.
type PerceivedObstacle struct {
	Feature  obstacle.Feature      `json:"feature"`
	Type     obstacle.ObstacleType `json:"type"`
	Priority obstacle.Priority     `json:"priority"`
}

// PerceptionFrame is one full perception cycle as received on the wire.
type PerceptionFrame struct {
	Timestamp float64             `json:"timestamp"`
	EgoPose   *obstacle.Pose      `json:"ego_pose,omitempty"`
	Obstacles []PerceivedObstacle `json:"obstacles"`
}

// Validate normalizes and checks a frame before ingestion. Unclassified
// obstacles become UNKNOWN and unassigned priorities become NORMAL;
// anything else malformed is rejected.
func (f *PerceptionFrame) Validate() error {
	if f.Timestamp <= 0 {
		return fmt.Errorf("frame timestamp must be positive, got %v", f.Timestamp)
	}
	if f.EgoPose != nil && f.EgoPose.Timestamp == 0 {
		f.EgoPose.Timestamp = f.Timestamp
	}
	for i := range f.Obstacles {
		po := &f.Obstacles[i]
		if po.Type == "" {
			po.Type = obstacle.TypeUnknown
		}
		if !po.Type.IsValid() {
			return fmt.Errorf("obstacle %d: unknown type %q", po.Feature.ObstacleID, po.Type)
		}
		if po.Priority == "" {
			po.Priority = obstacle.PriorityNormal
		}
		if !po.Priority.IsValid() {
			return fmt.Errorf("obstacle %d: unknown priority %q", po.Feature.ObstacleID, po.Priority)
		}
		if po.Feature.Timestamp == 0 {
			po.Feature.Timestamp = f.Timestamp
		}
	}
	return nil
}
