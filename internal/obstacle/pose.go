package obstacle

import "sync"

// Pose is the ego vehicle's localization state.
type Pose struct {
	Position  Point   `json:"position"`
	Heading   float64 `json:"heading"` // radians in world frame
	Speed     float64 `json:"speed"`   // m/s
	Timestamp float64 `json:"timestamp"`
}

// PoseContainer holds the most recent ego pose.
type PoseContainer struct {
	mu    sync.RWMutex
	pose  Pose
	valid bool
}

// NewPoseContainer creates an empty pose container.
func NewPoseContainer() *PoseContainer {
	return &PoseContainer{}
}

// Update stores a new ego pose.
func (p *PoseContainer) Update(pose Pose) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pose = pose
	p.valid = true
}

// Pose returns the latest ego pose. The second return is false until the
// first Update.
func (p *PoseContainer) Pose() (Pose, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pose, p.valid
}

// ToFeature projects the pose into a Feature under the given ego id, so the
// ego can be stored in the obstacle container alongside perception output.
// Shape extents are left zero; snapshot building sources them from the
// vehicle profile instead.
func (p Pose) ToFeature(egoID int) Feature {
	return Feature{
		ObstacleID: egoID,
		Timestamp:  p.Timestamp,
		Position:   p.Position,
		Heading:    p.Heading,
		Speed:      p.Speed,
	}
}
