package obstacle

// DynamicEnvironment is the transient snapshot of the neighbourhood handed
// to context-aware evaluators. It is rebuilt each cycle and never persisted.
// Workers only read it, so it carries no lock.
type DynamicEnvironment struct {
	EgoPose   Pose
	Timestamp float64

	// Neighbors are the cycle's considered obstacles ordered by distance
	// to the ego, nearest first.
	Neighbors []*Obstacle
}

// BuildDynamicEnvironment assembles the neighbourhood snapshot for one
// cycle from the container and the latest ego pose.
func BuildDynamicEnvironment(c *Container, pose Pose, timestamp float64) *DynamicEnvironment {
	return &DynamicEnvironment{
		EgoPose:   pose,
		Timestamp: timestamp,
		Neighbors: c.NearbyObstacles(pose.Position),
	}
}
