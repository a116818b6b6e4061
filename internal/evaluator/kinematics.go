package evaluator

import (
	"math"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// trajectoryTimeStep is the spacing between emitted trajectory points in
// seconds. All strategies share it so downstream consumers see uniform
// sampling regardless of which strategy produced the prediction.
const trajectoryTimeStep = 0.1

// extrapolate emits a constant-velocity trajectory from the feature's
// current pose out to horizon seconds.
func extrapolate(f *obstacle.Feature, horizon float64) []obstacle.TrajectoryPoint {
	n := int(horizon/trajectoryTimeStep) + 1
	points := make([]obstacle.TrajectoryPoint, 0, n)
	for i := 0; i < n; i++ {
		t := float64(i) * trajectoryTimeStep
		points = append(points, obstacle.TrajectoryPoint{
			Position: obstacle.Point{
				X: f.Position.X + f.Velocity.X*t,
				Y: f.Position.Y + f.Velocity.Y*t,
				Z: f.Position.Z,
			},
			Heading:      f.Heading,
			Speed:        f.Speed,
			RelativeTime: t,
		})
	}
	return points
}

// headingAlong emits a trajectory at the feature's speed along an
// explicit heading rather than the feature's own velocity vector.
func headingAlong(f *obstacle.Feature, heading, horizon float64) []obstacle.TrajectoryPoint {
	n := int(horizon/trajectoryTimeStep) + 1
	vx := f.Speed * math.Cos(heading)
	vy := f.Speed * math.Sin(heading)
	points := make([]obstacle.TrajectoryPoint, 0, n)
	for i := 0; i < n; i++ {
		t := float64(i) * trajectoryTimeStep
		points = append(points, obstacle.TrajectoryPoint{
			Position: obstacle.Point{
				X: f.Position.X + vx*t,
				Y: f.Position.Y + vy*t,
				Z: f.Position.Z,
			},
			Heading:      heading,
			Speed:        f.Speed,
			RelativeTime: t,
		})
	}
	return points
}

// logistic squashes x into (0, 1).
func logistic(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// angleDiff returns the signed smallest difference a-b in radians,
// normalized to [-pi, pi].
func angleDiff(a, b float64) float64 {
	d := a - b
	return math.Atan2(math.Sin(d), math.Cos(d))
}

// headingSpread returns the largest absolute heading deviation from the
// newest heading over the most recent n features. A small spread means
// the obstacle has been tracking straight.
func headingSpread(h *obstacle.FeatureHistory, n int) float64 {
	recent := h.Recent(n)
	if len(recent) < 2 {
		return 0
	}
	ref := recent[0].Heading
	spread := 0.0
	for _, f := range recent[1:] {
		if d := math.Abs(angleDiff(f.Heading, ref)); d > spread {
			spread = d
		}
	}
	return spread
}
