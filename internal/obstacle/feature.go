package obstacle

// Point is a position in the world frame (metres).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Feature is one timestamped projection of an obstacle's perceived state.
// Perception produces one feature per obstacle per cycle.
type Feature struct {
	ObstacleID int     `json:"obstacle_id"`
	Timestamp  float64 `json:"timestamp"` // seconds since epoch

	Position Point   `json:"position"`
	Velocity Point   `json:"velocity"`
	Speed    float64 `json:"speed"`   // m/s
	Heading  float64 `json:"heading"` // velocity heading, radians in world frame

	// Shape extents in metres.
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// Polygon is the optional perceived outline.
	Polygon []Point `json:"polygon,omitempty"`

	// Lane association. Empty LaneID means off-lane.
	LaneID string `json:"lane_id,omitempty"`

	// Junction association. Empty JunctionID means no upcoming junction.
	// JunctionExitDistance is metres to the nearest junction exit; negative
	// when unknown.
	JunctionID           string  `json:"junction_id,omitempty"`
	JunctionExitDistance float64 `json:"junction_exit_distance,omitempty"`

	// Stationary marks obstacles perception already classified as not
	// moving. The container additionally applies a speed threshold.
	Stationary bool `json:"stationary,omitempty"`
}
