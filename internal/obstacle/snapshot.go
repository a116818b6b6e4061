package obstacle

// HistoryRecord is the reduced feature projection carried in per-cycle
// environment snapshots: identity, pose and shape extents only.
type HistoryRecord struct {
	ObstacleID int     `json:"obstacle_id"`
	Timestamp  float64 `json:"timestamp"`
	Position   Point   `json:"position"`
	Heading    float64 `json:"heading"`
	Length     float64 `json:"length"`
	Width      float64 `json:"width"`
	Polygon    []Point `json:"polygon,omitempty"`
}

// History is one obstacle's trailing snapshot window, newest record first.
// Trainable marks records usable as learning targets downstream.
type History struct {
	Records   []HistoryRecord `json:"records"`
	Trainable bool            `json:"trainable"`
}

// FrameEnvironment is the per-cycle aggregate of bounded obstacle
// histories, partitioned into the ego entry and everything else. One is
// produced per cycle and handed to the persistence sink.
type FrameEnvironment struct {
	Timestamp float64   `json:"timestamp"`
	Ego       History   `json:"ego"`
	Others    []History `json:"others"`
}

// RecordCount returns the total number of records across ego and others.
func (f *FrameEnvironment) RecordCount() int {
	n := len(f.Ego.Records)
	for _, h := range f.Others {
		n += len(h.Records)
	}
	return n
}

// TrainableCount returns how many non-ego histories are marked trainable.
func (f *FrameEnvironment) TrainableCount() int {
	n := 0
	for _, h := range f.Others {
		if h.Trainable {
			n++
		}
	}
	return n
}
