package obstacle

// DefaultHistoryCapacity bounds how many trailing features an obstacle
// retains. Downstream snapshot windows never exceed it.
const DefaultHistoryCapacity = 10

// FeatureHistory maintains a bounded sliding window of an obstacle's
// features. Appending past capacity overwrites the oldest entry.
type FeatureHistory struct {
	features []Feature
	capacity int
	head     int // next write position
	size     int
}

// NewFeatureHistory creates a feature history with the specified capacity.
func NewFeatureHistory(capacity int) *FeatureHistory {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &FeatureHistory{
		features: make([]Feature, capacity),
		capacity: capacity,
	}
}

// Append stores a new feature, overwriting the oldest if at capacity.
func (h *FeatureHistory) Append(f Feature) {
	h.features[h.head] = f
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Latest returns the most recently appended feature, or nil if empty.
func (h *FeatureHistory) Latest() *Feature {
	return h.Previous(1)
}

// Previous returns the feature N steps back from the most recent.
// Previous(1) is the most recent, Previous(2) the one before that.
// Returns nil if the requested feature doesn't exist.
func (h *FeatureHistory) Previous(n int) *Feature {
	if n < 1 || n > h.size {
		return nil
	}
	idx := (h.head - n + h.capacity) % h.capacity
	return &h.features[idx]
}

// Recent returns up to n features ordered newest first.
func (h *FeatureHistory) Recent(n int) []Feature {
	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return nil
	}
	result := make([]Feature, n)
	for i := 0; i < n; i++ {
		idx := (h.head - 1 - i + h.capacity) % h.capacity
		result[i] = h.features[idx]
	}
	return result
}

// Len returns the current number of retained features.
func (h *FeatureHistory) Len() int {
	return h.size
}

// Capacity returns the maximum number of features that can be retained.
func (h *FeatureHistory) Capacity() int {
	return h.capacity
}

// Clear removes all features from the history.
func (h *FeatureHistory) Clear() {
	for i := range h.features {
		h.features[i] = Feature{}
	}
	h.head = 0
	h.size = 0
}

// TimeDeltaSeconds returns the time delta between the two most recent
// features, or 0 if fewer than two are retained.
func (h *FeatureHistory) TimeDeltaSeconds() float64 {
	if h.size < 2 {
		return 0
	}
	return h.Previous(1).Timestamp - h.Previous(2).Timestamp
}
