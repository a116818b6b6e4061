package prediction

import (
	"sync"
	"time"
)

// Stats accumulates dispatch outcomes across cycles. Workers increment
// concurrently, so every counter sits behind the mutex.
type Stats struct {
	mu        sync.Mutex
	cycles    int64
	produced  int64
	declined  int64
	failed    int64
	skipped   int64
	framesOut int64
	lastReset time.Time
}

// NewStats returns a zeroed stats block with the reset clock started.
func NewStats() *Stats {
	return &Stats{lastReset: time.Now()}
}

// StatsSnapshot is one observation window as returned by GetAndReset.
type StatsSnapshot struct {
	Cycles    int64         `json:"cycles"`
	Produced  int64         `json:"produced"`
	Declined  int64         `json:"declined"`
	Failed    int64         `json:"failed"`
	Skipped   int64         `json:"skipped"`
	FramesOut int64         `json:"frames_out"`
	Window    time.Duration `json:"window_ns"`
}

// AddCycle records one completed engine cycle.
func (s *Stats) AddCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
}

// AddProduced records one committed prediction.
func (s *Stats) AddProduced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.produced++
}

// AddDeclined records one evaluation that declined without error.
func (s *Stats) AddDeclined() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declined++
}

// AddFailed records one evaluation that returned an error.
func (s *Stats) AddFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
}

// AddSkipped records one obstacle dropped before evaluation.
func (s *Stats) AddSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
}

// AddFrameOut records one frame environment handed to the sink.
func (s *Stats) AddFrameOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesOut++
}

// Snapshot returns the counters accumulated since the last reset
// without zeroing them. Chart and status endpoints use this so they do
// not disturb the periodic reporting window.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatsSnapshot{
		Cycles:    s.cycles,
		Produced:  s.produced,
		Declined:  s.declined,
		Failed:    s.failed,
		Skipped:   s.skipped,
		FramesOut: s.framesOut,
		Window:    time.Since(s.lastReset),
	}
}

// GetAndReset returns the counters accumulated since the last call and
// zeroes them.
func (s *Stats) GetAndReset() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	snap := StatsSnapshot{
		Cycles:    s.cycles,
		Produced:  s.produced,
		Declined:  s.declined,
		Failed:    s.failed,
		Skipped:   s.skipped,
		FramesOut: s.framesOut,
		Window:    now.Sub(s.lastReset),
	}
	s.cycles = 0
	s.produced = 0
	s.declined = 0
	s.failed = 0
	s.skipped = 0
	s.framesOut = 0
	s.lastReset = now
	return snap
}
