package featurestore

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
	"github.com/banshee-data/prediction.engine/internal/timeutil"
)

// FrameWriter is the persistence half of the flusher. *Store implements
// this interface.
type FrameWriter interface {
	InsertFrameEnv(env obstacle.FrameEnvironment) error
}

const defaultQueueSize = 256

// Flusher decouples frame persistence from the prediction cycle. The
// engine hands frames to InsertFrameEnv, which enqueues without
// blocking; a background loop drains the queue to the writer on a
// fixed interval and on shutdown.
type Flusher struct {
	writer   FrameWriter
	clock    timeutil.Clock
	interval time.Duration
	logger   *log.Logger
	queue    chan obstacle.FrameEnvironment

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	dropped   int64
	lastDrain time.Time
}

// FlusherConfig contains configuration for Flusher.
type FlusherConfig struct {
	// Writer receives drained frames (typically a *Store)
	Writer FrameWriter
	// Interval is how often to drain the queue (e.g., 1*time.Second)
	Interval time.Duration
	// QueueSize bounds the number of frames held between drains;
	// if zero, a default of 256 is used
	QueueSize int
	// Clock is optional; if nil, uses the real clock
	Clock timeutil.Clock
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
}

// NewFlusher creates a new Flusher.
func NewFlusher(cfg FlusherConfig) *Flusher {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Flusher{
		writer:   cfg.Writer,
		clock:    clock,
		interval: cfg.Interval,
		logger:   logger,
		queue:    make(chan obstacle.FrameEnvironment, queueSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// InsertFrameEnv enqueues a frame for the next drain. It never blocks;
// when the queue is full the frame is dropped and an error returned so
// the caller can account for the lost frame.
func (f *Flusher) InsertFrameEnv(env obstacle.FrameEnvironment) error {
	select {
	case f.queue <- env:
		return nil
	default:
	}

	f.mu.Lock()
	f.dropped++
	dropped := f.dropped
	f.mu.Unlock()
	return fmt.Errorf("frame queue full, dropped frame (%d dropped so far)", dropped)
}

// Dropped returns the number of frames dropped due to a full queue.
func (f *Flusher) Dropped() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Pending returns the number of frames waiting to be drained.
func (f *Flusher) Pending() int {
	return len(f.queue)
}

// Run starts the periodic drain loop. It blocks until the context is
// cancelled or Stop() is called. Returns nil on clean shutdown.
func (f *Flusher) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil // already running
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	f.mu.Unlock()

	defer func() {
		close(f.doneCh)
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	if f.interval <= 0 {
		f.logger.Printf("FrameFlusher: interval is zero or negative, not starting")
		return nil
	}

	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Printf("FrameFlusher started: interval=%v queue=%d", f.interval, cap(f.queue))

	for {
		select {
		case <-ctx.Done():
			f.logger.Printf("FrameFlusher stopping due to context cancellation")
			f.flushFinal()
			return nil
		case <-f.stopCh:
			f.logger.Printf("FrameFlusher stopping due to Stop() call")
			f.flushFinal()
			return nil
		case <-ticker.C():
			f.flush()
		}
	}
}

// Stop requests the flusher to stop. It is safe to call multiple times.
func (f *Flusher) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	select {
	case <-f.stopCh:
		// already closed
	default:
		close(f.stopCh)
	}
	f.mu.Unlock()

	// Wait for completion
	<-f.doneCh
}

// IsRunning returns whether the flusher is currently running.
func (f *Flusher) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// flush drains currently queued frames to the writer.
func (f *Flusher) flush() {
	if n := f.drain(); n > 0 {
		f.logger.Printf("FrameFlusher: wrote %d frames", n)
	}
}

// flushFinal drains remaining frames before shutdown.
func (f *Flusher) flushFinal() {
	n := f.drain()
	f.logger.Printf("FrameFlusher: final drain wrote %d frames", n)
}

func (f *Flusher) drain() int {
	if f.writer == nil {
		return 0
	}
	written := 0
	for {
		select {
		case env := <-f.queue:
			if err := f.writer.InsertFrameEnv(env); err != nil {
				f.logger.Printf("FrameFlusher: error writing frame at %.3f: %v", env.Timestamp, err)
				continue
			}
			written++
		default:
			return written
		}
	}
}

// FlushNow drains the queue outside the regular interval.
func (f *Flusher) FlushNow() {
	f.flush()
}
