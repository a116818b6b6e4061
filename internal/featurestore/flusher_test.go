package featurestore

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
	"github.com/banshee-data/prediction.engine/internal/timeutil"
)

// mockFrameWriter implements FrameWriter for testing
type mockFrameWriter struct {
	mu       sync.Mutex
	envs     []obstacle.FrameEnvironment
	attempts int
	err      error
}

func (m *mockFrameWriter) InsertFrameEnv(env obstacle.FrameEnvironment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.err != nil {
		return m.err
	}
	m.envs = append(m.envs, env)
	return nil
}

func (m *mockFrameWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.envs)
}

func (m *mockFrameWriter) timestamps() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []float64
	for _, env := range m.envs {
		out = append(out, env.Timestamp)
	}
	return out
}

func TestNewFlusher_Defaults(t *testing.T) {
	writer := &mockFrameWriter{}
	f := NewFlusher(FlusherConfig{
		Writer:   writer,
		Interval: time.Second,
	})

	if cap(f.queue) != defaultQueueSize {
		t.Errorf("expected default queue size %d, got %d", defaultQueueSize, cap(f.queue))
	}
	if f.logger == nil {
		t.Error("expected logger to default")
	}
	if f.clock == nil {
		t.Error("expected clock to default")
	}
	if f.IsRunning() {
		t.Error("expected flusher to not be running initially")
	}
}

func TestFlusher_InsertDropsWhenFull(t *testing.T) {
	f := NewFlusher(FlusherConfig{
		Writer:    &mockFrameWriter{},
		Interval:  time.Hour,
		QueueSize: 2,
	})

	if err := f.InsertFrameEnv(testFrameEnv(100.0)); err != nil {
		t.Errorf("unexpected error on first insert: %v", err)
	}
	if err := f.InsertFrameEnv(testFrameEnv(100.1)); err != nil {
		t.Errorf("unexpected error on second insert: %v", err)
	}
	if err := f.InsertFrameEnv(testFrameEnv(100.2)); err == nil {
		t.Error("expected error when queue is full")
	}

	if got := f.Dropped(); got != 1 {
		t.Errorf("expected 1 dropped frame, got %d", got)
	}
	if got := f.Pending(); got != 2 {
		t.Errorf("expected 2 pending frames, got %d", got)
	}
}

func TestFlusher_Run_ZeroInterval(t *testing.T) {
	var logBuf bytes.Buffer
	logger := log.New(&logBuf, "", 0)

	f := NewFlusher(FlusherConfig{
		Writer:   &mockFrameWriter{},
		Interval: 0,
		Logger:   logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := f.Run(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !bytes.Contains(logBuf.Bytes(), []byte("interval is zero")) {
		t.Error("expected log message about zero interval")
	}
}

func TestFlusher_Run_PeriodicDrain(t *testing.T) {
	writer := &mockFrameWriter{}
	clock := timeutil.NewMockClock(time.Unix(1000, 0))

	var logBuf bytes.Buffer
	f := NewFlusher(FlusherConfig{
		Writer:   writer,
		Interval: time.Second,
		Clock:    clock,
		Logger:   log.New(&logBuf, "", 0),
	})

	runDone := make(chan error, 1)
	go func() {
		runDone <- f.Run(context.Background())
	}()

	// Give the loop time to start and create its ticker
	time.Sleep(50 * time.Millisecond)

	if err := f.InsertFrameEnv(testFrameEnv(100.0)); err != nil {
		t.Fatalf("InsertFrameEnv failed: %v", err)
	}
	if err := f.InsertFrameEnv(testFrameEnv(100.1)); err != nil {
		t.Fatalf("InsertFrameEnv failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for writer.count() < 2 && time.Now().Before(deadline) {
		clock.Advance(time.Second)
		time.Sleep(time.Millisecond)
	}
	if got := writer.count(); got != 2 {
		t.Fatalf("expected 2 frames written, got %d", got)
	}
	ts := writer.timestamps()
	if ts[0] != 100.0 || ts[1] != 100.1 {
		t.Errorf("frames written out of order: %v", ts)
	}

	f.Stop()
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("flusher did not stop in time")
	}
}

func TestFlusher_Stop_DrainsRemaining(t *testing.T) {
	writer := &mockFrameWriter{}
	clock := timeutil.NewMockClock(time.Unix(1000, 0))

	var logBuf bytes.Buffer
	f := NewFlusher(FlusherConfig{
		Writer:   writer,
		Interval: time.Hour, // no tick fires during the test
		Clock:    clock,
		Logger:   log.New(&logBuf, "", 0),
	})

	runDone := make(chan error, 1)
	go func() {
		runDone <- f.Run(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)

	if !f.IsRunning() {
		t.Fatal("expected flusher to be running")
	}

	for _, ts := range []float64{100.0, 100.1, 100.2} {
		if err := f.InsertFrameEnv(testFrameEnv(ts)); err != nil {
			t.Fatalf("InsertFrameEnv failed: %v", err)
		}
	}

	f.Stop()
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("flusher did not stop in time")
	}

	if got := writer.count(); got != 3 {
		t.Errorf("expected final drain to write 3 frames, got %d", got)
	}
	if !bytes.Contains(logBuf.Bytes(), []byte("final drain wrote 3 frames")) {
		t.Error("expected final drain log message")
	}
	if f.IsRunning() {
		t.Error("expected flusher to not be running after Stop()")
	}
}

func TestFlusher_Run_ContextCancel(t *testing.T) {
	writer := &mockFrameWriter{}
	clock := timeutil.NewMockClock(time.Unix(1000, 0))

	f := NewFlusher(FlusherConfig{
		Writer:   writer,
		Interval: time.Hour,
		Clock:    clock,
		Logger:   log.New(&bytes.Buffer{}, "", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() {
		runDone <- f.Run(ctx)
	}()
	time.Sleep(50 * time.Millisecond)

	if err := f.InsertFrameEnv(testFrameEnv(100.0)); err != nil {
		t.Fatalf("InsertFrameEnv failed: %v", err)
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("flusher did not stop on context cancellation")
	}

	if got := writer.count(); got != 1 {
		t.Errorf("expected cancellation drain to write 1 frame, got %d", got)
	}
}

func TestFlusher_Stop_NotRunning(t *testing.T) {
	f := NewFlusher(FlusherConfig{
		Writer:   &mockFrameWriter{},
		Interval: time.Hour,
	})

	// Stop when not running should not panic
	f.Stop()
}

func TestFlusher_Stop_MultipleTimes(t *testing.T) {
	f := NewFlusher(FlusherConfig{
		Writer:   &mockFrameWriter{},
		Interval: time.Hour,
		Clock:    timeutil.NewMockClock(time.Unix(1000, 0)),
		Logger:   log.New(&bytes.Buffer{}, "", 0),
	})

	go f.Run(context.Background())
	time.Sleep(50 * time.Millisecond)

	// Stop multiple times should not panic
	f.Stop()
	f.Stop()
	f.Stop()
}

func TestFlusher_WriterError(t *testing.T) {
	writer := &mockFrameWriter{err: errors.New("disk full")}

	var logBuf bytes.Buffer
	f := NewFlusher(FlusherConfig{
		Writer:   writer,
		Interval: time.Hour,
		Logger:   log.New(&logBuf, "", 0),
	})

	if err := f.InsertFrameEnv(testFrameEnv(100.0)); err != nil {
		t.Fatalf("InsertFrameEnv failed: %v", err)
	}
	f.FlushNow()

	if got := f.Pending(); got != 0 {
		t.Errorf("expected queue drained despite write error, got %d pending", got)
	}
	if !bytes.Contains(logBuf.Bytes(), []byte("error writing frame")) {
		t.Error("expected write error to be logged")
	}
	if got := writer.count(); got != 0 {
		t.Errorf("expected no frames recorded on error, got %d", got)
	}
}
