package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/banshee-data/prediction.engine/internal/fsutil"
	"github.com/banshee-data/prediction.engine/internal/httputil"
	"github.com/banshee-data/prediction.engine/internal/prediction"
)

func TestWriteCaptureGeneratesValidFrames(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	if err := writeCapture(fs, "capture.ndjson", 5); err != nil {
		t.Fatalf("writeCapture failed: %v", err)
	}

	data, err := fs.ReadFile("capture.ndjson")
	if err != nil {
		t.Fatalf("capture not written: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(lines))
	}

	prev := 0.0
	for i, line := range lines {
		var frame prediction.PerceptionFrame
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			t.Fatalf("frame %d does not parse: %v", i, err)
		}
		if err := frame.Validate(); err != nil {
			t.Errorf("frame %d invalid: %v", i, err)
		}
		if frame.Timestamp <= prev {
			t.Errorf("frame %d timestamp %v not increasing", i, frame.Timestamp)
		}
		prev = frame.Timestamp
		if len(frame.Obstacles) != 3 {
			t.Errorf("frame %d has %d obstacles, want 3", i, len(frame.Obstacles))
		}
		if frame.EgoPose == nil {
			t.Errorf("frame %d missing ego pose", i)
		}
	}
}

func TestReplayPostsEachFrame(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	if err := writeCapture(fs, "capture.ndjson", 3); err != nil {
		t.Fatalf("writeCapture failed: %v", err)
	}

	client := httputil.NewMockHTTPClient()
	cfg := &Config{File: "capture.ndjson", Target: "http://predictor.test", Speed: 0}

	res, err := replay(fs, client, cfg)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if res.Sent != 3 || res.Rejected != 0 {
		t.Errorf("got sent=%d rejected=%d, want 3/0", res.Sent, res.Rejected)
	}
	if client.RequestCount() != 3 {
		t.Fatalf("expected 3 requests, got %d", client.RequestCount())
	}

	req := client.GetRequest(0)
	if req.URL.String() != "http://predictor.test/perception" {
		t.Errorf("posted to %s", req.URL)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q, want application/json", ct)
	}

	var frame prediction.PerceptionFrame
	if err := json.NewDecoder(req.Body).Decode(&frame); err != nil {
		t.Fatalf("request body does not parse: %v", err)
	}
	if len(frame.Obstacles) != 3 {
		t.Errorf("request frame has %d obstacles, want 3", len(frame.Obstacles))
	}
}

func TestReplayCountsRejectedFrames(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	if err := writeCapture(fs, "capture.ndjson", 3); err != nil {
		t.Fatalf("writeCapture failed: %v", err)
	}

	client := httputil.NewMockHTTPClient()
	client.AddResponse(http.StatusOK, `{"status":"ok"}`)
	client.AddResponse(http.StatusBadRequest, `{"error":"invalid perception frame"}`)
	client.AddResponse(http.StatusOK, `{"status":"ok"}`)

	res, err := replay(fs, client, &Config{File: "capture.ndjson", Target: "http://predictor.test", Speed: 0})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if res.Sent != 3 || res.Rejected != 1 {
		t.Errorf("got sent=%d rejected=%d, want 3/1", res.Sent, res.Rejected)
	}
}

func TestReplayMaxCapsFrames(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	if err := writeCapture(fs, "capture.ndjson", 5); err != nil {
		t.Fatalf("writeCapture failed: %v", err)
	}

	client := httputil.NewMockHTTPClient()
	res, err := replay(fs, client, &Config{File: "capture.ndjson", Target: "http://predictor.test", Speed: 0, Max: 2})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if res.Sent != 2 {
		t.Errorf("got sent=%d, want 2", res.Sent)
	}
	if client.RequestCount() != 2 {
		t.Errorf("expected 2 requests, got %d", client.RequestCount())
	}
}

func TestReplayHaltsOnTransportError(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	if err := writeCapture(fs, "capture.ndjson", 3); err != nil {
		t.Fatalf("writeCapture failed: %v", err)
	}

	client := httputil.NewMockHTTPClient()
	client.DefaultError = errors.New("connection refused")

	res, err := replay(fs, client, &Config{File: "capture.ndjson", Target: "http://predictor.test", Speed: 0})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if res.Sent != 0 {
		t.Errorf("got sent=%d, want 0", res.Sent)
	}
}

func TestReplayMissingFile(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	client := httputil.NewMockHTTPClient()

	if _, err := replay(fs, client, &Config{File: "absent.ndjson", Target: "http://predictor.test"}); err == nil {
		t.Error("expected error for missing capture")
	}
}

func TestReplayEmptyCapture(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	if err := fs.WriteFile("empty.ndjson", []byte("\n\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	client := httputil.NewMockHTTPClient()
	if _, err := replay(fs, client, &Config{File: "empty.ndjson", Target: "http://predictor.test"}); err == nil {
		t.Error("expected error for empty capture")
	}
}
