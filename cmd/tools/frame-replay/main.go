// Command frame-replay generates and replays perception captures against
// a running predictor.
//
// A capture is newline-delimited JSON, one perception frame per line, in
// the same shape POST /perception accepts. Generate a synthetic capture
// first, then stream it back at a predictor:
//
//	frame-replay -gen 200 -file capture.ndjson
//	frame-replay -file capture.ndjson -target http://localhost:8081
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/banshee-data/prediction.engine/internal/fsutil"
	"github.com/banshee-data/prediction.engine/internal/httputil"
	"github.com/banshee-data/prediction.engine/internal/obstacle"
	"github.com/banshee-data/prediction.engine/internal/prediction"
)

// captureDT is the frame spacing of generated captures (10 Hz).
const captureDT = 0.1

// Config holds command-line parameters for generation and replay.
type Config struct {
	File    string
	Target  string
	Gen     int
	Speed   float64
	Max     int
	Timeout time.Duration
}

func parseFlags() *Config {
	cfg := &Config{}
	flag.StringVar(&cfg.File, "file", "", "Capture file, NDJSON (required)")
	flag.StringVar(&cfg.Target, "target", "http://localhost:8081", "Predictor base URL")
	flag.IntVar(&cfg.Gen, "gen", 0, "Generate a synthetic capture with N frames instead of replaying")
	flag.Float64Var(&cfg.Speed, "speed", 1.0, "Replay speed multiplier (0 = no pacing)")
	flag.IntVar(&cfg.Max, "max", 0, "Stop after N frames (0 = all)")
	flag.DurationVar(&cfg.Timeout, "timeout", 5*time.Second, "Per-request timeout")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.File == "" {
		log.Fatal("Error: -file flag is required")
	}

	fs := fsutil.OSFileSystem{}
	if cfg.Gen > 0 {
		if err := writeCapture(fs, cfg.File, cfg.Gen); err != nil {
			log.Fatalf("Failed to generate capture: %v", err)
		}
		log.Printf("Created %s (%d frames)", cfg.File, cfg.Gen)
		return
	}

	client := httputil.NewStandardClient(&http.Client{Timeout: cfg.Timeout})
	res, err := replay(fs, client, cfg)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	log.Printf("Replayed %d frames to %s (%d rejected)", res.Sent, cfg.Target, res.Rejected)
}

// syntheticFrame builds one frame of the generated scene: ego cruising
// along +X with a slower lead vehicle on the same lane, a pedestrian
// crossing from the right and a parked car off to the side.
func syntheticFrame(ts float64, step int) prediction.PerceptionFrame {
	egoX := 8.0 * float64(step) * captureDT
	crossY := -6.0 + 1.4*float64(step)*captureDT
	return prediction.PerceptionFrame{
		Timestamp: ts,
		EgoPose: &obstacle.Pose{
			Position:  obstacle.Point{X: egoX},
			Speed:     8.0,
			Timestamp: ts,
		},
		Obstacles: []prediction.PerceivedObstacle{
			{
				Feature: obstacle.Feature{
					ObstacleID: 101,
					Timestamp:  ts,
					Position:   obstacle.Point{X: egoX + 25.0},
					Velocity:   obstacle.Point{X: 6.0},
					Speed:      6.0,
					Length:     4.6,
					Width:      1.9,
					Height:     1.6,
					LaneID:     "lane_a",
				},
				Type:     obstacle.TypeVehicle,
				Priority: obstacle.PriorityNormal,
			},
			{
				Feature: obstacle.Feature{
					ObstacleID: 202,
					Timestamp:  ts,
					Position:   obstacle.Point{X: egoX + 14.0, Y: crossY},
					Velocity:   obstacle.Point{Y: 1.4},
					Speed:      1.4,
					Heading:    math.Pi / 2,
					Length:     0.5,
					Width:      0.5,
					Height:     1.7,
				},
				Type:     obstacle.TypePedestrian,
				Priority: obstacle.PriorityCaution,
			},
			{
				Feature: obstacle.Feature{
					ObstacleID: 303,
					Timestamp:  ts,
					Position:   obstacle.Point{X: 30.0, Y: 4.5},
					Length:     4.4,
					Width:      1.8,
					Height:     1.5,
					Stationary: true,
				},
				Type:     obstacle.TypeVehicle,
				Priority: obstacle.PriorityNormal,
			},
		},
	}
}

// writeCapture writes n synthetic frames at 10 Hz to path.
func writeCapture(fs fsutil.FileSystem, path string, n int) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating capture: %w", err)
	}

	base := float64(time.Now().Unix())
	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for i := 0; i < n; i++ {
		if err := enc.Encode(syntheticFrame(base+float64(i)*captureDT, i)); err != nil {
			f.Close()
			return fmt.Errorf("encoding frame %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type replayResult struct {
	Sent     int
	Rejected int
}

// replay streams the capture to the target's /perception endpoint,
// pacing posts by recorded timestamp deltas when Speed > 0. Transport
// errors halt the replay; rejected frames are counted and logged.
func replay(fs fsutil.FileSystem, client httputil.HTTPClient, cfg *Config) (replayResult, error) {
	var res replayResult

	f, err := fs.Open(cfg.File)
	if err != nil {
		return res, fmt.Errorf("opening capture: %w", err)
	}
	defer f.Close()

	endpoint := cfg.Target + "/perception"
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	prevTS := 0.0
	for scanner.Scan() {
		line := []byte(scanner.Text())
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		lineNo++

		var frame prediction.PerceptionFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			return res, fmt.Errorf("line %d: %w", lineNo, err)
		}

		if cfg.Speed > 0 && prevTS > 0 && frame.Timestamp > prevTS {
			delay := time.Duration((frame.Timestamp - prevTS) / cfg.Speed * float64(time.Second))
			if delay > time.Second {
				delay = time.Second
			}
			time.Sleep(delay)
		}
		prevTS = frame.Timestamp

		resp, err := client.Post(endpoint, "application/json", bytes.NewReader(line))
		if err != nil {
			return res, fmt.Errorf("posting frame %d: %w", lineNo, err)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()

		res.Sent++
		if resp.StatusCode != http.StatusOK {
			res.Rejected++
			log.Printf("Frame %d rejected: status %d: %s", lineNo, resp.StatusCode, bytes.TrimSpace(body))
		}

		if cfg.Max > 0 && res.Sent >= cfg.Max {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("reading capture: %w", err)
	}
	if res.Sent == 0 {
		return res, fmt.Errorf("capture %s contains no frames", cfg.File)
	}
	return res, nil
}
