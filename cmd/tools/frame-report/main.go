// Package main provides an offline report generator for recorded
// prediction runs. It reads frame environments back from a feature
// store, decodes the wire payloads, computes per-run summary statistics
// and writes an HTML report plus an optional PNG histogram.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/prediction.engine/internal/featurestore"
	"github.com/banshee-data/prediction.engine/internal/units"
)

const echartsAssets = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Config holds configuration for the report run.
type Config struct {
	DBPath     string
	RunID      string
	OutDir     string
	Limit      int
	Plot       bool
	Units      string
	Timezone   string
	MinSpeed   float64
	OutputJSON string
}

// CountStats summarises one per-cycle count series.
type CountStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// RunReport holds everything the console, HTML and PNG outputs render.
type RunReport struct {
	RunID        string  `json:"run_id"`
	Mode         string  `json:"mode"`
	StartedAt    string  `json:"started_at"`
	Frames       int     `json:"frames"`
	DecodeErrors int     `json:"decode_errors,omitempty"`
	FirstCycle   float64 `json:"first_cycle"`
	LastCycle    float64 `json:"last_cycle"`

	ObstacleCounts  CountStats `json:"obstacle_counts"`
	TrainableCounts CountStats `json:"trainable_counts"`
	TrainableFrac   float64    `json:"trainable_fraction"`

	UniqueObstacles int     `json:"unique_obstacles"`
	SpeedSamples    int     `json:"speed_samples"`
	MeanSpeed       float64 `json:"mean_speed"`
	MaxSpeed        float64 `json:"max_speed"`
	MovingFrac      float64 `json:"moving_fraction,omitempty"`
	SpeedUnits      string  `json:"speed_units"`

	// Chart series, parallel slices indexed by frame / speed sample.
	cycleTimes      []float64
	obstacleSeries  []float64
	trainableSeries []float64
	speedTimes      []float64
	speedSeries     []float64
}

func main() {
	cfg := parseFlags()

	if cfg.DBPath == "" {
		log.Fatal("feature store path is required (-db)")
	}
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		log.Fatalf("feature store not found: %s", cfg.DBPath)
	}
	if !units.IsValid(cfg.Units) {
		log.Fatalf("invalid units %q, valid units are: %s", cfg.Units, units.GetValidUnitsString())
	}
	if !units.IsTimezoneValid(cfg.Timezone) {
		log.Fatalf("invalid timezone %q", cfg.Timezone)
	}

	// Create output directory if needed
	if cfg.OutDir != "" {
		if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	report, err := buildReport(cfg)
	if err != nil {
		log.Fatalf("Report failed: %v", err)
	}

	printReport(report)

	htmlPath := filepath.Join(cfg.OutDir, fmt.Sprintf("run_%s.html", shortID(report.RunID)))
	if err := writeHTMLReport(report, htmlPath); err != nil {
		log.Fatalf("Failed to write HTML report: %v", err)
	}
	log.Printf("HTML report written to: %s", htmlPath)

	if cfg.Plot {
		pngPath := filepath.Join(cfg.OutDir, fmt.Sprintf("run_%s_counts.png", shortID(report.RunID)))
		if err := writeCountHistogram(report, pngPath); err != nil {
			log.Fatalf("Failed to write histogram: %v", err)
		}
		log.Printf("Histogram written to: %s", pngPath)
	}

	if cfg.OutputJSON != "" {
		outputPath := cfg.OutputJSON
		if cfg.OutDir != "" {
			outputPath = filepath.Join(cfg.OutDir, cfg.OutputJSON)
		}
		if err := exportJSON(report, outputPath); err != nil {
			log.Printf("Warning: failed to export JSON: %v", err)
		} else {
			log.Printf("Results exported to: %s", outputPath)
		}
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.DBPath, "db", "", "Path to the feature store SQLite file (required)")
	flag.StringVar(&cfg.RunID, "run", "", "Run id to report on (default: latest run)")
	flag.StringVar(&cfg.OutDir, "out", ".", "Output directory for report files")
	flag.IntVar(&cfg.Limit, "limit", 0, "Maximum frames to read (0 = all)")
	flag.BoolVar(&cfg.Plot, "plot", false, "Also write a PNG histogram of per-cycle obstacle counts")
	flag.StringVar(&cfg.Units, "units", units.MPS, "Speed units for display: "+units.GetValidUnitsString())
	flag.StringVar(&cfg.Timezone, "tz", "UTC", "Timezone for run timestamps (IANA name, e.g. America/New_York)")
	flag.Float64Var(&cfg.MinSpeed, "min-speed", 0, "Count observations above this speed (in -units) as moving")
	flag.StringVar(&cfg.OutputJSON, "json", "", "Output JSON filename (e.g., report.json)")

	flag.Parse()
	return cfg
}

// shortID trims a run uuid to its first block for filenames.
func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

// pickRun resolves the requested run, defaulting to the newest one.
func pickRun(store *featurestore.Store, runID string) (featurestore.RunSummary, error) {
	runs, err := store.Runs()
	if err != nil {
		return featurestore.RunSummary{}, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return featurestore.RunSummary{}, fmt.Errorf("store has no recorded runs")
	}
	if runID == "" {
		return runs[0], nil
	}
	for _, r := range runs {
		if r.RunID == runID {
			return r, nil
		}
	}
	return featurestore.RunSummary{}, fmt.Errorf("run %s not found", runID)
}

func buildReport(cfg Config) (*RunReport, error) {
	store, err := featurestore.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	run, err := pickRun(store, cfg.RunID)
	if err != nil {
		return nil, err
	}

	frames, err := store.FramesForRun(run.RunID, cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("run %s has no recorded frames", run.RunID)
	}

	startedAt, err := units.ConvertTime(run.StartedAt.UTC(), cfg.Timezone)
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		RunID:      run.RunID,
		Mode:       run.Mode,
		StartedAt:  fmt.Sprintf("%s %s", startedAt.Format("2006-01-02 15:04:05"), units.GetTimezoneLabel(cfg.Timezone)),
		Frames:     len(frames),
		SpeedUnits: cfg.Units,
	}

	// The count columns are written alongside the payload; the decoded
	// environment is authoritative for the report.
	for _, fr := range frames {
		env, err := featurestore.DecodeFrameEnvironment(fr.Payload)
		if err != nil {
			report.DecodeErrors++
			log.Printf("Warning: frame %d payload undecodable: %v", fr.FrameID, err)
			continue
		}
		report.cycleTimes = append(report.cycleTimes, env.Timestamp)
		report.obstacleSeries = append(report.obstacleSeries, float64(len(env.Others)))
		report.trainableSeries = append(report.trainableSeries, float64(env.TrainableCount()))
	}
	if len(report.cycleTimes) == 0 {
		return nil, fmt.Errorf("run %s: no frame payload decoded", run.RunID)
	}

	report.FirstCycle = report.cycleTimes[0]
	report.LastCycle = report.cycleTimes[len(report.cycleTimes)-1]
	report.ObstacleCounts = summarize(report.obstacleSeries)
	report.TrainableCounts = summarize(report.trainableSeries)
	if total := floats.Sum(report.obstacleSeries); total > 0 {
		report.TrainableFrac = floats.Sum(report.trainableSeries) / total
	}

	traces, err := store.Traces(run.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read traces: %w", err)
	}
	report.addSpeeds(traces, cfg)

	return report, nil
}

// summarize computes distribution stats for one count series.
// stat.Quantile requires sorted input, so it works on a copy.
func summarize(series []float64) CountStats {
	if len(series) == 0 {
		return CountStats{}
	}
	sorted := make([]float64, len(series))
	copy(sorted, series)
	sort.Float64s(sorted)

	cs := CountStats{
		Mean: stat.Mean(sorted, nil),
		Min:  sorted[0],
		P50:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:  stat.Quantile(0.9, stat.Empirical, sorted, nil),
		Max:  sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		cs.StdDev = stat.StdDev(sorted, nil)
	}
	return cs
}

// addSpeeds derives observation speeds from consecutive trace points of
// the same obstacle. Traces come back ordered by obstacle then time, so
// one linear pass covers every segment.
func (r *RunReport) addSpeeds(traces []featurestore.TracePoint, cfg Config) {
	minMPS := units.ConvertToMPS(cfg.MinSpeed, cfg.Units)

	seen := make(map[int]bool)
	moving := 0
	var speeds []float64 // m/s
	for i := 1; i < len(traces); i++ {
		prev, cur := traces[i-1], traces[i]
		seen[cur.ObstacleID] = true
		if cur.ObstacleID != prev.ObstacleID {
			continue
		}
		dt := cur.Timestamp - prev.Timestamp
		if dt <= 0 {
			continue
		}
		speed := math.Hypot(cur.X-prev.X, cur.Y-prev.Y) / dt
		speeds = append(speeds, speed)
		if speed >= minMPS {
			moving++
		}
		r.speedTimes = append(r.speedTimes, cur.Timestamp)
		r.speedSeries = append(r.speedSeries, units.ConvertSpeed(speed, cfg.Units))
	}
	if len(traces) > 0 {
		seen[traces[0].ObstacleID] = true
	}

	r.UniqueObstacles = len(seen)
	r.SpeedSamples = len(speeds)
	if len(speeds) == 0 {
		return
	}
	r.MeanSpeed = units.ConvertSpeed(stat.Mean(speeds, nil), cfg.Units)
	r.MaxSpeed = units.ConvertSpeed(floats.Max(speeds), cfg.Units)
	if cfg.MinSpeed > 0 {
		r.MovingFrac = float64(moving) / float64(len(speeds))
	}
}

func printReport(r *RunReport) {
	fmt.Println("\n=== Prediction Run Report ===")
	fmt.Printf("Run: %s (%s mode)\n", r.RunID, r.Mode)
	fmt.Printf("Started: %s\n", r.StartedAt)
	fmt.Printf("Frames: %d", r.Frames)
	if r.DecodeErrors > 0 {
		fmt.Printf(" (%d payloads undecodable)", r.DecodeErrors)
	}
	fmt.Println()
	fmt.Printf("Cycle range: %.3f to %.3f (%.1fs)\n", r.FirstCycle, r.LastCycle, r.LastCycle-r.FirstCycle)

	fmt.Println("\n--- Per-Cycle Obstacle Counts ---")
	printCountStats(r.ObstacleCounts)

	fmt.Println("\n--- Per-Cycle Trainable Counts ---")
	printCountStats(r.TrainableCounts)
	fmt.Printf("Trainable fraction: %.1f%%\n", r.TrainableFrac*100)

	fmt.Println("\n--- Motion ---")
	fmt.Printf("Unique obstacles: %d\n", r.UniqueObstacles)
	fmt.Printf("Speed samples: %d\n", r.SpeedSamples)
	if r.SpeedSamples > 0 {
		fmt.Printf("Mean speed: %.2f %s\n", r.MeanSpeed, r.SpeedUnits)
		fmt.Printf("Max speed: %.2f %s\n", r.MaxSpeed, r.SpeedUnits)
	}
	if r.MovingFrac > 0 {
		fmt.Printf("Moving fraction: %.1f%%\n", r.MovingFrac*100)
	}
}

func printCountStats(cs CountStats) {
	fmt.Printf("  Mean: %.2f  StdDev: %.2f\n", cs.Mean, cs.StdDev)
	fmt.Printf("  Min: %.0f  P50: %.0f  P90: %.0f  Max: %.0f\n", cs.Min, cs.P50, cs.P90, cs.Max)
}

// writeHTMLReport renders the per-cycle count series and the derived
// observation speeds as an echarts page.
func writeHTMLReport(r *RunReport, path string) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Prediction Run Report",
			Theme:     "dark",
			Width:     "1200px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Per-Cycle Obstacle Counts",
			Subtitle: fmt.Sprintf("run=%s mode=%s frames=%d", shortID(r.RunID), r.Mode, r.Frames),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Cycle (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Obstacles"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := make([]string, len(r.cycleTimes))
	obstacleData := make([]opts.LineData, len(r.cycleTimes))
	trainableData := make([]opts.LineData, len(r.cycleTimes))
	for i, ts := range r.cycleTimes {
		labels[i] = fmt.Sprintf("%.1f", ts)
		obstacleData[i] = opts.LineData{Value: r.obstacleSeries[i]}
		trainableData[i] = opts.LineData{Value: r.trainableSeries[i]}
	}
	line.SetXAxis(labels).
		AddSeries("Obstacles", obstacleData).
		AddSeries("Trainable", trainableData)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  "dark",
			Width:  "1200px",
			Height: "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Obstacle Speeds",
			Subtitle: fmt.Sprintf("%d samples derived from recorded traces", r.SpeedSamples),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Cycle (s)",
			Min:  math.Floor(r.FirstCycle),
			Max:  math.Ceil(r.LastCycle),
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Speed (%s)", r.SpeedUnits)}),
	)
	speedData := make([]opts.ScatterData, len(r.speedSeries))
	for i := range r.speedSeries {
		speedData[i] = opts.ScatterData{
			Value:      []interface{}{r.speedTimes[i], r.speedSeries[i]},
			SymbolSize: 5,
		}
	}
	scatter.AddSeries("Speed", speedData)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	page := components.NewPage()
	page.SetAssetsHost(echartsAssets)
	page.AddCharts(line, scatter)
	return page.Render(f)
}

// writeCountHistogram renders the distribution of per-cycle obstacle
// counts as a PNG.
func writeCountHistogram(r *RunReport, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Per-Cycle Obstacle Counts (run %s)", shortID(r.RunID))
	p.X.Label.Text = "Obstacles per cycle"
	p.Y.Label.Text = "Cycles"

	bins := 16
	if len(r.obstacleSeries) < bins {
		bins = len(r.obstacleSeries)
	}
	h, err := plotter.NewHist(plotter.Values(r.obstacleSeries), bins)
	if err != nil {
		return err
	}
	h.FillColor = color.RGBA{R: 64, G: 130, B: 220, A: 255}
	p.Add(h)

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}

func exportJSON(r *RunReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}
