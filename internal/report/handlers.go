package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/prediction.engine/internal/featurestore"
	"github.com/banshee-data/prediction.engine/internal/prediction"
	"github.com/banshee-data/prediction.engine/internal/units"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// viridisRamp is the color scale shared by the visual-map charts.
var viridisRamp = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// Handlers exposes the debug chart endpoints. The store is optional;
// trace charts answer 503 without one.
type Handlers struct {
	engine *prediction.Engine
	store  *featurestore.Store
}

// NewHandlers creates chart handlers over a running engine and an
// optional feature store.
func NewHandlers(engine *prediction.Engine, store *featurestore.Store) *Handlers {
	return &Handlers{engine: engine, store: store}
}

// Register mounts the chart endpoints on mux under /debug/charts/.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/debug/charts/", h.handleDashboard)
	mux.HandleFunc("/debug/charts/trajectories", h.handleTrajectoriesChart)
	mux.HandleFunc("/debug/charts/grid", h.handleGridChart)
	mux.HandleFunc("/debug/charts/outcomes", h.handleOutcomesChart)
	mux.HandleFunc("/debug/charts/traces", h.handleTracesChart)
}

func (h *Handlers) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleDashboard renders a simple dashboard with iframes to the debug charts.
func (h *Handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/debug/charts/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}

// handleTrajectoriesChart renders the committed predictions of the
// current cycle as scatter points colored by trajectory probability.
// Query params:
//   - units (optional; mps, mph, kmph or kph; default mps)
func (h *Handlers) handleTrajectoriesChart(w http.ResponseWriter, r *http.Request) {
	displayUnits := r.URL.Query().Get("units")
	if displayUnits == "" {
		displayUnits = units.MPS
	}

	data := PrepareTrajectoriesChartData(h.engine.Obstacles(), displayUnits)
	if data.NumPoints == 0 {
		h.writeJSONError(w, http.StatusNotFound, "no predicted trajectories available")
		return
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Predicted Trajectories", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Predicted Trajectories", Subtitle: fmt.Sprintf("cycle=%.3f obstacles=%d points=%d mean speed=%.1f %s", data.Timestamp, data.NumObstacles, data.NumPoints, data.MeanSpeed, data.SpeedUnits)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -data.MaxAbs, Max: data.MaxAbs, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -data.MaxAbs, Max: data.MaxAbs, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisRamp},
		}),
	)
	scatter.AddSeries("trajectories", scatterData(data.Points), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		h.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleGridChart renders the published semantic occupancy grid as a
// scatter of occupied cells colored by hit count.
func (h *Handlers) handleGridChart(w http.ResponseWriter, r *http.Request) {
	grid := h.engine.Grid()
	if grid == nil {
		h.writeJSONError(w, http.StatusNotFound, "semantic grid not enabled")
		return
	}
	snap := grid.Snapshot()
	if snap == nil {
		h.writeJSONError(w, http.StatusNotFound, "no grid snapshot published yet")
		return
	}

	data := PrepareGridChartData(snap)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Semantic Occupancy Grid", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Semantic Occupancy Grid", Subtitle: fmt.Sprintf("ts=%.3f cells=%d", data.Timestamp, data.NumCells)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -data.MaxAbs, Max: data.MaxAbs, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -data.MaxAbs, Max: data.MaxAbs, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(data.MaxHits),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisRamp},
		}),
	)
	scatter.AddSeries("grid", scatterData(data.Points), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		h.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleOutcomesChart renders a bar chart of dispatch outcome counters
// in the current reporting window.
func (h *Handlers) handleOutcomesChart(w http.ResponseWriter, r *http.Request) {
	metrics := PrepareOutcomeMetrics(h.engine.Stats().Snapshot())

	x := []string{"Produced", "Declined", "Failed", "Skipped", "Frames Out"}
	y := []opts.BarData{
		{Value: metrics.Produced},
		{Value: metrics.Declined},
		{Value: metrics.Failed},
		{Value: metrics.Skipped},
		{Value: metrics.FramesOut},
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Dispatch Outcomes", Subtitle: fmt.Sprintf("cycles=%d window=%.0fs as of %s", metrics.Cycles, metrics.WindowSeconds, time.Now().Format(time.RFC3339))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("outcomes", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		h.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleTracesChart renders recorded obstacle traces for a run, colored
// by observation time.
// Query params:
//   - run_id (optional; defaults to the most recent run)
//   - max_points (optional; default 8000) to reduce payload size
func (h *Handlers) handleTracesChart(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeJSONError(w, http.StatusServiceUnavailable, "feature store not configured")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		runs, err := h.store.Runs()
		if err != nil {
			h.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
			return
		}
		if len(runs) == 0 {
			h.writeJSONError(w, http.StatusNotFound, "no recorded runs available")
			return
		}
		runID = runs[0].RunID
	}

	maxPoints := 8000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	points, err := h.store.Traces(runID)
	if err != nil {
		h.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get traces: %v", err))
		return
	}
	data := PrepareTraceChartData(points, runID, maxPoints)
	if data.NumPoints == 0 {
		h.writeJSONError(w, http.StatusNotFound, "no trace points for run")
		return
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Recorded Traces", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Recorded Traces", Subtitle: fmt.Sprintf("run=%s obstacles=%d points=%d stride=%d", data.RunID, data.NumObstacles, data.NumPoints, data.Stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -data.MaxAbs, Max: data.MaxAbs, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -data.MaxAbs, Max: data.MaxAbs, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(data.MinTime),
			Max:        float32(data.MaxTime),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisRamp},
		}),
	)
	scatter.AddSeries("traces", scatterData(data.Points), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		h.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// scatterData converts prepared points into the eCharts series format.
func scatterData(points []ScatterPoint) []opts.ScatterData {
	out := make([]opts.ScatterData, 0, len(points))
	for _, p := range points {
		out = append(out, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Value}})
	}
	return out
}
