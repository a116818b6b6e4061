package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/prediction.engine/internal/config"
	"github.com/banshee-data/prediction.engine/internal/evaluator"
	"github.com/banshee-data/prediction.engine/internal/featurestore"
	"github.com/banshee-data/prediction.engine/internal/httputil"
	"github.com/banshee-data/prediction.engine/internal/prediction"
	"github.com/banshee-data/prediction.engine/internal/report"
	"github.com/banshee-data/prediction.engine/internal/version"
)

var (
	listen      = flag.String("listen", ":8081", "HTTP listen address")
	configPath  = flag.String("config", "", "Path to a prediction config file (JSON or YAML; default: bundled defaults)")
	dbFile      = flag.String("db", "prediction_features.db", "Path to the SQLite feature store file")
	logInterval = flag.Int("log-interval", 5, "Statistics logging interval in seconds")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// formatWithCommas formats a number with thousands separators
func formatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}

// perceptionIngest returns the POST /perception handler. The engine
// requires serialized cycles, so overlapping posts take the lock in
// arrival order.
func perceptionIngest(engine *prediction.Engine) http.HandlerFunc {
	var mu sync.Mutex
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}

		var frame prediction.PerceptionFrame
		if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid perception frame: %v", err))
			return
		}

		mu.Lock()
		err := engine.ProcessFrame(&frame)
		mu.Unlock()
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}

		httputil.WriteJSONOK(w, map[string]interface{}{
			"status":    "ok",
			"timestamp": frame.Timestamp,
			"obstacles": len(frame.Obstacles),
		})
	}
}

type flusherStatus struct {
	Running bool  `json:"running"`
	Pending int   `json:"pending"`
	Dropped int64 `json:"dropped"`
}

type statusResponse struct {
	Service    string                   `json:"service"`
	Version    string                   `json:"version"`
	Mode       string                   `json:"mode"`
	RunID      string                   `json:"run_id"`
	Engine     prediction.StatsSnapshot `json:"engine"`
	Evaluators []evaluator.Type         `json:"evaluators"`
	Flusher    flusherStatus            `json:"flusher"`
}

// statsHandler reports cumulative engine counters, the registered
// strategies and the flusher queue state. It reads a non-destructive
// snapshot so polling does not disturb the periodic logging window.
func statsHandler(engine *prediction.Engine, flusher *featurestore.Flusher, mode, runID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, statusResponse{
			Service:    "predictor",
			Version:    version.Version,
			Mode:       mode,
			RunID:      runID,
			Engine:     engine.Stats().Snapshot(),
			Evaluators: engine.Registry().Types(),
			Flusher: flusherStatus{
				Running: flusher.IsRunning(),
				Pending: flusher.Pending(),
				Dropped: flusher.Dropped(),
			},
		})
	}
}

// statsLoop logs windowed engine rates on the configured interval. Quiet
// windows are skipped so an idle predictor stays silent.
func statsLoop(ctx context.Context, engine *prediction.Engine, flusher *featurestore.Flusher) {
	ticker := time.NewTicker(time.Duration(*logInterval) * time.Second)
	defer ticker.Stop()

	var lastDropped int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := engine.Stats().GetAndReset()
			if snap.Cycles == 0 && snap.Failed == 0 {
				continue
			}

			cyclesPerSec := float64(snap.Cycles) / snap.Window.Seconds()
			predsPerSec := int64(float64(snap.Produced) / snap.Window.Seconds())
			logMsg := fmt.Sprintf("Prediction stats (/sec): %.1f cycles, %s predictions",
				cyclesPerSec, formatWithCommas(predsPerSec))

			if snap.Declined > 0 || snap.Skipped > 0 {
				logMsg += fmt.Sprintf(", %d declined, %d skipped", snap.Declined, snap.Skipped)
			}
			if snap.FramesOut > 0 {
				logMsg += fmt.Sprintf(", %d frames out", snap.FramesOut)
			}
			if snap.Failed > 0 {
				logMsg += fmt.Sprintf(", %d failed", snap.Failed)
			}
			if dropped := flusher.Dropped(); dropped > lastDropped {
				logMsg += fmt.Sprintf(", %d dropped by flusher", dropped-lastDropped)
				lastDropped = dropped
			}

			log.Print(logMsg)
		}
	}
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("predictor %s\n", version.String())
		return
	}

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}

	// Load configuration
	var cfg *config.PredictionConfig
	if *configPath != "" {
		loaded, err := config.LoadPredictionConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
		log.Printf("Loaded config from %s", *configPath)
	} else {
		cfg = config.MustLoadDefaultConfig()
		log.Printf("Loaded bundled default config")
	}
	mode := cfg.GetOperatingMode()

	// Initialize the feature store and open a recording run
	store, err := featurestore.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open feature store: %v", err)
	}
	defer store.Close()

	if err := store.MigrateUp(); err != nil {
		log.Fatalf("Failed to migrate feature store: %v", err)
	}

	runID, err := store.BeginRun(mode)
	if err != nil {
		log.Fatalf("Failed to begin run: %v", err)
	}
	log.Printf("Feature store %s ready, run %s (mode %s)", *dbFile, runID, mode)

	flusher := featurestore.NewFlusher(featurestore.FlusherConfig{
		Writer:   store,
		Interval: cfg.GetFlushInterval(),
	})

	engine := prediction.NewEngine(cfg, flusher)
	defer engine.Close()

	if engine.Grid() != nil {
		log.Println("Semantic occupancy grid enabled")
	} else {
		log.Println("Semantic occupancy grid disabled (set semantic_map in config to enable)")
	}

	// Create a wait group for the flusher and HTTP server routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start flusher routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := flusher.Run(ctx); err != nil {
			log.Printf("Flusher error: %v", err)
		}
		log.Print("Flusher routine terminated")
	}()

	// Start periodic statistics logging
	go statsLoop(ctx, engine, flusher)

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// Perception frame ingestion
		mux.HandleFunc("/perception", perceptionIngest(engine))

		// Health check endpoint
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"status": "ok", "service": "predictor", "version": "%s", "timestamp": "%s"}`,
				version.Version, time.Now().UTC().Format(time.RFC3339))
		})

		// Engine and flusher statistics
		mux.HandleFunc("/stats", statsHandler(engine, flusher, mode, runID))

		// Debug charts and the feature store admin surface
		report.NewHandlers(engine, store).Register(mux)
		store.AttachAdminRoutes(mux)

		// Basic info endpoint
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html")

			gridStatus := "disabled"
			if engine.Grid() != nil {
				gridStatus = "enabled"
			}

			fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head><title>Prediction Engine</title></head>
<body>
	<h1>Prediction Engine</h1>
	<p>Run %s in %s mode</p>
	<p>Feature store: %s</p>
	<p>Semantic grid: %s</p>
	<p>POST perception frames to <code>/perception</code></p>
	<ul>
		<li><a href="/healthz">Health check</a></li>
		<li><a href="/stats">Engine statistics</a></li>
		<li><a href="/debug/charts/">Debug charts</a></li>
		<li><a href="/debug/">Debug index</a></li>
	</ul>
</body>
</html>`, runID, mode, *dbFile, gridStatus)
		})

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("Starting HTTP server on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a shorter timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
