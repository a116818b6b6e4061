package featurestore

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/prediction.engine/internal/security"
)

// AttachAdminRoutes mounts the debug surface for the feature store on
// mux: a tailSQL console for live queries, a backup download and an
// NDJSON training export.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB(fmt.Sprintf("sqlite://%s", s.path), s.DB, &tailsql.DBOptions{
		Label: "Feature Store",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the feature store now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("prediction-backup-%d.db", unixTime)
		if _, err := s.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		// Send the backup file to the client
		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := gzipWriter.Write([]byte{}); err != nil {
			// Need to write something to initialize the gzip header
			http.Error(w, fmt.Sprintf("Failed to initialize gzip writer: %v", err), http.StatusInternalServerError)
			return
		}

		// Copy the backup file content to the gzip writer
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))

	debug.Handle("export", "Download a run's decoded frames as NDJSON training data (?run= selects a run, default latest)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID := r.URL.Query().Get("run")
		if runID == "" {
			runs, err := s.Runs()
			if err != nil || len(runs) == 0 {
				http.Error(w, "No recorded runs to export", http.StatusNotFound)
				return
			}
			runID = runs[0].RunID
		}

		name := fmt.Sprintf("run-%s-%d.ndjson", security.SanitizeFilename(runID), time.Now().Unix())
		exportPath, n, err := s.ExportRunNDJSON(runID, name)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to export run: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Encoding", "gzip")

		exportFile, err := os.Open(exportPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open export file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the export file after sending it
		// and remove it from the filesystem
		defer func() {
			exportFile.Close()
			if err := os.Remove(exportPath); err != nil {
				log.Printf("Failed to remove export file: %v", err)
			}
		}()

		log.Printf("Serving NDJSON export of run %s (%d frames)", runID, n)
		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, exportFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write export: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
