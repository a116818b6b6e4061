package featurestore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
	"github.com/banshee-data/prediction.engine/internal/security"
)

// defaultExportDir is the base directory for NDJSON training exports.
// Exports are restricted to a single directory so HTTP-triggered requests
// cannot write outside controlled locations, even with arbitrary paths.
var defaultExportDir = func() string {
	tmp := os.TempDir()
	abs, err := filepath.Abs(tmp)
	if err != nil {
		log.Printf("export: could not resolve absolute temp dir from %q: %v", tmp, err)
		return tmp
	}
	return filepath.Clean(abs)
}()

// safeExportPath constructs a safe absolute path for an export file from a
// user-supplied path string. Only the final path component is honoured,
// and the result is validated with the shared security.ValidateExportPath
// helper.
func safeExportPath(userPath string) (string, error) {
	if userPath == "" {
		return "", fmt.Errorf("empty export path")
	}
	base := filepath.Base(userPath)
	if base == "." || base == ".." || base == "" {
		return "", fmt.Errorf("invalid export filename")
	}

	joined := filepath.Join(defaultExportDir, base)
	absPath, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("cannot resolve export path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	baseDirAbs, err := filepath.Abs(defaultExportDir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve export base directory: %w", err)
	}
	baseDirAbs = filepath.Clean(baseDirAbs)
	if !strings.HasPrefix(cleanPath, baseDirAbs+string(os.PathSeparator)) && cleanPath != baseDirAbs {
		return "", fmt.Errorf("export path escapes base directory")
	}

	if err := security.ValidateExportPath(cleanPath); err != nil {
		log.Printf("Security: rejected export path %s (from %s): %v", cleanPath, userPath, err)
		return "", fmt.Errorf("invalid export path: %w", err)
	}
	return cleanPath, nil
}

// exportLine is one NDJSON record: the decoded frame environment plus its
// row identity in the store.
type exportLine struct {
	FrameID int64 `json:"frame_id"`
	*obstacle.FrameEnvironment
}

// WriteRunNDJSON streams every frame of a run to w as newline-delimited
// JSON, one decoded environment per line in ascending cycle order, and
// returns the number of lines written. A payload that fails to decode
// aborts the export.
func (s *Store) WriteRunNDJSON(w io.Writer, runID string) (int, error) {
	frames, err := s.FramesForRun(runID, 0)
	if err != nil {
		return 0, fmt.Errorf("loading frames for run %s: %w", runID, err)
	}
	if len(frames) == 0 {
		return 0, fmt.Errorf("no frames recorded for run %s", runID)
	}

	enc := json.NewEncoder(w)
	for i, fr := range frames {
		env, err := DecodeFrameEnvironment(fr.Payload)
		if err != nil {
			return i, fmt.Errorf("frame %d payload: %w", fr.FrameID, err)
		}
		if err := enc.Encode(exportLine{FrameID: fr.FrameID, FrameEnvironment: env}); err != nil {
			return i, fmt.Errorf("encoding frame %d: %w", fr.FrameID, err)
		}
	}
	return len(frames), nil
}

// ExportRunNDJSON writes a run's frames as NDJSON to a file anchored under
// the export directory. Only the base name of userPath is used. Returns
// the resolved path and the number of frames written; a partial file left
// by a failed export is removed.
func (s *Store) ExportRunNDJSON(runID, userPath string) (string, int, error) {
	safePath, err := safeExportPath(userPath)
	if err != nil {
		return "", 0, err
	}

	f, err := os.Create(safePath)
	if err != nil {
		return "", 0, err
	}

	bw := bufio.NewWriter(f)
	n, err := s.WriteRunNDJSON(bw, runID)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(safePath)
		return "", 0, err
	}

	log.Printf("Exported %d frames of run %s to %s", n, runID, safePath)
	return safePath, n, nil
}
