// Package featurestore persists per-cycle frame environments to SQLite:
// a compact wire-encoded payload per frame for offline training export,
// plus flattened obstacle rows for live SQL inspection. Writes arrive
// through the background flusher so a slow disk never blocks a
// prediction cycle.
package featurestore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// Store wraps the SQLite handle and the active run.
type Store struct {
	*sql.DB

	path  string
	runID string
}

// Open opens (or creates) the database at path and applies the
// connection pragmas. Schema setup is a separate MigrateUp call.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature store: %w", err)
	}

	// WAL keeps readers (tailsql, the report tool) from blocking the
	// flusher's writes.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return &Store{DB: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// BeginRun opens a new recording run and makes it the insert target for
// subsequent frames. The run id is returned for logging and lookup.
func (s *Store) BeginRun(mode string) (string, error) {
	runID := uuid.New().String()
	if _, err := s.Exec("INSERT INTO runs (run_id, mode, started_at) VALUES (?, ?, ?)",
		runID, mode, time.Now().Unix()); err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	s.runID = runID
	return runID, nil
}

// RunID returns the active run id, or "" before BeginRun.
func (s *Store) RunID() string {
	return s.runID
}

// InsertFrameEnv stores one frame environment under the active run: the
// encoded payload plus one flattened row per obstacle (newest record
// only) for SQL queries.
func (s *Store) InsertFrameEnv(env obstacle.FrameEnvironment) error {
	if s.runID == "" {
		return fmt.Errorf("no active run, call BeginRun first")
	}

	payload := EncodeFrameEnvironment(&env)

	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin frame insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO frame_envs (run_id, timestamp, obstacle_count, trainable_count, payload) VALUES (?, ?, ?, ?, ?)",
		s.runID, env.Timestamp, len(env.Others), env.TrainableCount(), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert frame: %w", err)
	}
	frameID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read frame id: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO obstacle_records (frame_id, obstacle_id, timestamp, x, y, heading, trainable) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	insertNewest := func(h obstacle.History) error {
		if len(h.Records) == 0 {
			return nil
		}
		rec := h.Records[0]
		_, err := stmt.Exec(frameID, rec.ObstacleID, rec.Timestamp,
			rec.Position.X, rec.Position.Y, rec.Heading, h.Trainable)
		return err
	}
	if err := insertNewest(env.Ego); err != nil {
		return fmt.Errorf("failed to insert ego record: %w", err)
	}
	for _, h := range env.Others {
		if err := insertNewest(h); err != nil {
			return fmt.Errorf("failed to insert obstacle record: %w", err)
		}
	}

	return tx.Commit()
}

// RunSummary describes one recording run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Mode      string    `json:"mode"`
	StartedAt time.Time `json:"started_at"`
	Frames    int64     `json:"frames"`
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs() ([]RunSummary, error) {
	rows, err := s.Query(`
		SELECT r.run_id, r.mode, r.started_at, COUNT(f.frame_id)
		FROM runs r
		LEFT JOIN frame_envs f ON f.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var startedAtUnix int64
		if err := rows.Scan(&run.RunID, &run.Mode, &startedAtUnix, &run.Frames); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(startedAtUnix, 0)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// FrameRow is one stored frame with its payload still encoded.
type FrameRow struct {
	FrameID        int64
	RunID          string
	Timestamp      float64
	ObstacleCount  int64
	TrainableCount int64
	Payload        []byte
}

// FramesForRun returns up to limit frames of a run in ascending cycle
// order. A limit of zero or less means no limit.
func (s *Store) FramesForRun(runID string, limit int) ([]FrameRow, error) {
	query := `SELECT frame_id, run_id, timestamp, obstacle_count, trainable_count, payload
		FROM frame_envs WHERE run_id = ? ORDER BY timestamp ASC`
	args := []interface{}{runID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []FrameRow
	for rows.Next() {
		var fr FrameRow
		if err := rows.Scan(&fr.FrameID, &fr.RunID, &fr.Timestamp,
			&fr.ObstacleCount, &fr.TrainableCount, &fr.Payload); err != nil {
			return nil, err
		}
		frames = append(frames, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// TracePoint is one obstacle observation from the flattened records.
type TracePoint struct {
	ObstacleID int
	Timestamp  float64
	X          float64
	Y          float64
	Heading    float64
}

// Traces returns the flattened obstacle records of a run ordered by
// obstacle then time, for position plotting.
func (s *Store) Traces(runID string) ([]TracePoint, error) {
	rows, err := s.Query(`
		SELECT o.obstacle_id, o.timestamp, o.x, o.y, o.heading
		FROM obstacle_records o
		JOIN frame_envs f ON f.frame_id = o.frame_id
		WHERE f.run_id = ?
		ORDER BY o.obstacle_id ASC, o.timestamp ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []TracePoint
	for rows.Next() {
		var p TracePoint
		if err := rows.Scan(&p.ObstacleID, &p.Timestamp, &p.X, &p.Y, &p.Heading); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}
