package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sumannaidur/extractor/internal/shared"
)

// Store records abandoned tracks and per-run counters in SQLite. It is used
// for reporting only and never decides whether a track is processed.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one recorded pipeline invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Totals     shared.LanguageStats
	PerLang    map[string]shared.LanguageStats
}

// Failure is the latest failure of a track.
type Failure struct {
	TrackID   string
	Title     string
	Artist    string
	Language  string
	Year      int
	Stage     string
	LastError string
	Count     int
	FirstSeen time.Time
	LastSeen  time.Time
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    processed INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    abandoned INTEGER NOT NULL DEFAULT 0,
    no_tracks INTEGER NOT NULL DEFAULT 0,
    invalid_rows INTEGER NOT NULL DEFAULT 0,
    errors INTEGER NOT NULL DEFAULT 0,
    stats_json TEXT
)`, `
CREATE TABLE IF NOT EXISTS failures (
    track_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    artist TEXT NOT NULL,
    language TEXT NOT NULL,
    year INTEGER NOT NULL,
    stage TEXT NOT NULL,
    last_error TEXT NOT NULL,
    failure_count INTEGER NOT NULL DEFAULT 1,
    first_seen TEXT NOT NULL,
    last_seen TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_failures_count ON failures(failure_count DESC, last_seen DESC)`,
}

// Open initializes or connects to the ledger database.
func Open(path string) (*Store, error) {
	if err := shared.CreateDirIfNotExists(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// StartRun records the beginning of a run.
func (s *Store) StartRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)
         ON CONFLICT(id) DO UPDATE SET started_at = excluded.started_at`,
		runID, now())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (s *Store) FinishRun(ctx context.Context, summary *shared.RunSummary) error {
	totals := summary.Totals()
	perLang := make(map[string]shared.LanguageStats, len(summary.Stats))
	for lang, stats := range summary.Stats {
		perLang[lang] = *stats
	}
	statsJSON, err := json.Marshal(perLang)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	finished := summary.EndedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, skipped = ?, abandoned = ?,
             no_tracks = ?, invalid_rows = ?, errors = ?, stats_json = ?
         WHERE id = ?`,
		finished.UTC().Format(time.RFC3339Nano),
		totals.Processed, totals.Skipped, totals.Abandoned,
		totals.NoTracks, totals.InvalidRows, totals.Errors, string(statsJSON),
		summary.RunID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// RecordFailure upserts the latest failure of a track and bumps its count.
func (s *Store) RecordFailure(ctx context.Context, track shared.TrackRecord, stage string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failures (track_id, title, artist, language, year, stage, last_error, failure_count, first_seen, last_seen)
         VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
         ON CONFLICT(track_id) DO UPDATE SET
             stage = excluded.stage,
             last_error = excluded.last_error,
             failure_count = failures.failure_count + 1,
             last_seen = excluded.last_seen`,
		track.ID, track.Title, track.Artist, track.Language, track.Year, stage, message, ts, ts)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// ClearFailure forgets a track once it has been persisted.
func (s *Store) ClearFailure(ctx context.Context, trackID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM failures WHERE track_id = ?`, trackID); err != nil {
		return fmt.Errorf("clear failure: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, processed, skipped, abandoned, no_tracks, invalid_rows, errors, stats_json
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var finished, statsJSON sql.NullString
		if err := rows.Scan(&r.ID, &started, &finished,
			&r.Totals.Processed, &r.Totals.Skipped, &r.Totals.Abandoned,
			&r.Totals.NoTracks, &r.Totals.InvalidRows, &r.Totals.Errors, &statsJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		if finished.Valid {
			t := parseTime(finished.String)
			r.FinishedAt = &t
		}
		if statsJSON.Valid && statsJSON.String != "" {
			if err := json.Unmarshal([]byte(statsJSON.String), &r.PerLang); err != nil {
				return nil, fmt.Errorf("decode run stats: %w", err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// TopFailures returns the tracks that failed most often.
func (s *Store) TopFailures(ctx context.Context, limit int) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT track_id, title, artist, language, year, stage, last_error, failure_count, first_seen, last_seen
         FROM failures ORDER BY failure_count DESC, last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		var first, last string
		if err := rows.Scan(&f.TrackID, &f.Title, &f.Artist, &f.Language, &f.Year,
			&f.Stage, &f.LastError, &f.Count, &first, &last); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.FirstSeen = parseTime(first)
		f.LastSeen = parseTime(last)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// FailureCount returns the number of distinct failing tracks.
func (s *Store) FailureCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failures`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
