// Package store archives finished report runs in a local SQLite database
// so past reports can be listed, previewed, and compared without the
// source exports.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound reports a run ID with no archived row.
var ErrNotFound = errors.New("store: run not found")

// RunRecord is one archived run: the document plus the coverage and
// degradation facts needed to judge it later.
type RunRecord struct {
	ID               string
	GeneratedAt      time.Time
	PeriodStart      string
	PeriodEnd        string
	CompareStart     string
	CompareEnd       string
	CitationMode     string
	CitedClaims      int
	AvailableIDs     int
	DistinctCited    int
	UtilizationRate  float64
	InvalidCitations []string
	DegradedSources  []string
	Report           string
}

// Store wraps the SQLite archive. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (creating if needed) the archive at path.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set journal_mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			generated_at TEXT NOT NULL,
			period_start TEXT NOT NULL,
			period_end TEXT NOT NULL,
			compare_start TEXT NOT NULL DEFAULT '',
			compare_end TEXT NOT NULL DEFAULT '',
			citation_mode TEXT NOT NULL,
			cited_claims INTEGER NOT NULL,
			available_ids INTEGER NOT NULL,
			distinct_cited INTEGER NOT NULL,
			utilization_rate REAL NOT NULL,
			invalid_citations TEXT NOT NULL DEFAULT '[]',
			degraded_sources TEXT NOT NULL DEFAULT '[]',
			report TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_generated_at ON runs(generated_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: initialize schema: %w", err)
		}
	}
	return nil
}

// SaveRun inserts or replaces one archived run.
func (s *Store) SaveRun(rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invalid, err := json.Marshal(stringSlice(rec.InvalidCitations))
	if err != nil {
		return fmt.Errorf("store: encode invalid citations: %w", err)
	}
	degraded, err := json.Marshal(stringSlice(rec.DegradedSources))
	if err != nil {
		return fmt.Errorf("store: encode degraded sources: %w", err)
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO runs (
			id, generated_at, period_start, period_end, compare_start, compare_end,
			citation_mode, cited_claims, available_ids, distinct_cited,
			utilization_rate, invalid_citations, degraded_sources, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.GeneratedAt.UTC().Format(time.RFC3339),
		rec.PeriodStart, rec.PeriodEnd,
		rec.CompareStart, rec.CompareEnd,
		rec.CitationMode,
		rec.CitedClaims, rec.AvailableIDs, rec.DistinctCited,
		rec.UtilizationRate,
		string(invalid), string(degraded),
		rec.Report,
	)
	if err != nil {
		return fmt.Errorf("store: save run %s: %w", rec.ID, err)
	}
	return nil
}

const runColumns = `id, generated_at, period_start, period_end, compare_start, compare_end,
	citation_mode, cited_claims, available_ids, distinct_cited,
	utilization_rate, invalid_citations, degraded_sources`

// GetRun loads one archived run, document included.
func (s *Store) GetRun(id string) (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+runColumns+`, report FROM runs WHERE id = ?`, id)
	return scanRun(row, true)
}

// LatestRun loads the most recently generated run, document included.
func (s *Store) LatestRun() (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT ` + runColumns + `, report FROM runs ORDER BY generated_at DESC, id DESC LIMIT 1`)
	return scanRun(row, true)
}

// ListRuns returns the newest runs first, up to limit, without the report
// bodies.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY generated_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, withReport bool) (RunRecord, error) {
	var rec RunRecord
	var generatedAt, invalid, degraded string

	dest := []any{
		&rec.ID, &generatedAt, &rec.PeriodStart, &rec.PeriodEnd,
		&rec.CompareStart, &rec.CompareEnd,
		&rec.CitationMode, &rec.CitedClaims, &rec.AvailableIDs, &rec.DistinctCited,
		&rec.UtilizationRate, &invalid, &degraded,
	}
	if withReport {
		dest = append(dest, &rec.Report)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, ErrNotFound
		}
		return RunRecord{}, fmt.Errorf("store: scan run: %w", err)
	}

	t, err := time.Parse(time.RFC3339, generatedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("store: parse generated_at: %w", err)
	}
	rec.GeneratedAt = t

	if err := json.Unmarshal([]byte(invalid), &rec.InvalidCitations); err != nil {
		return RunRecord{}, fmt.Errorf("store: decode invalid citations: %w", err)
	}
	if err := json.Unmarshal([]byte(degraded), &rec.DegradedSources); err != nil {
		return RunRecord{}, fmt.Errorf("store: decode degraded sources: %w", err)
	}
	if len(rec.InvalidCitations) == 0 {
		rec.InvalidCitations = nil
	}
	if len(rec.DegradedSources) == 0 {
		rec.DegradedSources = nil
	}
	return rec, nil
}

// stringSlice keeps JSON encoding of nil slices as [] instead of null.
func stringSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
