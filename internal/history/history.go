package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"smoothy/internal/logging"
	"smoothy/internal/metrics"
)

// Default timeout for ledger operations
const defaultTimeout = 5 * time.Second

// DefaultLimit is used by Recent when limit is not positive.
const DefaultLimit = 50

// MaxLimit caps Recent.
const MaxLimit = 500

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history store is closed")

// Record is the outcome of one finished job.
type Record struct {
	JobID          string    `json:"jobId"`
	Mode           string    `json:"mode"`
	Outcome        string    `json:"outcome"`
	StatusCode     int       `json:"statusCode"`
	InputBytes     int64     `json:"inputBytes"`
	OutputBytes    int64     `json:"outputBytes"`
	MediaDuration  float64   `json:"mediaDuration"`
	ElapsedSeconds float64   `json:"elapsedSeconds"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// Store is the SQLite ledger of job outcomes. It never holds job state.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS job_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	mode TEXT NOT NULL,
	outcome TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	input_bytes INTEGER NOT NULL DEFAULT 0,
	output_bytes INTEGER NOT NULL DEFAULT 0,
	media_duration REAL NOT NULL DEFAULT 0,
	elapsed_seconds REAL NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_history_finished ON job_history(finished_at DESC);
CREATE INDEX IF NOT EXISTS idx_job_history_outcome ON job_history(outcome);
`

// Open opens or creates the ledger at path. The parent directory is created
// if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	// busy_timeout keeps concurrent finishing jobs from hitting "database is locked"
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close history database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if _, err := db.ExecContext(pingCtx, schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close history database after schema failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	logging.Info("History ledger ready at %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Add appends a record. A nil Store is a disabled ledger and does nothing.
func (s *Store) Add(ctx context.Context, rec Record) error {
	if s == nil {
		return nil
	}
	if s.db == nil {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.FinishedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_history (
			job_id, mode, outcome, status_code, input_bytes, output_bytes,
			media_duration, elapsed_seconds, error, created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID, rec.Mode, rec.Outcome, rec.StatusCode, rec.InputBytes, rec.OutputBytes,
		rec.MediaDuration, rec.ElapsedSeconds, rec.Error,
		rec.CreatedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
	)
	if err != nil {
		metrics.HistoryWritesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("insert history record: %w", err)
	}
	metrics.HistoryWritesTotal.WithLabelValues("success").Inc()
	return nil
}

// Recent returns the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil {
		return nil, nil
	}
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, mode, outcome, status_code, input_bytes, output_bytes,
			media_duration, elapsed_seconds, error, created_at, finished_at
		FROM job_history
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Debug("failed to close history rows: %v", err)
		}
	}()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var rec Record
		var created, finished int64
		if err := rows.Scan(
			&rec.JobID, &rec.Mode, &rec.Outcome, &rec.StatusCode, &rec.InputBytes, &rec.OutputBytes,
			&rec.MediaDuration, &rec.ElapsedSeconds, &rec.Error, &created, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(created)
		rec.FinishedAt = time.UnixMilli(finished)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Summary counts records per outcome.
func (s *Store) Summary(ctx context.Context) (map[string]int, error) {
	if s == nil {
		return map[string]int{}, nil
	}
	if s.db == nil {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM job_history GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("summarize history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Debug("failed to close history rows: %v", err)
		}
	}()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// Close closes the database. Safe to call more than once.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
