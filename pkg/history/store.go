// Package history persists the engine's drift samples and adaptive
// thresholds, and keeps a short in-memory ring of recent events for the
// API. SQLite is the backing store so a separate dashboard process can
// read the same file while the daemon writes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/posturekit/go-posture/pkg/adaptive"
)

// Store is the SQLite-backed sample and threshold store. It runs in WAL
// mode; concurrent readers in other processes see eventually consistent
// data, and the single-row threshold record is last-write-wins.
type Store struct {
	db *sql.DB
}

// Compile-time check: the estimator reads its history through us.
var _ adaptive.SampleSource = (*Store)(nil)

// Open opens the store at path, creating the file and parent directory
// on first use.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	// WAL for cross-process readers, busy timeout so writers queue
	// instead of failing fast.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: set busy timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS metric_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at INTEGER NOT NULL,
	head_forward_delta REAL NOT NULL,
	shoulder_symmetry_delta REAL NOT NULL,
	back_rounding_delta REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metric_samples_at ON metric_samples(at);

CREATE TABLE IF NOT EXISTS adaptive_thresholds (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	head_forward_deg REAL NOT NULL,
	shoulder_symmetry_deg REAL NOT NULL,
	back_rounding_deg REAL NOT NULL,
	calculated_at INTEGER NOT NULL,
	sample_count INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("history: migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendSample records one drift observation. Timestamps are stored as
// unix milliseconds.
func (s *Store) AppendSample(ctx context.Context, sample adaptive.Sample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metric_samples (at, head_forward_delta, shoulder_symmetry_delta, back_rounding_delta)
		 VALUES (?, ?, ?, ?)`,
		sample.At.UnixMilli(), sample.HeadForwardDelta, sample.ShoulderSymmetryDelta, sample.BackRoundingDelta)
	if err != nil {
		return fmt.Errorf("history: append sample: %w", err)
	}
	return nil
}

// SamplesSince returns all samples at or after cutoff, oldest first.
// Implements adaptive.SampleSource.
func (s *Store) SamplesSince(ctx context.Context, cutoff time.Time) ([]adaptive.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, head_forward_delta, shoulder_symmetry_delta, back_rounding_delta
		 FROM metric_samples WHERE at >= ? ORDER BY at ASC`,
		cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("history: query samples: %w", err)
	}
	defer rows.Close()

	var samples []adaptive.Sample
	for rows.Next() {
		var at int64
		var sample adaptive.Sample
		if err := rows.Scan(&at, &sample.HeadForwardDelta, &sample.ShoulderSymmetryDelta, &sample.BackRoundingDelta); err != nil {
			return nil, fmt.Errorf("history: scan sample: %w", err)
		}
		sample.At = time.UnixMilli(at)
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate samples: %w", err)
	}
	return samples, nil
}

// CountSamples returns the number of stored samples.
func (s *Store) CountSamples(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM metric_samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count samples: %w", err)
	}
	return n, nil
}

// Prune deletes samples older than cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM metric_samples WHERE at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("history: prune samples: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: prune samples: %w", err)
	}
	return n, nil
}

// SaveThresholds persists the adaptive thresholds. The record is a
// single row; whoever writes last wins.
func (s *Store) SaveThresholds(ctx context.Context, t adaptive.Thresholds) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO adaptive_thresholds (id, head_forward_deg, shoulder_symmetry_deg, back_rounding_deg, calculated_at, sample_count)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			head_forward_deg = excluded.head_forward_deg,
			shoulder_symmetry_deg = excluded.shoulder_symmetry_deg,
			back_rounding_deg = excluded.back_rounding_deg,
			calculated_at = excluded.calculated_at,
			sample_count = excluded.sample_count`,
		t.HeadForwardDeg, t.ShoulderSymmetryDeg, t.BackRoundingDeg, t.CalculatedAt.UnixMilli(), t.SampleCount)
	if err != nil {
		return fmt.Errorf("history: save thresholds: %w", err)
	}
	return nil
}

// LoadThresholds returns the persisted thresholds, if any.
func (s *Store) LoadThresholds(ctx context.Context) (adaptive.Thresholds, bool, error) {
	var t adaptive.Thresholds
	var calculatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT head_forward_deg, shoulder_symmetry_deg, back_rounding_deg, calculated_at, sample_count
		 FROM adaptive_thresholds WHERE id = 1`).
		Scan(&t.HeadForwardDeg, &t.ShoulderSymmetryDeg, &t.BackRoundingDeg, &calculatedAt, &t.SampleCount)
	if err == sql.ErrNoRows {
		return adaptive.Thresholds{}, false, nil
	}
	if err != nil {
		return adaptive.Thresholds{}, false, fmt.Errorf("history: load thresholds: %w", err)
	}
	t.CalculatedAt = time.UnixMilli(calculatedAt)
	return t, true, nil
}
