// Package journal provides the SQLite-backed submission journal.
package journal

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/output"
)

const driverName = "sqlite3_journal"

// Ensure the journal driver is registered with its connection pragmas.
func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, pragma := range []string{
				"PRAGMA foreign_keys = ON",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA journal_mode = WAL",
			} {
				if _, err := conn.Exec(pragma, []driver.Value{}); err != nil {
					return fmt.Errorf("%s: %w", pragma, err)
				}
			}
			return nil
		},
	})
}

// DefaultListLimit is used when ListRuns gets a non-positive limit.
const DefaultListLimit = 20

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	collection_id TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	discovered    INTEGER NOT NULL DEFAULT 0,
	built         INTEGER NOT NULL DEFAULT 0,
	existing      INTEGER NOT NULL DEFAULT 0,
	submitted     INTEGER NOT NULL DEFAULT 0,
	dry_run       INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
CREATE TABLE IF NOT EXISTS submissions (
	run_id       TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	path         TEXT NOT NULL,
	sensing_time TEXT NOT NULL,
	PRIMARY KEY (run_id, path)
);
`

// SQLiteJournal implements SubmissionJournal on a SQLite database file.
type SQLiteJournal struct {
	db *sql.DB
}

var _ output.SubmissionJournal = (*SQLiteJournal)(nil)

// Open opens or creates the journal at path and applies the schema.
func Open(ctx context.Context, path string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying journal schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// RecordRun stores a run. For runs that were not dry runs the submitted
// tiles are stored with it.
func (j *SQLiteJournal) RecordRun(ctx context.Context, run domain.IngestRun) (err error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, collection_id, started_at, finished_at, discovered, built, existing, submitted, dry_run, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CollectionID,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Discovered,
		run.Built,
		run.Existing,
		run.Submitted,
		run.DryRun,
		run.Error,
	)
	if err != nil {
		return constraintError(run.ID, err)
	}

	if !run.DryRun {
		stmt, perr := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO submissions (run_id, path, sensing_time) VALUES (?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, tile := range run.Tiles {
			if _, err = stmt.ExecContext(ctx, run.ID, tile.Path, formatTime(tile.SensingTime)); err != nil {
				return err
			}
		}
	}

	err = tx.Commit()
	return err
}

// ListRuns returns the most recent runs, newest first.
func (j *SQLiteJournal) ListRuns(ctx context.Context, limit int) ([]domain.IngestRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, collection_id, started_at, finished_at, discovered, built, existing, submitted, dry_run, error
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []domain.IngestRun
	for rows.Next() {
		var (
			run               domain.IngestRun
			started, finished string
		)
		if err := rows.Scan(
			&run.ID,
			&run.CollectionID,
			&started,
			&finished,
			&run.Discovered,
			&run.Built,
			&run.Existing,
			&run.Submitted,
			&run.DryRun,
			&run.Error,
		); err != nil {
			return nil, err
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// SubmittedPaths returns the tile paths submitted by a run, in submission
// order.
func (j *SQLiteJournal) SubmittedPaths(ctx context.Context, runID string) ([]string, error) {
	var exists bool
	err := j.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM runs WHERE id = ?)`, runID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}

	rows, err := j.db.QueryContext(ctx, `SELECT path FROM submissions WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	paths := []string{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	return paths, rows.Err()
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func constraintError(runID string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("run %s already recorded: %w", runID, domain.ErrInvalidInput)
	}
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
