package output

import (
	"context"

	"github.com/jobrunner/byoc/internal/domain"
)

// SubmissionJournal defines the secondary port for recording ingestion runs.
type SubmissionJournal interface {
	// RecordRun stores a finished run and the tiles it submitted.
	RecordRun(ctx context.Context, run domain.IngestRun) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.IngestRun, error)

	// SubmittedPaths returns the tile paths submitted by a run.
	SubmittedPaths(ctx context.Context, runID string) ([]string, error)

	// Close releases the journal.
	Close() error
}

// NoOpJournal is a SubmissionJournal that stores nothing.
type NoOpJournal struct{}

// RecordRun implements SubmissionJournal.
func (NoOpJournal) RecordRun(_ context.Context, _ domain.IngestRun) error { return nil }

// ListRuns implements SubmissionJournal.
func (NoOpJournal) ListRuns(_ context.Context, _ int) ([]domain.IngestRun, error) { return nil, nil }

// SubmittedPaths implements SubmissionJournal.
func (NoOpJournal) SubmittedPaths(_ context.Context, _ string) ([]string, error) { return nil, nil }

// Close implements SubmissionJournal.
func (NoOpJournal) Close() error { return nil }
