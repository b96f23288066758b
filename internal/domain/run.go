package domain

import "time"

// IngestRun records one discover/build/submit pass.
type IngestRun struct {
	ID           string    `json:"id" yaml:"id"`
	CollectionID string    `json:"collection_id" yaml:"collection_id"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time `json:"finished_at" yaml:"finished_at"`
	Discovered   int       `json:"discovered" yaml:"discovered"`
	Built        int       `json:"built" yaml:"built"`
	Existing     int       `json:"existing" yaml:"existing"`
	Submitted    int       `json:"submitted" yaml:"submitted"`
	DryRun       bool      `json:"dry_run" yaml:"dry_run"`
	Error        string    `json:"error,omitempty" yaml:"error,omitempty"`

	// Tiles submitted, or to be submitted on a dry run. The journal keeps
	// their paths; see SubmittedPaths on the journal port.
	Tiles []TileRecord `json:"-" yaml:"-"`
}

// Duration returns how long the run took.
func (r IngestRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded returns true if the run finished without error.
func (r IngestRun) Succeeded() bool {
	return r.Error == "" && !r.FinishedAt.IsZero()
}
