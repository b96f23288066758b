// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/byoc/internal/domain"
)

// IngestionService defines the primary port for tile ingestion.
type IngestionService interface {
	// Ingest discovers, builds and submits new tiles.
	Ingest(ctx context.Context, opts IngestOptions) (domain.IngestRun, error)

	// Report summarizes the ingestion status of the collection.
	Report(ctx context.Context) (domain.IngestionReport, error)

	// Runs returns recent ingestion runs.
	Runs(ctx context.Context, limit int) ([]domain.IngestRun, error)
}

// IngestOptions controls an ingestion run.
type IngestOptions struct {
	DryRun bool // Compute the tiles to submit without submitting them
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy      bool              // Overall health status
	Ready        bool              // Ready to accept requests
	CollectionID string            // Collection being synced
	LastSync     string            // RFC3339 time of the last sync, empty if none
	LastError    string            // Error of the last sync, empty if it succeeded
	Components   map[string]string // Component statuses
}
