package output

import (
	"time"

	"github.com/jobrunner/byoc/internal/domain"
)

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)

	// IncCatalogOperations increments catalog operation counter.
	IncCatalogOperations(operation string, success bool)

	// AddTilesDiscovered adds to the number of raster files discovered.
	AddTilesDiscovered(count int)

	// AddTilesSubmitted adds to the number of tiles submitted.
	AddTilesSubmitted(count int)

	// ObserveRunDuration records the duration of an ingestion run.
	ObserveRunDuration(dryRun bool, success bool, duration time.Duration)

	// SetTileStatus publishes the latest ingestion report.
	SetTileStatus(report domain.IngestionReport)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}

// IncCatalogOperations implements MetricsCollector.
func (n *NoOpMetrics) IncCatalogOperations(_ string, _ bool) {}

// AddTilesDiscovered implements MetricsCollector.
func (n *NoOpMetrics) AddTilesDiscovered(_ int) {}

// AddTilesSubmitted implements MetricsCollector.
func (n *NoOpMetrics) AddTilesSubmitted(_ int) {}

// ObserveRunDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveRunDuration(_ bool, _ bool, _ time.Duration) {}

// SetTileStatus implements MetricsCollector.
func (n *NoOpMetrics) SetTileStatus(_ domain.IngestionReport) {}
