package application

import (
	"context"
	"time"

	"github.com/jobrunner/byoc/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	ingestion *IngestionService
	sync      *SyncService
}

var _ input.HealthChecker = (*HealthService)(nil)

// NewHealthService creates a new health service. sync may be nil when no
// sync service runs.
func NewHealthService(ingestion *IngestionService, sync *SyncService) *HealthService {
	return &HealthService{
		ingestion: ingestion,
		sync:      sync,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true // Basic health check
}

// IsReady returns false while the most recent sync has failed.
func (s *HealthService) IsReady(_ context.Context) bool {
	if s.sync == nil {
		return true
	}
	return s.sync.Status().LastError == nil
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	details := input.HealthDetails{
		Healthy:    s.IsHealthy(ctx),
		Ready:      s.IsReady(ctx),
		Components: map[string]string{},
	}

	if s.ingestion != nil {
		details.CollectionID = s.ingestion.CollectionID()
		if details.CollectionID == "" {
			details.Components["collection"] = "not configured"
		} else {
			details.Components["collection"] = "ok"
		}
	}

	if s.sync == nil {
		details.Components["sync"] = "disabled"
		return details
	}

	status := s.sync.Status()
	switch {
	case status.LastSync.IsZero():
		details.Components["sync"] = "pending"
	case status.LastError != nil:
		details.Components["sync"] = "failing"
		details.LastError = status.LastError.Error()
	default:
		details.Components["sync"] = "ok"
	}
	if !status.LastSync.IsZero() {
		details.LastSync = status.LastSync.Format(time.RFC3339)
	}

	return details
}
