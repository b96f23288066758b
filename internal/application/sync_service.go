package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/byoc/internal/ports/input"
)

// ErrRateLimited is returned when the sync API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// TriggerCooldown is the minimum time between two API triggered syncs.
const TriggerCooldown = 30 * time.Second

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	RunID           string    `json:"run_id"`
	Discovered      int       `json:"discovered"`
	Existing        int       `json:"existing"`
	Submitted       int       `json:"submitted"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncStatus describes the outcome of the most recent sync.
type SyncStatus struct {
	LastSync  time.Time // Zero until the first sync finished
	LastError error     // Nil if the last sync succeeded
}

// SyncService runs ingestion periodically and on demand.
type SyncService struct {
	ingestion input.IngestionService
	interval  time.Duration
	logger    *slog.Logger

	// Lifecycle management
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Rate limiting for API triggers
	lastAPISync time.Time
	apiMutex    sync.Mutex

	// Prevents concurrent sync operations
	syncOpMutex sync.Mutex

	// Track next scheduled sync and last outcome for reporting
	nextSync time.Time
	status   SyncStatus
	syncMu   sync.RWMutex
}

// NewSyncService creates a new sync service.
func NewSyncService(ingestion input.IngestionService, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		ingestion: ingestion,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
		// Initialize to past time to allow immediate first API call
		lastAPISync: time.Now().Add(-TriggerCooldown - time.Second),
	}
}

// Start begins the periodic sync scheduler. A non-positive interval disables
// scheduled syncs; manual triggers keep working.
func (s *SyncService) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("scheduled sync disabled")
		return
	}

	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

// run is the main sync loop.
func (s *SyncService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.setNextSync(time.Now().Add(s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped: context canceled")
			return
		case <-s.stopCh:
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			s.logger.Debug("scheduled sync triggered")
			if _, err := s.SyncNow(ctx); err != nil {
				s.logger.Error("sync failed", "error", err)
			}
			s.setNextSync(time.Now().Add(s.interval))
		}
	}
}

// Stop gracefully stops the sync service.
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping sync service")
		close(s.stopCh)
	})
	s.wg.Wait()
}

// TriggerSync manually triggers a sync operation with rate limiting.
// Returns ErrRateLimited if called again within TriggerCooldown.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.apiMutex.Lock()
	if time.Since(s.lastAPISync) < TriggerCooldown {
		s.apiMutex.Unlock()
		return SyncResult{}, ErrRateLimited
	}
	s.lastAPISync = time.Now()
	s.apiMutex.Unlock()

	return s.SyncNow(ctx)
}

// SyncNow runs an ingestion immediately without rate limiting. Concurrent
// calls are serialized.
func (s *SyncService) SyncNow(ctx context.Context) (SyncResult, error) {
	s.syncOpMutex.Lock()
	defer s.syncOpMutex.Unlock()

	run, err := s.ingestion.Ingest(ctx, input.IngestOptions{})
	s.setStatus(err)
	if err != nil {
		return SyncResult{}, err
	}

	s.logger.Info("sync completed",
		"run", run.ID,
		"submitted", run.Submitted,
		"existing", run.Existing,
	)

	return SyncResult{
		RunID:           run.ID,
		Discovered:      run.Discovered,
		Existing:        run.Existing,
		Submitted:       run.Submitted,
		SyncedAt:        run.FinishedAt,
		NextScheduledAt: s.getNextSync(),
	}, nil
}

// Status returns the outcome of the most recent sync.
func (s *SyncService) Status() SyncStatus {
	s.syncMu.RLock()
	defer s.syncMu.RUnlock()
	return s.status
}

func (s *SyncService) setStatus(err error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.status = SyncStatus{LastSync: time.Now().UTC(), LastError: err}
}

// setNextSync updates the next scheduled sync time.
func (s *SyncService) setNextSync(t time.Time) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.nextSync = t
}

// getNextSync returns the next scheduled sync time.
func (s *SyncService) getNextSync() time.Time {
	s.syncMu.RLock()
	defer s.syncMu.RUnlock()
	return s.nextSync
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
