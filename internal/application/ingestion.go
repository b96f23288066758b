package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/input"
	"github.com/jobrunner/byoc/internal/ports/output"
)

// DefaultSettleWait is the pause after creating a collection before tiles
// are submitted to it.
const DefaultSettleWait = 5 * time.Second

// IngestionConfig holds the settings of an IngestionService.
type IngestionConfig struct {
	Bucket       string                // Bucket holding the tiles
	Prefix       string                // Prefix below which tiles are discovered
	CollectionID string                // Catalog collection, may be set later by CreateCollection
	Convention   domain.PathConvention // How sensing time and band are encoded in keys
	SettleWait   time.Duration         // Pause after collection creation
}

// IngestionService runs the discover, build and submit workflow for one
// collection.
type IngestionService struct {
	mu           sync.RWMutex
	collectionID string

	cfg        IngestionConfig
	catalog    output.Catalog
	journal    output.SubmissionJournal
	metrics    output.MetricsCollector
	logger     *slog.Logger
	discoverer *Discoverer
	reconciler *Reconciler
}

var _ input.IngestionService = (*IngestionService)(nil)

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	cfg IngestionConfig,
	lister output.ObjectLister,
	catalog output.Catalog,
	journal output.SubmissionJournal,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *IngestionService {
	if journal == nil {
		journal = output.NoOpJournal{}
	}
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}

	return &IngestionService{
		collectionID: cfg.CollectionID,
		cfg:          cfg,
		catalog:      catalog,
		journal:      journal,
		metrics:      metrics,
		logger:       logger,
		discoverer:   NewDiscoverer(lister, metrics, logger),
		reconciler:   NewReconciler(catalog, metrics, logger),
	}
}

// CollectionID returns the collection tiles are submitted to.
func (s *IngestionService) CollectionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectionID
}

// CreateCollection validates the spec, creates the collection in the catalog
// and waits for the settle period. The new collection becomes the target of
// later ingestion runs.
func (s *IngestionService) CreateCollection(ctx context.Context, spec domain.CollectionSpec) (domain.Collection, error) {
	if err := spec.Validate(); err != nil {
		return domain.Collection{}, err
	}

	s.logger.Info("creating collection", "name", spec.Name, "bucket", spec.BucketName, "bands", len(spec.Bands))

	collection, err := s.catalog.CreateCollection(ctx, spec)
	s.metrics.IncCatalogOperations("create_collection", err == nil)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("creating collection %s: %w", spec.Name, err)
	}

	s.mu.Lock()
	s.collectionID = collection.ID
	s.mu.Unlock()

	s.logger.Info("collection created", "id", collection.ID, "settle_wait", s.cfg.SettleWait)

	if err := settle(ctx, s.cfg.SettleWait); err != nil {
		return collection, err
	}

	return collection, nil
}

// Collection returns the configured collection from the catalog.
func (s *IngestionService) Collection(ctx context.Context) (domain.Collection, error) {
	id := s.CollectionID()
	if id == "" {
		return domain.Collection{}, domain.ErrNoCollection
	}

	collection, err := s.catalog.GetCollection(ctx, id)
	s.metrics.IncCatalogOperations("get_collection", err == nil)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("getting collection %s: %w", id, err)
	}
	return collection, nil
}

// Discover returns the raster keys below the configured prefix.
func (s *IngestionService) Discover(ctx context.Context) ([]string, error) {
	return s.discoverer.Discover(ctx, s.cfg.Bucket, s.cfg.Prefix)
}

// Ingest discovers raster files, builds tiles and submits the ones the
// catalog does not know. With DryRun nothing is submitted and the run lists
// the tiles that would be. Every run is written to the journal.
func (s *IngestionService) Ingest(ctx context.Context, opts input.IngestOptions) (domain.IngestRun, error) {
	run := domain.IngestRun{
		ID:           uuid.NewString(),
		CollectionID: s.CollectionID(),
		StartedAt:    time.Now().UTC(),
		DryRun:       opts.DryRun,
	}

	s.logger.Info("ingestion started", "run", run.ID, "collection", run.CollectionID, "dry_run", run.DryRun)

	err := s.ingest(ctx, &run)
	return s.finish(ctx, run, err)
}

func (s *IngestionService) ingest(ctx context.Context, run *domain.IngestRun) error {
	if run.CollectionID == "" {
		return domain.ErrNoCollection
	}

	keys, err := s.Discover(ctx)
	if err != nil {
		return err
	}
	run.Discovered = len(keys)

	tiles, err := BuildTiles(keys, s.cfg.Convention)
	if err != nil {
		return err
	}
	run.Built = len(tiles)

	existing, err := s.reconciler.listTiles(ctx, run.CollectionID)
	if err != nil {
		return err
	}
	run.Existing = len(existing)

	pending := NewTiles(tiles, existing)
	if run.DryRun {
		run.Tiles = pending
		return nil
	}

	submitted, err := s.reconciler.SubmitNew(ctx, run.CollectionID, tiles, existing)
	run.Submitted = submitted
	run.Tiles = pending[:submitted]
	return err
}

func (s *IngestionService) finish(ctx context.Context, run domain.IngestRun, err error) (domain.IngestRun, error) {
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Error = err.Error()
	}

	s.metrics.ObserveRunDuration(run.DryRun, err == nil, run.Duration())

	if jerr := s.journal.RecordRun(context.WithoutCancel(ctx), run); jerr != nil {
		s.logger.Warn("failed to record run", "run", run.ID, "error", jerr)
	}

	if err != nil {
		s.logger.Error("ingestion failed", "run", run.ID, "error", err)
		return run, err
	}

	s.logger.Info("ingestion completed",
		"run", run.ID,
		"discovered", run.Discovered,
		"built", run.Built,
		"existing", run.Existing,
		"submitted", run.Submitted,
		"pending", len(run.Tiles),
		"duration", run.Duration(),
	)
	return run, nil
}

// Plan returns the tiles the next ingestion would submit. Unlike a dry-run
// Ingest it is not written to the journal.
func (s *IngestionService) Plan(ctx context.Context) ([]domain.TileRecord, error) {
	run := domain.IngestRun{CollectionID: s.CollectionID(), DryRun: true}
	if err := s.ingest(ctx, &run); err != nil {
		return nil, err
	}
	return run.Tiles, nil
}

// Report summarizes the ingestion status of the collection.
func (s *IngestionService) Report(ctx context.Context) (domain.IngestionReport, error) {
	id := s.CollectionID()
	if id == "" {
		return domain.IngestionReport{}, domain.ErrNoCollection
	}
	return s.reconciler.Report(ctx, id)
}

// Runs returns recent ingestion runs from the journal, newest first.
func (s *IngestionService) Runs(ctx context.Context, limit int) ([]domain.IngestRun, error) {
	return s.journal.ListRuns(ctx, limit)
}

// settle blocks for d or until ctx is done.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
