package application

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/input"
	"github.com/jobrunner/byoc/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockLister implements output.ObjectLister for testing.
type mockLister struct {
	listings map[string]output.Listing
	errs     map[string]error
	calls    []string
}

func (m *mockLister) ListPrefix(_ context.Context, _, prefix string) (output.Listing, error) {
	m.calls = append(m.calls, prefix)
	if err, ok := m.errs[prefix]; ok {
		return output.Listing{}, err
	}
	return m.listings[prefix], nil
}

// objects builds a listing level from keys.
func objects(keys ...string) []output.StorageObject {
	objs := make([]output.StorageObject, len(keys))
	for i, k := range keys {
		objs[i] = output.StorageObject{Key: k}
	}
	return objs
}

// mockCatalog implements output.Catalog for testing.
type mockCatalog struct {
	mu sync.Mutex

	collections   map[string]domain.Collection
	tiles         []domain.ExistingTile
	created       []domain.TileRecord
	createdSpecs  []domain.CollectionSpec
	createErr     error
	failOnPath    string
	listErr       error
	collectionErr error
}

func (m *mockCatalog) CreateCollection(_ context.Context, spec domain.CollectionSpec) (domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.collectionErr != nil {
		return domain.Collection{}, m.collectionErr
	}
	m.createdSpecs = append(m.createdSpecs, spec)
	c := domain.Collection{
		ID:         "col-1",
		Name:       spec.Name,
		BucketName: spec.BucketName,
		StorageID:  spec.StorageID,
		Bands:      spec.Bands,
	}
	if m.collections == nil {
		m.collections = make(map[string]domain.Collection)
	}
	m.collections[c.ID] = c
	return c, nil
}

func (m *mockCatalog) GetCollection(_ context.Context, id string) (domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[id]
	if !ok {
		return domain.Collection{}, domain.ErrCollectionNotFound
	}
	return c, nil
}

func (m *mockCatalog) ListTiles(_ context.Context, _ string) ([]domain.ExistingTile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.ExistingTile(nil), m.tiles...), nil
}

func (m *mockCatalog) CreateTile(_ context.Context, _ string, tile domain.TileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil && (m.failOnPath == "" || m.failOnPath == tile.Path) {
		return m.createErr
	}
	m.created = append(m.created, tile)
	m.tiles = append(m.tiles, domain.ExistingTile{
		Path:        tile.Path,
		Status:      domain.TileStatusPending,
		SensingTime: tile.SensingTime,
	})
	return nil
}

// mockJournal implements output.SubmissionJournal for testing.
type mockJournal struct {
	runs []domain.IngestRun
	err  error
}

func (m *mockJournal) RecordRun(_ context.Context, run domain.IngestRun) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockJournal) ListRuns(_ context.Context, limit int) ([]domain.IngestRun, error) {
	var out []domain.IngestRun
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *mockJournal) SubmittedPaths(_ context.Context, runID string) ([]string, error) {
	for _, run := range m.runs {
		if run.ID != runID {
			continue
		}
		paths := make([]string, len(run.Tiles))
		for i, tile := range run.Tiles {
			paths[i] = tile.Path
		}
		return paths, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockJournal) Close() error { return nil }

// recordingMetrics implements output.MetricsCollector and keeps the values
// tests assert on.
type recordingMetrics struct {
	output.NoOpMetrics

	storageOps map[bool]int
	discovered int
	submitted  int
	report     domain.IngestionReport
}

func (m *recordingMetrics) IncStorageOperations(_ string, success bool) {
	if m.storageOps == nil {
		m.storageOps = make(map[bool]int)
	}
	m.storageOps[success]++
}

func (m *recordingMetrics) AddTilesDiscovered(count int) { m.discovered += count }

func (m *recordingMetrics) AddTilesSubmitted(count int) { m.submitted += count }

func (m *recordingMetrics) SetTileStatus(report domain.IngestionReport) { m.report = report }

// mockIngestion implements input.IngestionService for testing.
type mockIngestion struct {
	mu    sync.Mutex
	calls int
	run   domain.IngestRun
	err   error
	delay time.Duration
}

func (m *mockIngestion) Ingest(_ context.Context, _ input.IngestOptions) (domain.IngestRun, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	run := m.run
	run.FinishedAt = time.Now()
	return run, m.err
}

func (m *mockIngestion) Report(_ context.Context) (domain.IngestionReport, error) {
	return domain.Summarize(nil), nil
}

func (m *mockIngestion) Runs(_ context.Context, _ int) ([]domain.IngestRun, error) {
	return nil, nil
}

func (m *mockIngestion) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
