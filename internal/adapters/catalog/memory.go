package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/output"
)

// Memory is an in-process Catalog. Tiles stay PENDING until SetStatus moves
// them on, which lets ingestion be exercised without a remote catalog.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]domain.Collection
	tiles       map[string][]domain.ExistingTile
}

var _ output.Catalog = (*Memory)(nil)

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]domain.Collection),
		tiles:       make(map[string][]domain.ExistingTile),
	}
}

// CreateCollection implements Catalog.
func (m *Memory) CreateCollection(_ context.Context, spec domain.CollectionSpec) (domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := domain.Collection{
		ID:         uuid.NewString(),
		Name:       spec.Name,
		BucketName: spec.BucketName,
		StorageID:  spec.StorageID,
		Bands:      append([]domain.BandDescriptor(nil), spec.Bands...),
		CreatedAt:  time.Now().UTC(),
	}
	m.collections[c.ID] = c
	return c, nil
}

// AddCollection registers a collection under a known ID.
func (m *Memory) AddCollection(c domain.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[c.ID] = c
}

// GetCollection implements Catalog.
func (m *Memory) GetCollection(_ context.Context, collectionID string) (domain.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collectionID]
	if !ok {
		return domain.Collection{}, notFound("get_collection", collectionID)
	}
	return c, nil
}

// ListTiles implements Catalog.
func (m *Memory) ListTiles(_ context.Context, collectionID string) ([]domain.ExistingTile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.collections[collectionID]; !ok {
		return nil, notFound("list_tiles", collectionID)
	}
	return append([]domain.ExistingTile(nil), m.tiles[collectionID]...), nil
}

// CreateTile implements Catalog.
func (m *Memory) CreateTile(_ context.Context, collectionID string, tile domain.TileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collectionID]; !ok {
		return notFound("create_tile", collectionID)
	}

	m.tiles[collectionID] = append(m.tiles[collectionID], domain.ExistingTile{
		ID:          uuid.NewString(),
		Path:        tile.Path,
		Status:      domain.TileStatusPending,
		SensingTime: tile.SensingTime,
	})
	return nil
}

// SetStatus changes the status of every tile with the given path and reports
// whether one was found.
func (m *Memory) SetStatus(collectionID, path string, status domain.TileStatus, cause string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	tiles := m.tiles[collectionID]
	for i := range tiles {
		if tiles[i].Path == path {
			tiles[i].Status = status
			tiles[i].FailureCause = cause
			found = true
		}
	}
	return found
}

func notFound(op, collectionID string) error {
	return &domain.CatalogError{
		Operation:  op,
		StatusCode: 404,
		Message:    "collection " + collectionID + " not found",
	}
}
