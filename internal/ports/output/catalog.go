package output

import (
	"context"

	"github.com/jobrunner/byoc/internal/domain"
)

// Catalog defines the secondary port for the remote tile catalog. The catalog
// ingests tiles asynchronously: CreateTile only registers the tile.
type Catalog interface {
	// CreateCollection registers a new collection.
	CreateCollection(ctx context.Context, spec domain.CollectionSpec) (domain.Collection, error)

	// GetCollection returns an existing collection.
	GetCollection(ctx context.Context, collectionID string) (domain.Collection, error)

	// ListTiles returns every tile of a collection.
	ListTiles(ctx context.Context, collectionID string) ([]domain.ExistingTile, error)

	// CreateTile submits a tile for ingestion.
	CreateTile(ctx context.Context, collectionID string, tile domain.TileRecord) error
}
