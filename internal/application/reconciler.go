package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/output"
)

// Reconciler submits new tiles to the catalog and reports ingestion status.
type Reconciler struct {
	catalog output.Catalog
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(catalog output.Catalog, metrics output.MetricsCollector, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		catalog: catalog,
		metrics: metrics,
		logger:  logger,
	}
}

// NewTiles returns the built tiles whose path is not yet in the catalog, in
// build order and without repeats.
func NewTiles(built []domain.TileRecord, existing []domain.ExistingTile) []domain.TileRecord {
	known := make(map[string]struct{}, len(existing)+len(built))
	for _, tile := range existing {
		known[tile.Path] = struct{}{}
	}

	var pending []domain.TileRecord
	for _, tile := range built {
		if _, ok := known[tile.Path]; ok {
			continue
		}
		known[tile.Path] = struct{}{}
		pending = append(pending, tile)
	}
	return pending
}

// SubmitNew creates every built tile that the catalog does not know yet and
// returns how many were submitted. The first catalog error stops submission;
// the count of tiles submitted before it is returned with the error.
func (r *Reconciler) SubmitNew(
	ctx context.Context,
	collectionID string,
	built []domain.TileRecord,
	existing []domain.ExistingTile,
) (int, error) {
	pending := NewTiles(built, existing)
	r.logger.Info("submitting tiles",
		"collection", collectionID,
		"built", len(built),
		"existing", len(existing),
		"new", len(pending),
	)

	submitted := 0
	for _, tile := range pending {
		err := r.catalog.CreateTile(ctx, collectionID, tile)
		r.metrics.IncCatalogOperations("create_tile", err == nil)
		if err != nil {
			r.metrics.AddTilesSubmitted(submitted)
			return submitted, fmt.Errorf("submitting tile %s: %w", tile.Path, err)
		}
		submitted++
		r.logger.Debug("tile submitted", "path", tile.Path, "sensing_time", tile.SensingTime)
	}

	r.metrics.AddTilesSubmitted(submitted)
	return submitted, nil
}

// Report lists the collection's tiles and summarizes their status.
func (r *Reconciler) Report(ctx context.Context, collectionID string) (domain.IngestionReport, error) {
	tiles, err := r.listTiles(ctx, collectionID)
	if err != nil {
		return domain.IngestionReport{}, err
	}

	report := domain.Summarize(tiles)
	r.metrics.SetTileStatus(report)

	return report, nil
}

func (r *Reconciler) listTiles(ctx context.Context, collectionID string) ([]domain.ExistingTile, error) {
	tiles, err := r.catalog.ListTiles(ctx, collectionID)
	r.metrics.IncCatalogOperations("list_tiles", err == nil)
	if err != nil {
		return nil, fmt.Errorf("listing tiles of collection %s: %w", collectionID, err)
	}
	return tiles, nil
}
