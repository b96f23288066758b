// Package application contains the application services.
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/output"
)

// Discoverer finds raster files below a prefix of an object store.
type Discoverer struct {
	lister  output.ObjectLister
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewDiscoverer creates a new discoverer.
func NewDiscoverer(lister output.ObjectLister, metrics output.MetricsCollector, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		lister:  lister,
		metrics: metrics,
		logger:  logger,
	}
}

// Discover returns the keys of all raster files below basePrefix, at any
// depth. Sub-prefixes are visited breadth-first, each exactly once. Keys are
// returned in the order the store lists them and each key appears once.
//
// A failed listing aborts discovery and no partial result is returned.
func (d *Discoverer) Discover(ctx context.Context, bucket, basePrefix string) ([]string, error) {
	d.logger.Info("discovering tiles", "bucket", bucket, "prefix", basePrefix)

	queue := []string{basePrefix}
	visited := map[string]struct{}{basePrefix: {}}
	seen := make(map[string]struct{})
	var keys []string

	for len(queue) > 0 {
		prefix := queue[0]
		queue = queue[1:]

		listing, err := d.list(ctx, bucket, prefix)
		if err != nil {
			return nil, &domain.DiscoveryError{Bucket: bucket, Prefix: prefix, Err: err}
		}

		for _, obj := range listing.Objects {
			if !domain.IsRasterKey(obj.Key) {
				continue
			}
			if _, ok := seen[obj.Key]; ok {
				continue
			}
			seen[obj.Key] = struct{}{}
			keys = append(keys, obj.Key)
		}

		for _, p := range listing.Prefixes {
			if _, ok := visited[p]; ok {
				continue
			}
			visited[p] = struct{}{}
			queue = append(queue, p)
		}
	}

	d.metrics.AddTilesDiscovered(len(keys))
	d.logger.Info("discovery completed", "bucket", bucket, "prefixes", len(visited), "files", len(keys))

	return keys, nil
}

func (d *Discoverer) list(ctx context.Context, bucket, prefix string) (output.Listing, error) {
	if err := ctx.Err(); err != nil {
		return output.Listing{}, err
	}

	start := time.Now()
	listing, err := d.lister.ListPrefix(ctx, bucket, prefix)
	d.metrics.ObserveStorageDuration("list", time.Since(start))
	d.metrics.IncStorageOperations("list", err == nil)
	if err != nil {
		return output.Listing{}, err
	}

	d.logger.Debug("listed prefix", "prefix", prefix, "objects", len(listing.Objects), "prefixes", len(listing.Prefixes))
	return listing, nil
}
