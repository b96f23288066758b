package application

import (
	"fmt"

	"github.com/jobrunner/byoc/internal/domain"
)

// BuildTiles derives one tile per canonical path from the discovered keys.
// Band files of the same tile collapse into a single record; the first key
// of a group decides its sensing time. Input order is preserved.
//
// A key that does not match the convention fails the whole build.
func BuildTiles(keys []string, convention domain.PathConvention) ([]domain.TileRecord, error) {
	seen := make(map[string]struct{}, len(keys))
	tiles := make([]domain.TileRecord, 0, len(keys))

	for _, key := range keys {
		derived, err := convention.Derive(key)
		if err != nil {
			return nil, fmt.Errorf("building tile from %s: %w", key, err)
		}

		if _, ok := seen[derived.CanonicalPath]; ok {
			continue
		}
		seen[derived.CanonicalPath] = struct{}{}

		tiles = append(tiles, domain.TileRecord{
			Path:        derived.CanonicalPath,
			SensingTime: derived.SensingTime,
		})
	}

	return tiles, nil
}
