package domain

import (
	"strings"
	"time"
)

// RasterExtensions are the file suffixes treated as tile files.
var RasterExtensions = []string{".tif", ".tiff"}

// IsRasterKey reports whether an object key names a raster file. The suffix
// match is case-insensitive.
func IsRasterKey(key string) bool {
	lower := strings.ToLower(key)
	for _, ext := range RasterExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// TileRecord is one logical tile ready for submission to the catalog. Path
// carries the band placeholder, so all band files of a tile share it.
type TileRecord struct {
	Path        string    // Canonical path with (BAND) placeholder
	SensingTime time.Time // Acquisition time
}

// TileStatus is the ingestion status reported by the catalog.
type TileStatus string

// Catalog tile statuses. Any other value is treated as pending.
const (
	TileStatusIngested TileStatus = "INGESTED"
	TileStatusFailed   TileStatus = "FAILED"
	TileStatusPending  TileStatus = "PENDING"
)

// IsTerminal returns true if the catalog will not change the status again.
func (s TileStatus) IsTerminal() bool {
	return s == TileStatusIngested || s == TileStatusFailed
}

// ExistingTile is a tile already registered in the catalog.
type ExistingTile struct {
	ID           string
	Path         string
	Status       TileStatus
	SensingTime  time.Time
	FailureCause string // Set by the catalog for some failed tiles
}

// Report count keys.
const (
	CountIngested = "Ingested"
	CountFailed   = "Failed"
	CountPending  = "Pending"
	CountTotal    = "Total"
)

// IngestionReport summarizes the ingestion state of a collection.
type IngestionReport struct {
	Counts         map[string]int `json:"counts" yaml:"counts"`
	FailureReasons []string       `json:"failure_reasons" yaml:"failure_reasons"`
}

// Ingested returns the number of ingested tiles.
func (r IngestionReport) Ingested() int { return r.Counts[CountIngested] }

// Failed returns the number of failed tiles.
func (r IngestionReport) Failed() int { return r.Counts[CountFailed] }

// Pending returns the number of tiles still being processed.
func (r IngestionReport) Pending() int { return r.Counts[CountPending] }

// Total returns the number of tiles in the collection.
func (r IngestionReport) Total() int { return r.Counts[CountTotal] }

// Done returns true when no tile is pending.
func (r IngestionReport) Done() bool { return r.Pending() == 0 }

// Summarize counts tiles by status and collects failure reasons in input
// order. Ingested+Failed+Pending always equals Total.
func Summarize(tiles []ExistingTile) IngestionReport {
	report := IngestionReport{
		Counts: map[string]int{
			CountIngested: 0,
			CountFailed:   0,
			CountPending:  0,
			CountTotal:    len(tiles),
		},
		FailureReasons: []string{},
	}

	for _, tile := range tiles {
		switch tile.Status {
		case TileStatusIngested:
			report.Counts[CountIngested]++
		case TileStatusFailed:
			report.Counts[CountFailed]++
			if tile.FailureCause != "" {
				report.FailureReasons = append(report.FailureReasons, tile.FailureCause)
			} else {
				report.FailureReasons = append(report.FailureReasons, "Unknown failure for tile "+tile.Path)
			}
		default:
			report.Counts[CountPending]++
		}
	}

	return report
}
