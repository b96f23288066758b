package domain

import (
	"fmt"
	"time"
)

// Sample formats accepted by the catalog.
const (
	SampleFormatUInt  = "UINT"
	SampleFormatInt   = "INT"
	SampleFormatFloat = "FLOAT"
)

// BandDescriptor describes one band of a collection.
type BandDescriptor struct {
	Name         string // Band name exposed by the catalog
	Source       string // Token substituted for (BAND) to find the file
	BitDepth     int    // 8, 16 or 32
	SampleFormat string // UINT, INT or FLOAT
}

// CollectionSpec holds the parameters for creating a collection.
type CollectionSpec struct {
	Name       string
	BucketName string
	Bands      []BandDescriptor
	StorageID  string // e.g. "eodata" for CDSE-hosted buckets
}

// Collection is a collection registered in the catalog.
type Collection struct {
	ID         string
	Name       string
	BucketName string
	StorageID  string
	Bands      []BandDescriptor
	CreatedAt  time.Time
}

// Validate checks the collection spec and its band schema.
func (s CollectionSpec) Validate() error {
	if s.Name == "" {
		return &ConfigurationError{Field: "collection.name", Message: "name is required"}
	}
	if s.BucketName == "" {
		return &ConfigurationError{Field: "collection.bucket", Message: "bucket name is required"}
	}
	return ValidateBands(s.Bands)
}

// ValidateBands checks that every band carries name, source, bitDepth and
// sampleFormat, and that names are unique.
func ValidateBands(bands []BandDescriptor) error {
	seen := make(map[string]struct{}, len(bands))

	for i, band := range bands {
		field := fmt.Sprintf("collection.bands[%d]", i)

		switch {
		case band.Name == "":
			return &ConfigurationError{Field: field + ".name", Message: "missing required field name"}
		case band.Source == "":
			return &ConfigurationError{Field: field + ".source", Message: "missing required field source"}
		case band.BitDepth == 0:
			return &ConfigurationError{Field: field + ".bit_depth", Message: "missing required field bitDepth"}
		case band.SampleFormat == "":
			return &ConfigurationError{Field: field + ".sample_format", Message: "missing required field sampleFormat"}
		}

		switch band.BitDepth {
		case 8, 16, 32:
		default:
			return &ConfigurationError{
				Field:   field + ".bit_depth",
				Message: fmt.Sprintf("unsupported bitDepth %d (want 8, 16 or 32)", band.BitDepth),
			}
		}

		switch band.SampleFormat {
		case SampleFormatUInt, SampleFormatInt, SampleFormatFloat:
		default:
			return &ConfigurationError{
				Field:   field + ".sample_format",
				Message: fmt.Sprintf("unsupported sampleFormat %q", band.SampleFormat),
			}
		}

		if _, dup := seen[band.Name]; dup {
			return &ConfigurationError{Field: field + ".name", Message: "duplicate band name " + band.Name}
		}
		seen[band.Name] = struct{}{}
	}

	return nil
}
