// Package domain contains the core entities of tile ingestion: path
// conventions, tiles, collections and ingestion runs.
package domain

import (
	"strings"
	"time"
)

// BandPlaceholder replaces the band token in a canonical tile path. The
// catalog substitutes each band name for it when reading a tile.
const BandPlaceholder = "(BAND)"

// SensingTimeRule locates the sensing time inside an object key.
type SensingTimeRule struct {
	Segment   int    // Path segment holding the date (negative counts from the end)
	Delimiter string // Splits the segment; empty means the whole segment is the token
	Position  int    // Sub-token holding the date (negative counts from the end)
	Format    string // strptime format (e.g. "%Y%m%d") or Go layout
}

// BandRule locates the band identifier inside an object key.
type BandRule struct {
	Segment   int    // Path segment holding the filename, usually -1
	Delimiter string // Splits the filename; empty means the whole filename is the token
	Position  int    // Sub-token holding the band identifier
}

// PathConvention describes how sensing time and band are embedded in object
// keys. It is immutable; build it with NewPathConvention.
type PathConvention struct {
	sensingTime SensingTimeRule
	band        BandRule
	layout      timeLayout
}

// DerivedPath is the result of applying a PathConvention to an object key.
type DerivedPath struct {
	CanonicalPath string
	SensingTime   time.Time
	BandToken     string
}

// NewPathConvention validates the rules and returns a convention.
func NewPathConvention(sensingTime SensingTimeRule, band BandRule) (PathConvention, error) {
	layout, err := compileTimeFormat(sensingTime.Format)
	if err != nil {
		return PathConvention{}, &ConfigurationError{
			Field:   "convention.sensing_time.format",
			Message: err.Error(),
		}
	}

	if sensingTime.Delimiter == "" && !wholeToken(sensingTime.Position) {
		return PathConvention{}, &ConfigurationError{
			Field:   "convention.sensing_time.position",
			Message: "must be 0 or -1 when no delimiter is set",
		}
	}

	if band.Delimiter == "" && !wholeToken(band.Position) {
		return PathConvention{}, &ConfigurationError{
			Field:   "convention.band.position",
			Message: "must be 0 or -1 when no delimiter is set",
		}
	}

	return PathConvention{
		sensingTime: sensingTime,
		band:        band,
		layout:      layout,
	}, nil
}

// SensingTime returns the sensing time rule.
func (c PathConvention) SensingTime() SensingTimeRule {
	return c.sensingTime
}

// Band returns the band rule.
func (c PathConvention) Band() BandRule {
	return c.band
}

// IsZero reports whether the convention was never initialised.
func (c PathConvention) IsZero() bool {
	return c.layout.raw == ""
}

// Derive extracts the canonical tile path, sensing time and band token from
// an object key. It is a pure function of its inputs.
func (c PathConvention) Derive(path string) (DerivedPath, error) {
	if c.IsZero() {
		return DerivedPath{}, &ConfigurationError{
			Field:   "convention",
			Message: "path convention is not initialised",
		}
	}

	segments := strings.Split(path, "/")

	sensingTime, err := c.deriveSensingTime(path, segments)
	if err != nil {
		return DerivedPath{}, err
	}

	canonical, token, err := c.substituteBand(path, segments)
	if err != nil {
		return DerivedPath{}, err
	}

	return DerivedPath{
		CanonicalPath: canonical,
		SensingTime:   sensingTime,
		BandToken:     token,
	}, nil
}

func (c PathConvention) deriveSensingTime(path string, segments []string) (time.Time, error) {
	rule := c.sensingTime

	idx, ok := resolveIndex(rule.Segment, len(segments))
	if !ok {
		return time.Time{}, &MalformedTimestampError{
			Path:   path,
			Format: rule.Format,
			Reason: "sensing time segment index out of range",
		}
	}

	parts := splitToken(segments[idx], rule.Delimiter)
	pos, ok := resolveIndex(rule.Position, len(parts))
	if !ok {
		return time.Time{}, &MalformedTimestampError{
			Path:   path,
			Format: rule.Format,
			Reason: "sensing time position out of range in segment " + segments[idx],
		}
	}

	token := parts[pos]
	t, err := c.layout.parse(token)
	if err != nil {
		return time.Time{}, &MalformedTimestampError{
			Path:   path,
			Token:  token,
			Format: rule.Format,
			Reason: err.Error(),
		}
	}

	return t, nil
}

func (c PathConvention) substituteBand(path string, segments []string) (string, string, error) {
	rule := c.band

	idx, ok := resolveIndex(rule.Segment, len(segments))
	if !ok {
		return "", "", &MalformedFilenameError{
			Path:   path,
			Reason: "filename segment index out of range",
		}
	}

	filename := segments[idx]
	parts := splitToken(filename, rule.Delimiter)
	pos, ok := resolveIndex(rule.Position, len(parts))
	if !ok {
		return "", "", &MalformedFilenameError{
			Path:    path,
			Segment: filename,
			Reason:  "band position out of range",
		}
	}

	token := parts[pos]
	parts[pos] = BandPlaceholder

	out := make([]string, len(segments))
	copy(out, segments)
	out[idx] = strings.Join(parts, rule.Delimiter)

	return strings.Join(out, "/"), token, nil
}

// resolveIndex maps a possibly negative index onto [0, n).
func resolveIndex(i, n int) (int, bool) {
	if i < 0 {
		i += n
	}
	return i, i >= 0 && i < n
}

func splitToken(s, delimiter string) []string {
	if delimiter == "" {
		return []string{s}
	}
	return strings.Split(s, delimiter)
}

func wholeToken(position int) bool {
	return position == 0 || position == -1
}
