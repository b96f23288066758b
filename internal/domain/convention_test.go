package domain

import (
	"errors"
	"testing"
	"time"
)

func mustConvention(t *testing.T, st SensingTimeRule, band BandRule) PathConvention {
	t.Helper()
	c, err := NewPathConvention(st, band)
	if err != nil {
		t.Fatalf("NewPathConvention() error = %v", err)
	}
	return c
}

func sentinel2Convention(t *testing.T) PathConvention {
	return mustConvention(t,
		SensingTimeRule{Segment: 1, Delimiter: "", Position: 0, Format: "%Y%m%d"},
		BandRule{Segment: -1, Delimiter: "_", Position: 0},
	)
}

func TestDerive(t *testing.T) {
	c := sentinel2Convention(t)

	got, err := c.Derive("S2/20230615/B04_10m.tif")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	if got.CanonicalPath != "S2/20230615/(BAND)_10m.tif" {
		t.Errorf("CanonicalPath = %q, want %q", got.CanonicalPath, "S2/20230615/(BAND)_10m.tif")
	}
	want := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	if !got.SensingTime.Equal(want) {
		t.Errorf("SensingTime = %v, want %v", got.SensingTime, want)
	}
	if got.BandToken != "B04" {
		t.Errorf("BandToken = %q, want %q", got.BandToken, "B04")
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	c := sentinel2Convention(t)
	paths := []string{
		"S2/20230615/B04_10m.tif",
		"S2/20230101/B8A_20m.TIFF",
		"S2/19991231/SCL_60m.tif",
	}

	for _, p := range paths {
		first, err := c.Derive(p)
		if err != nil {
			t.Fatalf("Derive(%q) error = %v", p, err)
		}
		second, err := c.Derive(p)
		if err != nil {
			t.Fatalf("Derive(%q) second call error = %v", p, err)
		}
		if first != second {
			t.Errorf("Derive(%q) not deterministic: %+v != %+v", p, first, second)
		}
	}
}

func TestDeriveBandVariantsShareCanonicalPath(t *testing.T) {
	c := sentinel2Convention(t)

	var canonical string
	for _, band := range []string{"B02", "B03", "B04", "B08"} {
		got, err := c.Derive("S2/20230615/" + band + "_10m.tif")
		if err != nil {
			t.Fatalf("Derive() error = %v", err)
		}
		if canonical == "" {
			canonical = got.CanonicalPath
			continue
		}
		if got.CanonicalPath != canonical {
			t.Errorf("band %s: CanonicalPath = %q, want %q", band, got.CanonicalPath, canonical)
		}
	}
}

func TestDeriveVariants(t *testing.T) {
	tests := []struct {
		name          string
		sensing       SensingTimeRule
		band          BandRule
		path          string
		wantCanonical string
		wantTime      time.Time
		wantBand      string
	}{
		{
			name:          "date inside delimited folder name",
			sensing:       SensingTimeRule{Segment: -2, Delimiter: "_", Position: 2, Format: "%Y%m%dT%H%M%S"},
			band:          BandRule{Segment: -1, Delimiter: "_", Position: -1},
			path:          "products/T33UVP/S2A_MSIL2A_20230615T101031_N0509/T33UVP_B04.tif",
			wantCanonical: "products/T33UVP/S2A_MSIL2A_20230615T101031_N0509/T33UVP_(BAND)",
			wantTime:      time.Date(2023, 6, 15, 10, 10, 31, 0, time.UTC),
			wantBand:      "B04.tif",
		},
		{
			name:          "date in filename",
			sensing:       SensingTimeRule{Segment: -1, Delimiter: "_", Position: 1, Format: "%Y-%m-%d"},
			band:          BandRule{Segment: -1, Delimiter: "_", Position: 2},
			path:          "dem/tile_2021-03-04_elevation_v1.tiff",
			wantCanonical: "dem/tile_2021-03-04_(BAND)_v1.tiff",
			wantTime:      time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC),
			wantBand:      "elevation",
		},
		{
			name:          "go layout format",
			sensing:       SensingTimeRule{Segment: 0, Format: "2006-01-02"},
			band:          BandRule{Segment: -1, Delimiter: ".", Position: 0},
			path:          "2022-11-30/ndvi.tif",
			wantCanonical: "2022-11-30/(BAND).tif",
			wantTime:      time.Date(2022, 11, 30, 0, 0, 0, 0, time.UTC),
			wantBand:      "ndvi",
		},
		{
			name:          "day of year",
			sensing:       SensingTimeRule{Segment: 1, Delimiter: "-", Position: 0, Format: "%Y%j"},
			band:          BandRule{Segment: -1, Delimiter: "_", Position: 0},
			path:          "modis/2020060-v6/red_500m.tif",
			wantCanonical: "modis/2020060-v6/(BAND)_500m.tif",
			wantTime:      time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC),
			wantBand:      "red",
		},
		{
			name:          "band segment before filename",
			sensing:       SensingTimeRule{Segment: 0, Format: "%Y%m%d"},
			band:          BandRule{Segment: 1, Delimiter: "", Position: 0},
			path:          "20230615/B04/tile.tif",
			wantCanonical: "20230615/(BAND)/tile.tif",
			wantTime:      time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC),
			wantBand:      "B04",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustConvention(t, tt.sensing, tt.band)
			got, err := c.Derive(tt.path)
			if err != nil {
				t.Fatalf("Derive() error = %v", err)
			}
			if got.CanonicalPath != tt.wantCanonical {
				t.Errorf("CanonicalPath = %q, want %q", got.CanonicalPath, tt.wantCanonical)
			}
			if !got.SensingTime.Equal(tt.wantTime) {
				t.Errorf("SensingTime = %v, want %v", got.SensingTime, tt.wantTime)
			}
			if got.BandToken != tt.wantBand {
				t.Errorf("BandToken = %q, want %q", got.BandToken, tt.wantBand)
			}
		})
	}
}

func TestDeriveMalformedTimestamp(t *testing.T) {
	c := sentinel2Convention(t)

	tests := []struct {
		name string
		path string
	}{
		{"letters instead of date", "S2/abcd/B04_10m.tif"},
		{"month out of range", "S2/20231315/B04_10m.tif"},
		{"day out of range for month", "S2/20230230/B04_10m.tif"},
		{"trailing data", "S2/20230615x/B04_10m.tif"},
		{"segment out of range", "B04_10m.tif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Derive(tt.path)
			var tsErr *MalformedTimestampError
			if !errors.As(err, &tsErr) {
				t.Fatalf("Derive() error = %v, want MalformedTimestampError", err)
			}
			if tsErr.Path != tt.path {
				t.Errorf("Path = %q, want %q", tsErr.Path, tt.path)
			}
			if !errors.Is(err, ErrMalformedPath) {
				t.Error("MalformedTimestampError should unwrap to ErrMalformedPath")
			}
		})
	}
}

func TestDeriveRejectsLeapSecond(t *testing.T) {
	c := mustConvention(t,
		SensingTimeRule{Segment: 0, Format: "%Y%m%d%H%M%S"},
		BandRule{Segment: -1, Delimiter: ".", Position: 0},
	)

	_, err := c.Derive("20230615235960/B04.tif")
	var tsErr *MalformedTimestampError
	if !errors.As(err, &tsErr) {
		t.Fatalf("Derive() error = %v, want MalformedTimestampError", err)
	}
	if tsErr.Token != "20230615235960" {
		t.Errorf("Token = %q, want %q", tsErr.Token, "20230615235960")
	}
}

func TestDeriveUnpaddedDate(t *testing.T) {
	c := mustConvention(t,
		SensingTimeRule{Segment: 0, Format: "%Y%m%d"},
		BandRule{Segment: -1, Delimiter: ".", Position: 0},
	)

	got, err := c.Derive("2023615/B04.tif")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	want := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	if !got.SensingTime.Equal(want) {
		t.Errorf("SensingTime = %v, want %v", got.SensingTime, want)
	}
}

func TestDeriveMalformedFilename(t *testing.T) {
	c := mustConvention(t,
		SensingTimeRule{Segment: 0, Format: "%Y%m%d"},
		BandRule{Segment: -1, Delimiter: "_", Position: 3},
	)

	_, err := c.Derive("20230615/B04_10m.tif")
	var fnErr *MalformedFilenameError
	if !errors.As(err, &fnErr) {
		t.Fatalf("Derive() error = %v, want MalformedFilenameError", err)
	}
	if fnErr.Segment != "B04_10m.tif" {
		t.Errorf("Segment = %q, want %q", fnErr.Segment, "B04_10m.tif")
	}

	c = mustConvention(t,
		SensingTimeRule{Segment: 0, Format: "%Y%m%d"},
		BandRule{Segment: 5, Delimiter: "_", Position: 0},
	)
	if _, err := c.Derive("20230615/B04_10m.tif"); !errors.As(err, &fnErr) {
		t.Fatalf("Derive() error = %v, want MalformedFilenameError", err)
	}
}

func TestNewPathConventionValidation(t *testing.T) {
	tests := []struct {
		name      string
		sensing   SensingTimeRule
		band      BandRule
		wantField string
	}{
		{
			name:      "empty format",
			sensing:   SensingTimeRule{Segment: 1},
			band:      BandRule{Segment: -1, Delimiter: "_"},
			wantField: "convention.sensing_time.format",
		},
		{
			name:      "unknown directive",
			sensing:   SensingTimeRule{Segment: 1, Format: "%Y%Q"},
			band:      BandRule{Segment: -1, Delimiter: "_"},
			wantField: "convention.sensing_time.format",
		},
		{
			name:      "go layout without reference elements",
			sensing:   SensingTimeRule{Segment: 1, Format: "YYYYMMDD"},
			band:      BandRule{Segment: -1, Delimiter: "_"},
			wantField: "convention.sensing_time.format",
		},
		{
			name:      "sensing position without delimiter",
			sensing:   SensingTimeRule{Segment: 1, Position: 2, Format: "%Y"},
			band:      BandRule{Segment: -1, Delimiter: "_"},
			wantField: "convention.sensing_time.position",
		},
		{
			name:      "band position without delimiter",
			sensing:   SensingTimeRule{Segment: 1, Format: "%Y"},
			band:      BandRule{Segment: -1, Position: 1},
			wantField: "convention.band.position",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPathConvention(tt.sensing, tt.band)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("NewPathConvention() error = %v, want ConfigurationError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestDeriveZeroConvention(t *testing.T) {
	var c PathConvention
	if !c.IsZero() {
		t.Fatal("zero PathConvention should report IsZero")
	}
	if _, err := c.Derive("a/b.tif"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Derive() error = %v, want ErrInvalidInput", err)
	}
}
