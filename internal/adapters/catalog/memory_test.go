package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobrunner/byoc/internal/domain"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	c, err := m.CreateCollection(ctx, domain.CollectionSpec{Name: "s2", BucketName: "eodata"})
	if err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	if c.ID == "" {
		t.Fatal("collection ID should be set")
	}

	got, err := m.GetCollection(ctx, c.ID)
	if err != nil || got.Name != "s2" {
		t.Fatalf("GetCollection() = %+v, %v", got, err)
	}

	tile := domain.TileRecord{Path: "a/(BAND).tif", SensingTime: time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)}
	if err := m.CreateTile(ctx, c.ID, tile); err != nil {
		t.Fatalf("CreateTile() error = %v", err)
	}

	tiles, err := m.ListTiles(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListTiles() error = %v", err)
	}
	if len(tiles) != 1 || tiles[0].Status != domain.TileStatusPending || tiles[0].ID == "" {
		t.Fatalf("ListTiles() = %+v", tiles)
	}

	if !m.SetStatus(c.ID, "a/(BAND).tif", domain.TileStatusFailed, "bad COG") {
		t.Fatal("SetStatus() should find the tile")
	}
	tiles, _ = m.ListTiles(ctx, c.ID)
	if tiles[0].Status != domain.TileStatusFailed || tiles[0].FailureCause != "bad COG" {
		t.Errorf("tile = %+v", tiles[0])
	}
	if m.SetStatus(c.ID, "missing", domain.TileStatusIngested, "") {
		t.Error("SetStatus() should not find a missing tile")
	}
}

func TestMemoryUnknownCollection(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetCollection(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetCollection() error = %v, want ErrNotFound", err)
	}
	if _, err := m.ListTiles(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ListTiles() error = %v, want ErrNotFound", err)
	}
	if err := m.CreateTile(ctx, "nope", domain.TileRecord{Path: "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("CreateTile() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryAddCollection(t *testing.T) {
	m := NewMemory()
	m.AddCollection(domain.Collection{ID: "fixed", Name: "n"})

	if _, err := m.ListTiles(context.Background(), "fixed"); err != nil {
		t.Errorf("ListTiles() error = %v", err)
	}
}
