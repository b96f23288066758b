package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/jobrunner/byoc/internal/domain"
)

const testToken = "test-token"

func newTestSentinelHub(t *testing.T, api http.HandlerFunc) *SentinelHub {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"`+testToken+`","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+testToken {
			t.Errorf("Authorization = %q", got)
		}
		api(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewSentinelHub(context.Background(), SentinelHubConfig{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/token",
		ClientID:     "id",
		ClientSecret: "secret",
		Timeout:      5 * time.Second,
	})
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestSentinelHubCreateCollection(t *testing.T) {
	var got collectionPayload
	sh := newTestSentinelHub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/byoc/collections" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		writeJSON(t, w, http.StatusCreated, `{"data":{"id":"col-1","name":"s2","s3Bucket":"eodata",
			"additionalData":{"storageIdentifier":"cdse","bands":{
				"B08":{"source":"B08","bandIndex":1,"bitDepth":16,"sampleFormat":"UINT"},
				"B04":{"source":"B04","bandIndex":1,"bitDepth":16,"sampleFormat":"UINT"}}}}}`)
	})

	spec := domain.CollectionSpec{
		Name:       "s2",
		BucketName: "eodata",
		StorageID:  "cdse",
		Bands: []domain.BandDescriptor{
			{Name: "B04", Source: "B04", BitDepth: 16, SampleFormat: domain.SampleFormatUInt},
			{Name: "B08", Source: "B08", BitDepth: 16, SampleFormat: domain.SampleFormatUInt},
		},
	}

	c, err := sh.CreateCollection(context.Background(), spec)
	if err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}

	if got.Name != "s2" || got.S3Bucket != "eodata" || got.AdditionalData.StorageIdentifier != "cdse" {
		t.Errorf("request body = %+v", got)
	}
	wantBand := bandPayload{Source: "B04", BandIndex: 1, BitDepth: 16, SampleFormat: "UINT"}
	if got.AdditionalData.Bands["B04"] != wantBand {
		t.Errorf("band B04 = %+v, want %+v", got.AdditionalData.Bands["B04"], wantBand)
	}

	if c.ID != "col-1" || c.BucketName != "eodata" || c.StorageID != "cdse" {
		t.Errorf("collection = %+v", c)
	}
	if !reflect.DeepEqual(c.Bands, spec.Bands) {
		t.Errorf("bands = %+v, want %+v", c.Bands, spec.Bands)
	}
}

func TestSentinelHubGetCollection(t *testing.T) {
	sh := newTestSentinelHub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/byoc/collections/col-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(t, w, http.StatusOK, `{"data":{"id":"col-1","name":"s2","s3Bucket":"eodata",
			"created":"2024-01-02T03:04:05Z","additionalData":{}}}`)
	})

	c, err := sh.GetCollection(context.Background(), "col-1")
	if err != nil {
		t.Fatalf("GetCollection() error = %v", err)
	}
	if c.Name != "s2" || !c.CreatedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("collection = %+v", c)
	}
}

func TestSentinelHubListTilesPaginates(t *testing.T) {
	requests := 0
	sh := newTestSentinelHub(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/api/v1/byoc/collections/col-1/tiles" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("count") != "100" {
			t.Errorf("count = %q", r.URL.Query().Get("count"))
		}

		switch r.URL.Query().Get("viewtoken") {
		case "":
			writeJSON(t, w, http.StatusOK, `{"data":[
				{"id":"t1","path":"a/(BAND).tif","status":"INGESTED","sensingTime":"2023-06-15T00:00:00Z"},
				{"id":"t2","path":"b/(BAND).tif","status":"FAILED","additionalData":{"failedIngestionCause":"not a COG"}}
			],"links":{"nextToken":"page2"}}`)
		case "page2":
			writeJSON(t, w, http.StatusOK, `{"data":[
				{"id":"t3","path":"c/(BAND).tif","status":"WAITING"}
			],"links":{}}`)
		default:
			t.Errorf("unexpected viewtoken %q", r.URL.Query().Get("viewtoken"))
		}
	})

	tiles, err := sh.ListTiles(context.Background(), "col-1")
	if err != nil {
		t.Fatalf("ListTiles() error = %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
	if len(tiles) != 3 {
		t.Fatalf("ListTiles() = %+v, want 3 tiles", tiles)
	}

	if tiles[0].Status != domain.TileStatusIngested || !tiles[0].SensingTime.Equal(time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("tiles[0] = %+v", tiles[0])
	}
	if tiles[1].FailureCause != "not a COG" {
		t.Errorf("tiles[1].FailureCause = %q", tiles[1].FailureCause)
	}

	report := domain.Summarize(tiles)
	if report.Ingested() != 1 || report.Failed() != 1 || report.Pending() != 1 {
		t.Errorf("report = %v", report.Counts)
	}
}

func TestSentinelHubCreateTile(t *testing.T) {
	var got tilePayload
	sh := newTestSentinelHub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/byoc/collections/col-1/tiles" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		writeJSON(t, w, http.StatusCreated, `{"data":{"id":"t1"}}`)
	})

	tile := domain.TileRecord{
		Path:        "S2/20230615/(BAND)_10m.tif",
		SensingTime: time.Date(2023, 6, 15, 10, 30, 0, 0, time.FixedZone("CEST", 2*3600)),
	}
	if err := sh.CreateTile(context.Background(), "col-1", tile); err != nil {
		t.Fatalf("CreateTile() error = %v", err)
	}

	if got.Path != tile.Path {
		t.Errorf("path = %q", got.Path)
	}
	if got.SensingTime != "2023-06-15T08:30:00Z" {
		t.Errorf("sensingTime = %q, want UTC RFC3339", got.SensingTime)
	}
}

func TestSentinelHubErrors(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		wantMessage     string
		wantNotFound    bool
		wantUnavailable bool
	}{
		{
			name:         "structured not found",
			status:       http.StatusNotFound,
			body:         `{"error":{"status":404,"reason":"Not Found","message":"Collection not found"}}`,
			wantMessage:  "Collection not found",
			wantNotFound: true,
		},
		{
			name:        "reason only",
			status:      http.StatusBadRequest,
			body:        `{"error":{"status":400,"reason":"Bad Request"}}`,
			wantMessage: "Bad Request",
		},
		{
			name:            "plain text",
			status:          http.StatusBadGateway,
			body:            "upstream down",
			wantMessage:     "upstream down",
			wantUnavailable: true,
		},
		{
			name:            "empty body",
			status:          http.StatusServiceUnavailable,
			wantMessage:     "Service Unavailable",
			wantUnavailable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh := newTestSentinelHub(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := sh.GetCollection(context.Background(), "col-1")
			var catErr *domain.CatalogError
			if !errors.As(err, &catErr) {
				t.Fatalf("GetCollection() error = %v, want CatalogError", err)
			}
			if catErr.StatusCode != tt.status || catErr.Operation != "get_collection" {
				t.Errorf("CatalogError = %+v", catErr)
			}
			if catErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", catErr.Message, tt.wantMessage)
			}
			if got := errors.Is(err, domain.ErrNotFound); got != tt.wantNotFound {
				t.Errorf("errors.Is(ErrNotFound) = %v", got)
			}
			if got := errors.Is(err, domain.ErrCatalogUnavailable); got != tt.wantUnavailable {
				t.Errorf("errors.Is(ErrCatalogUnavailable) = %v", got)
			}
		})
	}
}

func TestSentinelHubTokenRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_client"}`)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called without a token")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sh := NewSentinelHub(context.Background(), SentinelHubConfig{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/token",
		ClientID:     "id",
		ClientSecret: "wrong",
		Timeout:      5 * time.Second,
	})

	err := sh.CreateTile(context.Background(), "col-1", domain.TileRecord{Path: "a"})
	var catErr *domain.CatalogError
	if !errors.As(err, &catErr) {
		t.Fatalf("CreateTile() error = %v, want CatalogError", err)
	}
	if catErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", catErr.StatusCode)
	}
	if errors.Is(err, domain.ErrCatalogUnavailable) {
		t.Error("rejected credentials should not look like an outage")
	}
}

func TestSentinelHubUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sh := NewSentinelHub(context.Background(), SentinelHubConfig{
		BaseURL:  url,
		TokenURL: url + "/token",
		Timeout:  time.Second,
	})

	if _, err := sh.ListTiles(context.Background(), "col-1"); !errors.Is(err, domain.ErrCatalogUnavailable) {
		t.Errorf("ListTiles() error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestNewSentinelHubDefaults(t *testing.T) {
	sh := NewSentinelHub(context.Background(), SentinelHubConfig{BaseURL: DefaultBaseURL + "/"})

	if sh.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q", sh.baseURL)
	}
	if sh.pageSize != defaultPageSize {
		t.Errorf("pageSize = %d", sh.pageSize)
	}
}
