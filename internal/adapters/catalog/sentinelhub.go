// Package catalog provides tile catalog adapters.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/output"
)

// Copernicus Data Space Ecosystem endpoints.
const (
	DefaultBaseURL  = "https://sh.dataspace.copernicus.eu"
	DefaultTokenURL = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
)

const (
	byocPath        = "/api/v1/byoc/collections"
	defaultPageSize = 100
	maxErrorBody    = 64 << 10
)

// SentinelHubConfig holds Sentinel Hub BYOC API configuration.
type SentinelHubConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration // Per request, including token fetches
	PageSize     int           // Tiles per list request
}

// SentinelHub implements Catalog for the Sentinel Hub BYOC API. Requests are
// authenticated with OAuth2 client credentials; tokens are refreshed by the
// HTTP client when they expire.
type SentinelHub struct {
	client   *http.Client
	baseURL  string
	pageSize int
}

var _ output.Catalog = (*SentinelHub)(nil)

// NewSentinelHub creates a new Sentinel Hub catalog client.
func NewSentinelHub(ctx context.Context, cfg SentinelHubConfig) *SentinelHub {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	client := cc.Client(ctx)
	client.Timeout = cfg.Timeout

	return &SentinelHub{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: cfg.PageSize,
	}
}

type bandPayload struct {
	Source       string `json:"source"`
	BandIndex    int    `json:"bandIndex"`
	BitDepth     int    `json:"bitDepth"`
	SampleFormat string `json:"sampleFormat"`
}

type collectionAdditionalData struct {
	Bands             map[string]bandPayload `json:"bands,omitempty"`
	StorageIdentifier string                 `json:"storageIdentifier,omitempty"`
}

type collectionPayload struct {
	ID             string                   `json:"id,omitempty"`
	Name           string                   `json:"name"`
	S3Bucket       string                   `json:"s3Bucket"`
	Created        *time.Time               `json:"created,omitempty"`
	AdditionalData collectionAdditionalData `json:"additionalData"`
}

type tileAdditionalData struct {
	FailedIngestionCause string `json:"failedIngestionCause,omitempty"`
}

type tilePayload struct {
	ID             string              `json:"id,omitempty"`
	Path           string              `json:"path"`
	Status         string              `json:"status,omitempty"`
	SensingTime    string              `json:"sensingTime,omitempty"`
	AdditionalData *tileAdditionalData `json:"additionalData,omitempty"`
}

type tilePage struct {
	Data  []tilePayload `json:"data"`
	Links struct {
		NextToken string `json:"nextToken"`
	} `json:"links"`
}

type errorPayload struct {
	Error struct {
		Status  int    `json:"status"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCollection registers a new BYOC collection. Every band is read from
// band index 1 of its own file.
func (s *SentinelHub) CreateCollection(ctx context.Context, spec domain.CollectionSpec) (domain.Collection, error) {
	payload := collectionPayload{
		Name:     spec.Name,
		S3Bucket: spec.BucketName,
		AdditionalData: collectionAdditionalData{
			Bands:             make(map[string]bandPayload, len(spec.Bands)),
			StorageIdentifier: spec.StorageID,
		},
	}
	for _, band := range spec.Bands {
		payload.AdditionalData.Bands[band.Name] = bandPayload{
			Source:       band.Source,
			BandIndex:    1,
			BitDepth:     band.BitDepth,
			SampleFormat: band.SampleFormat,
		}
	}

	var resp struct {
		Data collectionPayload `json:"data"`
	}
	if err := s.do(ctx, "create_collection", http.MethodPost, byocPath, payload, &resp); err != nil {
		return domain.Collection{}, err
	}

	return toCollection(resp.Data), nil
}

// GetCollection returns an existing collection.
func (s *SentinelHub) GetCollection(ctx context.Context, collectionID string) (domain.Collection, error) {
	var resp struct {
		Data collectionPayload `json:"data"`
	}
	path := byocPath + "/" + url.PathEscape(collectionID)
	if err := s.do(ctx, "get_collection", http.MethodGet, path, nil, &resp); err != nil {
		return domain.Collection{}, err
	}

	return toCollection(resp.Data), nil
}

// ListTiles returns every tile of a collection, following view tokens until
// the last page.
func (s *SentinelHub) ListTiles(ctx context.Context, collectionID string) ([]domain.ExistingTile, error) {
	var tiles []domain.ExistingTile

	viewToken := ""
	for {
		query := url.Values{"count": {strconv.Itoa(s.pageSize)}}
		if viewToken != "" {
			query.Set("viewtoken", viewToken)
		}
		path := byocPath + "/" + url.PathEscape(collectionID) + "/tiles?" + query.Encode()

		var page tilePage
		if err := s.do(ctx, "list_tiles", http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}

		for _, t := range page.Data {
			tiles = append(tiles, toExistingTile(t))
		}

		if page.Links.NextToken == "" || page.Links.NextToken == viewToken {
			return tiles, nil
		}
		viewToken = page.Links.NextToken
	}
}

// CreateTile submits a tile. The catalog ingests it asynchronously.
func (s *SentinelHub) CreateTile(ctx context.Context, collectionID string, tile domain.TileRecord) error {
	payload := tilePayload{
		Path:        tile.Path,
		SensingTime: tile.SensingTime.UTC().Format(time.RFC3339),
	}
	path := byocPath + "/" + url.PathEscape(collectionID) + "/tiles"
	return s.do(ctx, "create_tile", http.MethodPost, path, payload, nil)
}

// do sends a JSON request and decodes the JSON response into out.
func (s *SentinelHub) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(op, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.CatalogError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    "decoding response: " + err.Error(),
		}
	}
	return nil
}

// transportError converts a failed round trip. Token endpoint rejections keep
// their status code so bad credentials do not look like an outage.
func transportError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &domain.CatalogError{
			Operation:  op,
			StatusCode: retrieveErr.Response.StatusCode,
			Message:    "token request failed: " + strings.TrimSpace(string(retrieveErr.Body)),
		}
	}
	return &domain.CatalogError{Operation: op, Message: err.Error()}
}

func responseError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := strings.TrimSpace(string(data))
	var payload errorPayload
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Error.Message != "":
			message = payload.Error.Message
		case payload.Error.Reason != "":
			message = payload.Error.Reason
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &domain.CatalogError{
		Operation:  op,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

func toCollection(p collectionPayload) domain.Collection {
	c := domain.Collection{
		ID:         p.ID,
		Name:       p.Name,
		BucketName: p.S3Bucket,
		StorageID:  p.AdditionalData.StorageIdentifier,
	}
	if p.Created != nil {
		c.CreatedAt = *p.Created
	}

	names := make([]string, 0, len(p.AdditionalData.Bands))
	for name := range p.AdditionalData.Bands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b := p.AdditionalData.Bands[name]
		c.Bands = append(c.Bands, domain.BandDescriptor{
			Name:         name,
			Source:       b.Source,
			BitDepth:     b.BitDepth,
			SampleFormat: b.SampleFormat,
		})
	}
	return c
}

func toExistingTile(p tilePayload) domain.ExistingTile {
	t := domain.ExistingTile{
		ID:     p.ID,
		Path:   p.Path,
		Status: domain.TileStatus(p.Status),
	}
	if p.AdditionalData != nil {
		t.FailureCause = p.AdditionalData.FailedIngestionCause
	}
	if st, err := time.Parse(time.RFC3339, p.SensingTime); err == nil {
		t.SensingTime = st.UTC()
	}
	return t
}
