package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jobrunner/byoc/internal/config"
)

func TestExtractHost(t *testing.T) {
	tests := map[string]string{
		"https://example.com":          "example.com",
		"https://example.com:8080":     "example.com",
		"http://example.com/path/to/x": "example.com",
		"https://example.com:443/path": "example.com",
		"https://deep.sub.example.com": "deep.sub.example.com",
		"http://localhost:3000":        "localhost",
		"http://192.168.1.1:8080":      "192.168.1.1",
		"example.com":                  "example.com",
		"":                             "",
	}

	for origin, want := range tests {
		if got := extractHost(origin); got != want {
			t.Errorf("extractHost(%q) = %q, want %q", origin, got, want)
		}
	}
}

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		pattern string
		want    bool
	}{
		{"https://example.com", "https://example.com", true},
		{"https://example.com:8080", "https://example.com:8080", true},
		{"http://example.com", "https://example.com", false},
		{"https://example.com:8080", "https://example.com:9090", false},
		{"https://sub.example.com", "*.example.com", true},
		{"https://deep.sub.example.com", "*.example.com", true},
		{"https://example.com", "*.example.com", false},
		{"https://notexample.com", "*.example.com", false},
		{"https://sub.other.com", "*.example.com", false},
		{"http://sub.localhost", "*.localhost", true},
		{"https://example.com", "*example.com", false},
		{"", "https://example.com", false},
		{"https://example.com", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		if got := matchOrigin(tt.origin, tt.pattern); got != tt.want {
			t.Errorf("matchOrigin(%q, %q) = %v, want %v", tt.origin, tt.pattern, got, tt.want)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		method     string
		wantStatus int
		wantAllow  string
		wantNext   bool
	}{
		{"allowed GET", "https://app.example.com", http.MethodGet, http.StatusOK, "https://app.example.com", true},
		{"allowed POST", "https://byoc.io", http.MethodPost, http.StatusOK, "https://byoc.io", true},
		{"allowed preflight", "https://byoc.io", http.MethodOptions, http.StatusNoContent, "https://byoc.io", false},
		{"foreign origin", "https://evil.com", http.MethodGet, http.StatusOK, "", true},
		{"foreign preflight", "https://evil.com", http.MethodOptions, http.StatusNoContent, "", false},
		{"no origin", "", http.MethodGet, http.StatusOK, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			s := &Server{config: config.ServerConfig{
				CORS: config.CORSConfig{AllowedOrigins: []string{"https://byoc.io", "*.example.com"}},
			}}

			req := httptest.NewRequest(tt.method, "/api/v1/sync", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			s.corsMiddleware(next).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.wantAllow == "" {
				return
			}
			if got := rr.Header().Get("Access-Control-Allow-Methods"); got != corsAllowMethods {
				t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, corsAllowMethods)
			}
			if got := rr.Header().Get("Vary"); got != "Origin" {
				t.Errorf("Vary = %q, want Origin", got)
			}
		})
	}
}

func TestCORSRoutedPreflight(t *testing.T) {
	srv := newTestServer(&mockIngestion{}, &mockHealth{healthy: true}, &mockSyncer{})
	srv.config.CORS.AllowedOrigins = []string{"https://byoc.io"}
	srv.router = srv.setupRoutes("")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sync", nil)
	req.Header.Set("Origin", "https://byoc.io")
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://byoc.io" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
