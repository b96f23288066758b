package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"strings"
)

// CORS response values. POST is needed for the sync trigger.
const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Accept, Content-Type, Authorization"
	corsMaxAge       = "86400"
)

// corsMiddleware sets CORS headers for allowed origins and answers preflight
// requests.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.isOriginAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			h.Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isOriginAllowed checks if the given origin matches any allowed pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, pattern := range s.config.CORS.AllowedOrigins {
		if matchOrigin(origin, pattern) {
			return true
		}
	}
	return false
}

// matchOrigin matches an origin exactly or against a "*.example.com"
// pattern. A wildcard matches subdomains only, never the bare domain.
func matchOrigin(origin, pattern string) bool {
	if origin == pattern {
		return origin != ""
	}

	suffix, ok := strings.CutPrefix(pattern, "*")
	if !ok || !strings.HasPrefix(suffix, ".") {
		return false
	}

	host := extractHost(origin)
	return len(host) > len(suffix) && strings.HasSuffix(host, suffix)
}

// extractHost returns the host of an origin without scheme, port or path.
func extractHost(origin string) string {
	host := origin
	if _, rest, ok := strings.Cut(host, "://"); ok {
		host = rest
	}
	if i := strings.IndexAny(host, ":/"); i != -1 {
		host = host[:i]
	}
	return host
}
