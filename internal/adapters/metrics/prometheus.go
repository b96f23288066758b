// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/output"
)

// Collector implements the MetricsCollector port using Prometheus. Each
// collector owns its registry.
type Collector struct {
	registry            *prometheus.Registry
	storageOperations   *prometheus.CounterVec
	storageDuration     *prometheus.HistogramVec
	catalogOperations   *prometheus.CounterVec
	tilesDiscovered     prometheus.Counter
	tilesSubmitted      prometheus.Counter
	runDuration         *prometheus.HistogramVec
	tileStatus          *prometheus.GaugeVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ output.MetricsCollector = (*Collector)(nil)

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "byoc"
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		storageOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		storageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		catalogOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_operations_total",
				Help:      "Total number of catalog API calls",
			},
			[]string{"operation", "status"},
		),

		tilesDiscovered: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tiles_discovered_total",
				Help:      "Total number of raster files discovered",
			},
		),

		tilesSubmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tiles_submitted_total",
				Help:      "Total number of tiles submitted to the catalog",
			},
		),

		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_run_duration_seconds",
				Help:      "Ingestion run duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
			},
			[]string{"dry_run", "status"},
		),

		tileStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tiles",
				Help:      "Number of catalog tiles by ingestion status at the last report",
			},
			[]string{"status"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func successLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// IncStorageOperations increments storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	c.storageOperations.WithLabelValues(operation, successLabel(success)).Inc()
}

// ObserveStorageDuration records storage operation duration.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncCatalogOperations increments catalog operation counter.
func (c *Collector) IncCatalogOperations(operation string, success bool) {
	c.catalogOperations.WithLabelValues(operation, successLabel(success)).Inc()
}

// AddTilesDiscovered adds to the discovered files counter.
func (c *Collector) AddTilesDiscovered(count int) {
	c.tilesDiscovered.Add(float64(count))
}

// AddTilesSubmitted adds to the submitted tiles counter.
func (c *Collector) AddTilesSubmitted(count int) {
	c.tilesSubmitted.Add(float64(count))
}

// ObserveRunDuration records the duration of an ingestion run.
func (c *Collector) ObserveRunDuration(dryRun bool, success bool, duration time.Duration) {
	c.runDuration.WithLabelValues(strconv.FormatBool(dryRun), successLabel(success)).Observe(duration.Seconds())
}

// SetTileStatus publishes the counts of an ingestion report.
func (c *Collector) SetTileStatus(report domain.IngestionReport) {
	c.tileStatus.WithLabelValues("ingested").Set(float64(report.Ingested()))
	c.tileStatus.WithLabelValues("failed").Set(float64(report.Failed()))
	c.tileStatus.WithLabelValues("pending").Set(float64(report.Pending()))
}

// IncHTTPRequests increments the HTTP request counter.
func (c *Collector) IncHTTPRequests(method, path, status string) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveHTTPDuration records HTTP request duration.
func (c *Collector) ObserveHTTPDuration(method, path string, duration time.Duration) {
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the Prometheus HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware returns HTTP middleware for metrics collection.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		path := normalizePath(r.URL.Path)
		status := statusToString(wrapped.statusCode)

		c.IncHTTPRequests(r.Method, path, status)
		c.ObserveHTTPDuration(r.Method, path, duration)
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes the URL path for metrics.
func normalizePath(path string) string {
	// Bound label cardinality
	switch {
	case len(path) > 32:
		return path[:32] + "..."
	default:
		return path
	}
}

// statusToString converts HTTP status code to string category.
func statusToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
