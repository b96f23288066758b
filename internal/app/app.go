// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/jobrunner/byoc/internal/adapters/catalog"
	httpAdapter "github.com/jobrunner/byoc/internal/adapters/http"
	"github.com/jobrunner/byoc/internal/adapters/journal"
	"github.com/jobrunner/byoc/internal/adapters/metrics"
	"github.com/jobrunner/byoc/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/byoc/internal/adapters/tls"
	"github.com/jobrunner/byoc/internal/adapters/watcher"
	"github.com/jobrunner/byoc/internal/application"
	"github.com/jobrunner/byoc/internal/config"
	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Lister        output.ObjectLister
	Catalog       output.Catalog
	Journal       output.SubmissionJournal
	Metrics       *metrics.Collector
	Ingestion     *application.IngestionService
	SyncService   *application.SyncService
	HealthService *application.HealthService

	// Set up by Serve
	HTTPServer *httpAdapter.Server
	TLSServer  *tlsAdapter.Server
	Watcher    *watcher.Watcher
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize metrics
	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector(cfg.Metrics.Namespace)
		metricsCollector = app.Metrics
	}

	convention, err := cfg.Convention.PathConvention()
	if err != nil {
		return nil, fmt.Errorf("building path convention: %w", err)
	}

	lister, err := initLister(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Lister = lister

	app.Catalog = initCatalog(ctx, cfg)

	app.Journal = output.NoOpJournal{}
	if cfg.Journal.Path != "" {
		j, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		app.Journal = j
	}

	app.Ingestion = application.NewIngestionService(
		application.IngestionConfig{
			Bucket:       cfg.Storage.Bucket,
			Prefix:       cfg.Storage.Prefix,
			CollectionID: cfg.Catalog.CollectionID,
			Convention:   convention,
			SettleWait:   cfg.Catalog.SettleWait,
		},
		app.Lister,
		app.Catalog,
		app.Journal,
		metricsCollector,
		logger,
	)

	app.SyncService = application.NewSyncService(app.Ingestion, cfg.Sync.Interval, logger)
	app.HealthService = application.NewHealthService(app.Ingestion, app.SyncService)

	return app, nil
}

// Close releases resources held by the application.
func (a *App) Close() error {
	return a.Journal.Close()
}

// Serve runs the status API, the sync scheduler and, for local storage, the
// file watcher until ctx is canceled or a component fails.
func (a *App) Serve(ctx context.Context) error {
	if err := a.initServer(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	a.SyncService.Start(gctx)

	if a.Watcher != nil {
		if err := a.Watcher.Start(gctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	g.Go(func() error {
		var err error
		if a.TLSServer != nil {
			err = a.TLSServer.ListenAndServe(gctx, a.Config.Server.Address())
		} else {
			err = a.HTTPServer.Start()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
		defer cancel()
		return a.shutdown(shutdownCtx)
	})

	return g.Wait()
}

// initServer creates the HTTP server and the optional TLS server and watcher.
func (a *App) initServer() error {
	cfg := a.Config

	deps := httpAdapter.Dependencies{
		Ingestion: a.Ingestion,
		Health:    a.HealthService,
		Sync:      a.SyncService,
	}
	if a.Metrics != nil {
		deps.Metrics = a.Metrics
		deps.MetricsPath = cfg.Metrics.Path
	}
	a.HTTPServer = httpAdapter.NewServer(cfg.Server, deps, a.Logger)

	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Enabled:  cfg.TLS.Enabled,
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
					ClientID:          cfg.TLS.DNS.ClientID,
				},
			},
			a.HTTPServer.Router(),
			tlsAdapter.Timeouts{Read: cfg.Server.ReadTimeout, Write: cfg.Server.WriteTimeout},
			a.Logger,
		)
		if err != nil {
			return fmt.Errorf("initializing TLS: %w", err)
		}
		a.TLSServer = tlsServer
	}

	// Watch local storage so new tiles are picked up without waiting for the
	// next scheduled sync
	if local, ok := a.Lister.(*storage.LocalLister); ok {
		w, err := watcher.New(
			watcher.Config{Root: local.BucketPath(cfg.Storage.Bucket)},
			a.handleFileEvents,
			a.Logger,
		)
		if err != nil {
			a.Logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			a.Watcher = w
		}
	}

	return nil
}

// shutdown gracefully stops all components.
func (a *App) shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	a.SyncService.Stop()

	var err error
	if a.TLSServer != nil {
		err = a.TLSServer.Shutdown(ctx)
	} else {
		err = a.HTTPServer.Shutdown(ctx)
	}
	if err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}
	return err
}

// handleFileEvents runs a sync for a batch of raster file changes.
func (a *App) handleFileEvents(ctx context.Context, events []watcher.Event) error {
	a.Logger.Info("raster files changed", "count", len(events), "first", events[0].Path)

	result, err := a.SyncService.SyncNow(ctx)
	if err != nil {
		return fmt.Errorf("syncing after file events: %w", err)
	}

	a.Logger.Info("sync after file events completed", "submitted", result.Submitted)
	return nil
}

// initLister initializes the object storage adapter.
func initLister(ctx context.Context, cfg config.StorageConfig) (output.ObjectLister, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalLister(cfg.LocalPath), nil

	case output.StorageTypeS3:
		return storage.NewS3Lister(ctx, storage.S3Config{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			UsePathStyle:    cfg.S3.UsePathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case output.StorageTypeMinIO:
		return storage.NewMinIOLister(storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Region:    cfg.MinIO.Region,
			UseSSL:    cfg.MinIO.UseSSL,
		})

	case output.StorageTypeAzure:
		return storage.NewAzureLister(storage.AzureConfig{
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
		})

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// initCatalog initializes the catalog adapter. The in-memory catalog is
// seeded with the configured collection so ingestion can run against it.
func initCatalog(ctx context.Context, cfg *config.Config) output.Catalog {
	if cfg.Catalog.Type == "memory" {
		mem := catalog.NewMemory()
		if cfg.Catalog.CollectionID != "" {
			spec := cfg.CollectionSpec()
			mem.AddCollection(domain.Collection{
				ID:         cfg.Catalog.CollectionID,
				Name:       spec.Name,
				BucketName: spec.BucketName,
				StorageID:  spec.StorageID,
				Bands:      spec.Bands,
			})
		}
		return mem
	}

	return catalog.NewSentinelHub(ctx, catalog.SentinelHubConfig{
		BaseURL:      cfg.Catalog.BaseURL,
		TokenURL:     cfg.Catalog.TokenURL,
		ClientID:     cfg.Catalog.ClientID,
		ClientSecret: cfg.Catalog.ClientSecret,
		Timeout:      cfg.Catalog.Timeout,
		PageSize:     cfg.Catalog.PageSize,
	})
}
