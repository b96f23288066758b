// Package main provides the entry point for the byoc tile ingestion tool.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/byoc/internal/app"
	"github.com/jobrunner/byoc/internal/config"
	"github.com/jobrunner/byoc/internal/ports/input"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "byoc",
	Short: "byoc - ingest object storage tiles into a BYOC collection",
	Long: `byoc ingests raster tiles stored in an object storage bucket into a
Sentinel Hub Bring Your Own COG collection.

Sensing time and band are derived from each object key with a configurable
path convention. Files of all bands of one tile are grouped under a single
catalog tile, and tiles the catalog already knows are never submitted twice.

Features:
  - Storage backends: AWS S3 / S3-compatible (CDSE eodata), MinIO, Azure, local
  - Dry-run planning and ingestion reports
  - Periodic and on-demand sync with a status API
  - SQLite journal of ingestion runs
  - TLS with automatic certificate management
  - Prometheus metrics`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("byoc %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage the catalog collection",
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the configured collection in the catalog",
	RunE:  runCollectionCreate,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List raster files below the configured prefix",
	RunE:  runDiscover,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Submit tiles the catalog does not know yet",
	RunE:  runIngest,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the ingestion status of the collection",
	RunE:  runReport,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent ingestion runs from the journal",
	RunE:  runRuns,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync scheduler and the status API",
	RunE:  runServe,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().String("storage-type", "s3", "storage type (s3, minio, azure, local)")
	rootCmd.PersistentFlags().String("bucket", "", "bucket holding the tiles")
	rootCmd.PersistentFlags().String("prefix", "", "prefix below which tiles are discovered")
	rootCmd.PersistentFlags().String("collection-id", "", "catalog collection to ingest into")

	// Command flags
	ingestCmd.Flags().Bool("dry-run", false, "only list the tiles that would be submitted")
	reportCmd.Flags().StringP("output", "o", "table", "output format (table, json, yaml)")
	runsCmd.Flags().Int("limit", 20, "number of runs to show")
	runsCmd.Flags().StringP("output", "o", "table", "output format (table, json, yaml)")

	// Server flags
	serveCmd.Flags().String("host", "0.0.0.0", "server host")
	serveCmd.Flags().Int("port", 8080, "server port")
	serveCmd.Flags().Duration("sync-interval", 0, "interval between scheduled syncs (0 disables)")
	serveCmd.Flags().Bool("tls", false, "enable TLS")
	serveCmd.Flags().StringSlice("tls-domains", nil, "TLS domains")
	serveCmd.Flags().String("tls-email", "", "TLS email for Let's Encrypt")
	serveCmd.Flags().StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("storage.type", rootCmd.PersistentFlags().Lookup("storage-type"))
	_ = viper.BindPFlag("storage.bucket", rootCmd.PersistentFlags().Lookup("bucket"))
	_ = viper.BindPFlag("storage.prefix", rootCmd.PersistentFlags().Lookup("prefix"))
	_ = viper.BindPFlag("catalog.collection_id", rootCmd.PersistentFlags().Lookup("collection-id"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("sync.interval", serveCmd.Flags().Lookup("sync-interval"))
	_ = viper.BindPFlag("tls.enabled", serveCmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", serveCmd.Flags().Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", serveCmd.Flags().Lookup("tls-email"))
	_ = viper.BindPFlag("server.cors.allowed_origins", serveCmd.Flags().Lookup("cors"))

	collectionCmd.AddCommand(collectionCreateCmd)
	rootCmd.AddCommand(versionCmd, collectionCmd, discoverCmd, ingestCmd, reportCmd, runsCmd, serveCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// newApp loads the configuration and wires the application.
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return application, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runCollectionCreate(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	collection, err := a.Ingestion.CreateCollection(ctx, a.Config.CollectionSpec())
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created collection %s (%s)\n", collection.ID, collection.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "Set catalog.collection_id or BYOC_CATALOG_COLLECTION_ID to %s to ingest into it.\n", collection.ID)
	return nil
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	keys, err := a.Ingestion.Discover(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), key)
	}
	return nil
}

func runIngest(cmd *cobra.Command, _ []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	run, err := a.Ingestion.Ingest(ctx, input.IngestOptions{DryRun: dryRun})
	if err != nil {
		return err
	}

	return writeRun(cmd.OutOrStdout(), run)
}

func runReport(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("output")

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	report, err := a.Ingestion.Report(ctx)
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), format, report)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("output")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	runs, err := a.Ingestion.Runs(ctx, limit)
	if err != nil {
		return err
	}

	return writeRuns(cmd.OutOrStdout(), format, runs)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cfg := a.Config
	a.Logger.Info("starting byoc",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage_type", cfg.Storage.Type,
		"catalog_type", cfg.Catalog.Type,
		"collection", cfg.Catalog.CollectionID,
		"sync_interval", cfg.Sync.Interval,
	)

	if err := a.Serve(ctx); err != nil {
		a.Logger.Error("server error", "error", err)
		return err
	}

	a.Logger.Info("server stopped")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	// Logs go to stderr so command output on stdout stays machine readable
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
