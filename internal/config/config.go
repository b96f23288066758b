// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jobrunner/byoc/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Collection CollectionConfig `mapstructure:"collection"`
	Convention ConventionConfig `mapstructure:"convention"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Journal    JournalConfig    `mapstructure:"journal"`
	TLS        TLSConfig        `mapstructure:"tls"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // s3, minio, azure, local
	Bucket    string      `mapstructure:"bucket"`
	Prefix    string      `mapstructure:"prefix"` // Base prefix to discover below
	LocalPath string      `mapstructure:"local_path"`
	S3        S3Config    `mapstructure:"s3"`
	MinIO     MinIOConfig `mapstructure:"minio"`
	Azure     AzureConfig `mapstructure:"azure"`
}

// S3Config holds AWS S3 or S3-compatible configuration.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"` // e.g. https://eodata.dataspace.copernicus.eu
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// MinIOConfig holds MinIO configuration.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"` // host:port, no scheme
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
}

// CatalogConfig holds the tile catalog configuration.
type CatalogConfig struct {
	Type         string        `mapstructure:"type"` // sentinelhub, memory
	BaseURL      string        `mapstructure:"base_url"`
	TokenURL     string        `mapstructure:"token_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PageSize     int           `mapstructure:"page_size"`
	SettleWait   time.Duration `mapstructure:"settle_wait"`
	CollectionID string        `mapstructure:"collection_id"` // Existing collection to ingest into
}

// CollectionConfig describes the collection created by "collection create".
type CollectionConfig struct {
	Name      string       `mapstructure:"name"`
	Bucket    string       `mapstructure:"bucket"` // Defaults to storage.bucket
	StorageID string       `mapstructure:"storage_id"`
	Bands     []BandConfig `mapstructure:"bands"`
}

// BandConfig describes one band of the collection.
type BandConfig struct {
	Name         string `mapstructure:"name"`
	Source       string `mapstructure:"source"`
	BitDepth     int    `mapstructure:"bit_depth"`
	SampleFormat string `mapstructure:"sample_format"`
}

// ConventionConfig locates sensing time and band inside object keys.
type ConventionConfig struct {
	SensingTime SensingTimeConfig `mapstructure:"sensing_time"`
	Band        BandRuleConfig    `mapstructure:"band"`
}

// SensingTimeConfig locates the sensing time.
type SensingTimeConfig struct {
	Segment   int    `mapstructure:"segment"`
	Delimiter string `mapstructure:"delimiter"`
	Position  int    `mapstructure:"position"`
	Format    string `mapstructure:"format"`
}

// BandRuleConfig locates the band token.
type BandRuleConfig struct {
	Segment   int    `mapstructure:"segment"`
	Delimiter string `mapstructure:"delimiter"`
	Position  int    `mapstructure:"position"`
}

// SyncConfig holds periodic sync configuration.
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables scheduled syncs
}

// JournalConfig holds submission journal configuration.
type JournalConfig struct {
	Path string `mapstructure:"path"` // Empty disables the journal
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Domains  []string     `mapstructure:"domains"`
	Email    string       `mapstructure:"email"`
	CacheDir string       `mapstructure:"cache_dir"`
	Staging  bool         `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      TLSDNSConfig `mapstructure:"dns"`
}

// TLSDNSConfig holds Azure DNS settings for the DNS-01 challenge.
type TLSDNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"` // User-assigned managed identity
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 5*time.Minute)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// Storage defaults
	viper.SetDefault("storage.type", "s3")
	viper.SetDefault("storage.bucket", "")
	viper.SetDefault("storage.prefix", "")
	viper.SetDefault("storage.local_path", "./data")
	viper.SetDefault("storage.s3.region", "default")
	viper.SetDefault("storage.s3.endpoint", "")
	viper.SetDefault("storage.s3.use_path_style", false)
	viper.SetDefault("storage.s3.access_key_id", "")
	viper.SetDefault("storage.s3.secret_access_key", "")
	viper.SetDefault("storage.minio.endpoint", "")
	viper.SetDefault("storage.minio.access_key", "")
	viper.SetDefault("storage.minio.secret_key", "")
	viper.SetDefault("storage.minio.region", "")
	viper.SetDefault("storage.minio.use_ssl", true)
	viper.SetDefault("storage.azure.account_name", "")
	viper.SetDefault("storage.azure.account_key", "")
	viper.SetDefault("storage.azure.connection_string", "")

	// Catalog defaults
	viper.SetDefault("catalog.type", "sentinelhub")
	viper.SetDefault("catalog.base_url", "https://sh.dataspace.copernicus.eu")
	viper.SetDefault("catalog.token_url", "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token")
	viper.SetDefault("catalog.client_id", "")
	viper.SetDefault("catalog.client_secret", "")
	viper.SetDefault("catalog.timeout", 30*time.Second)
	viper.SetDefault("catalog.page_size", 100)
	viper.SetDefault("catalog.settle_wait", 5*time.Second)
	viper.SetDefault("catalog.collection_id", "")

	// Collection defaults
	viper.SetDefault("collection.name", "")
	viper.SetDefault("collection.bucket", "")
	viper.SetDefault("collection.storage_id", "")

	// Convention defaults: .../<YYYYMMDD>/<BAND>.tif
	viper.SetDefault("convention.sensing_time.segment", -2)
	viper.SetDefault("convention.sensing_time.delimiter", "")
	viper.SetDefault("convention.sensing_time.position", 0)
	viper.SetDefault("convention.sensing_time.format", "%Y%m%d")
	viper.SetDefault("convention.band.segment", -1)
	viper.SetDefault("convention.band.delimiter", ".")
	viper.SetDefault("convention.band.position", 0)

	// Sync defaults
	viper.SetDefault("sync.interval", time.Duration(0))

	// Journal defaults
	viper.SetDefault("journal.path", "")

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.namespace", "byoc")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from a .env file, the environment and a config file.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix("BYOC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/byoc")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return fmt.Errorf("TLS enabled but no domains specified")
		}
		if c.TLS.Email == "" {
			return fmt.Errorf("TLS enabled but no email specified")
		}
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("local storage path is required")
		}
	case "s3":
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("S3 region is required")
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" {
			return fmt.Errorf("MinIO endpoint is required")
		}
	case "azure":
		if c.Storage.Azure.AccountName == "" && c.Storage.Azure.ConnectionString == "" {
			return fmt.Errorf("azure account name or connection string is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	switch c.Catalog.Type {
	case "sentinelhub":
		if c.Catalog.ClientID == "" || c.Catalog.ClientSecret == "" {
			return fmt.Errorf("catalog client id and secret are required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown catalog type: %s", c.Catalog.Type)
	}

	if c.Catalog.SettleWait < 0 {
		return fmt.Errorf("invalid catalog settle wait: %s", c.Catalog.SettleWait)
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("invalid sync interval: %s", c.Sync.Interval)
	}

	if _, err := c.Convention.PathConvention(); err != nil {
		return err
	}

	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PathConvention builds the domain convention from the configured rules.
func (c *ConventionConfig) PathConvention() (domain.PathConvention, error) {
	return domain.NewPathConvention(
		domain.SensingTimeRule{
			Segment:   c.SensingTime.Segment,
			Delimiter: c.SensingTime.Delimiter,
			Position:  c.SensingTime.Position,
			Format:    c.SensingTime.Format,
		},
		domain.BandRule{
			Segment:   c.Band.Segment,
			Delimiter: c.Band.Delimiter,
			Position:  c.Band.Position,
		},
	)
}

// CollectionSpec returns the spec of the collection to create. The bucket
// falls back to the storage bucket.
func (c *Config) CollectionSpec() domain.CollectionSpec {
	bucket := c.Collection.Bucket
	if bucket == "" {
		bucket = c.Storage.Bucket
	}

	bands := make([]domain.BandDescriptor, len(c.Collection.Bands))
	for i, b := range c.Collection.Bands {
		bands[i] = domain.BandDescriptor{
			Name:         b.Name,
			Source:       b.Source,
			BitDepth:     b.BitDepth,
			SampleFormat: strings.ToUpper(b.SampleFormat),
		}
	}

	return domain.CollectionSpec{
		Name:       c.Collection.Name,
		BucketName: bucket,
		Bands:      bands,
		StorageID:  c.Collection.StorageID,
	}
}
