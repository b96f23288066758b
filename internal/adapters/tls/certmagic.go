// Package tls serves the status API over HTTPS with certificates managed by
// CertMagic, solving ACME DNS-01 challenges through Azure DNS.
package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"
)

// Config holds TLS configuration.
type Config struct {
	Enabled  bool
	Domains  []string
	Email    string
	CacheDir string
	Staging  bool // Use Let's Encrypt staging environment
	DNS      DNSConfig
}

// DNSConfig holds Azure DNS provider configuration for DNS-01 challenges.
type DNSConfig struct {
	SubscriptionID    string
	ResourceGroupName string
	ClientID          string // User Assigned Managed Identity client ID (optional)
}

// Timeouts bound the served connections.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
}

// Validate checks that an enabled configuration can obtain certificates.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Domains) == 0 {
		return fmt.Errorf("TLS enabled but no domains specified")
	}
	if c.Email == "" {
		return fmt.Errorf("TLS enabled but no email specified")
	}
	if c.DNS.SubscriptionID == "" || c.DNS.ResourceGroupName == "" {
		return fmt.Errorf("TLS enabled but Azure DNS subscription or resource group missing")
	}
	return nil
}

// Server wraps an HTTP server with automatic TLS.
type Server struct {
	config   Config
	handler  http.Handler
	timeouts Timeouts
	logger   *slog.Logger
	magic    *certmagic.Config

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a new TLS-enabled server. No certificate is requested
// until ManageCertificates or ListenAndServe runs.
func NewServer(cfg Config, handler http.Handler, timeouts Timeouts, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:   cfg,
		handler:  handler,
		timeouts: timeouts,
		logger:   logger,
	}
	if !cfg.Enabled {
		return s, nil
	}

	if cfg.CacheDir != "" {
		certmagic.Default.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}
	magic := certmagic.NewDefault()

	ca := certmagic.LetsEncryptProductionCA
	if cfg.Staging {
		ca = certmagic.LetsEncryptStagingCA
	}

	provider := &azure.Provider{
		SubscriptionId:    cfg.DNS.SubscriptionID,
		ResourceGroupName: cfg.DNS.ResourceGroupName,
		ClientId:          cfg.DNS.ClientID, // Empty = System Assigned Managed Identity
	}

	issuer := certmagic.NewACMEIssuer(magic, certmagic.ACMEIssuer{
		CA:     ca,
		Email:  cfg.Email,
		Agreed: true,
		DNS01Solver: &certmagic.DNS01Solver{
			DNSManager: certmagic.DNSManager{
				DNSProvider: provider,
			},
		},
	})
	magic.Issuers = []certmagic.Issuer{issuer}
	s.magic = magic

	return s, nil
}

// ManageCertificates obtains or renews certificates for the configured
// domains and keeps them renewed in the background.
func (s *Server) ManageCertificates(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	s.logger.Info("obtaining certificates", "domains", s.config.Domains)

	if err := s.magic.ManageSync(ctx, s.config.Domains); err != nil {
		return fmt.Errorf("managing certificates: %w", err)
	}

	s.logger.Info("certificates obtained successfully")
	return nil
}

// TLSConfig returns the TLS configuration, nil when TLS is disabled.
func (s *Server) TLSConfig() *tls.Config {
	if s.magic == nil {
		return nil
	}
	cfg := s.magic.TLSConfig()
	cfg.NextProtos = append([]string{"h2", "http/1.1"}, cfg.NextProtos...)
	return cfg
}

// ListenAndServe starts the server with TLS if enabled. It blocks until the
// server stops.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       s.timeouts.Read,
		WriteTimeout:      s.timeouts.Write,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !s.config.Enabled {
		s.setServer(server)
		s.logger.Info("starting HTTP server (TLS disabled)", "address", addr)
		return server.ListenAndServe()
	}

	if err := s.ManageCertificates(ctx); err != nil {
		return err
	}

	server.TLSConfig = s.TLSConfig()
	s.setServer(server)

	s.logger.Info("starting HTTPS server with DNS-01 challenge",
		"address", addr,
		"domains", s.config.Domains,
	)
	return server.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server. It is a no-op before
// ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) setServer(server *http.Server) {
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()
}
