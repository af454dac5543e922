package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/lunaticom/campaign-builder/internal/api"
	"github.com/lunaticom/campaign-builder/internal/certs"
	"github.com/lunaticom/campaign-builder/internal/config"
	"github.com/lunaticom/campaign-builder/internal/dkim"
	"github.com/lunaticom/campaign-builder/internal/document"
	"github.com/lunaticom/campaign-builder/internal/imgbb"
	"github.com/lunaticom/campaign-builder/internal/metrics"
	"github.com/lunaticom/campaign-builder/internal/proof"
	"github.com/lunaticom/campaign-builder/internal/ratelimit"
	"github.com/lunaticom/campaign-builder/internal/template"
	"github.com/lunaticom/campaign-builder/internal/webhook"
)

const shutdownTimeout = 30 * time.Second

// App is the main application
type App struct {
	config        *config.Config
	apiServer     *api.Server
	metricsServer *metrics.Server
	acmeServer    *http.Server
	templates     template.Store
	limiter       *ratelimit.Limiter
	closer        io.Closer
	logger        *slog.Logger
}

// New creates a new application
func New(cfg *config.Config, version string) (*App, error) {
	return NewWithLogger(cfg, version, SetupLogger(cfg.Logging, os.Stdout))
}

// NewWithLogger creates a new application logging to logger
func NewWithLogger(cfg *config.Config, version string, logger *slog.Logger) (*App, error) {
	a := &App{
		config: cfg,
		logger: logger,
	}

	// Metrics are registered first so the template gauge can be seeded
	if cfg.Metrics.Enabled {
		m := metrics.New()
		metrics.SetGlobal(m)
		a.metricsServer = metrics.NewServer(m, cfg.Metrics.ListenAddr, cfg.Metrics.Path,
			cfg.Metrics.AllowedIPs, logger.With("component", "metrics"))
	}

	svc := api.Services{
		CollapseBlankLines: cfg.CollapseBlankLines(),
		Version:            version,
	}

	// Template storage. The bolt file also keeps rate limit counters.
	var db *bolt.DB
	switch cfg.Templates.Source {
	case config.TemplateSourceDir:
		a.templates = template.NewDirStore(cfg.Templates.Dir)
		logger.Info("templates loaded from directory", "dir", cfg.Templates.Dir)
	default:
		store, err := template.OpenBoltStore(cfg.Templates.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open template storage: %w", err)
		}
		a.templates = store
		a.closer = store
		svc.Templates = store
		db = store.DB()

		if stats, err := store.Stats(context.Background()); err == nil {
			metrics.SetTemplatesStored(stats.Total)
			logger.Info("template storage opened", "path", cfg.Templates.Path, "templates", stats.Total)
		}
	}

	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.NewLimiter(db, ratelimit.Config{
			Global:        cfg.RateLimit.Global,
			PerIP:         cfg.RateLimit.PerIP,
			PerAction:     cfg.RateLimit.PerAction,
			FlushInterval: cfg.RateLimit.FlushInterval,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		a.limiter = limiter
		svc.Limiter = limiter
		logger.Info("rate limiting enabled", "persistent", db != nil)
	}

	svc.Generator = document.NewGenerator(a.templates,
		document.WithLayout(cfg.Output.BriefLayout),
		document.WithFilenamePolicy(cfg.Output.FilenamePolicy),
	)

	svc.Images = imgbb.NewClient(imgbb.Config{
		APIKey:     cfg.ImgBB.APIKey,
		UploadURL:  cfg.ImgBB.UploadURL,
		Timeout:    cfg.ImgBB.Timeout,
		Expiration: cfg.ImgBB.Expiration,
	})
	if cfg.ImgBB.APIKey == "" {
		logger.Warn("image upload not configured", "env", config.EnvImgBBAPIKey)
	}

	svc.Hook = webhook.NewClient(cfg.Webhook.URL, cfg.Webhook.Source, cfg.Webhook.Timeout)
	if cfg.Webhook.URL == "" {
		logger.Warn("submission hook not configured", "env", config.EnvHookURL)
	}

	if cfg.Proof.Enabled {
		sender, err := newProofSender(cfg.Proof, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		svc.Proof = sender
	}

	if cfg.API.TLS.Enabled() {
		tlsConfig, err := a.setupTLS(cfg.API.TLS)
		if err != nil {
			a.close()
			return nil, err
		}
		svc.TLS = tlsConfig
	}

	a.apiServer = api.NewServer(&cfg.API, svc, logger.With("component", "api"))

	return a, nil
}

// newProofSender builds the proof relay client with optional DKIM signing
func newProofSender(cfg config.ProofConfig, logger *slog.Logger) (*proof.Sender, error) {
	var signer *dkim.Signer
	if cfg.DKIM.Enabled {
		key, err := dkim.LoadKey(cfg.DKIM.KeyFile, cfg.DKIM.Domain, cfg.DKIM.Selector)
		if err != nil {
			return nil, fmt.Errorf("failed to load DKIM key: %w", err)
		}
		signer = dkim.NewSigner(key)
		logger.Info("DKIM signing enabled", "domain", key.Domain, "selector", key.Selector)
	}

	logger.Info("proof sending enabled", "relay", cfg.Addr, "from", cfg.From)

	return proof.NewSender(proof.Config{
		Addr:        cfg.Addr,
		ImplicitTLS: cfg.ImplicitTLS,
		Username:    cfg.Username,
		Password:    cfg.Password,
		From:        cfg.From,
	}, signer, logger.With("component", "proof")), nil
}

// setupTLS loads manual certificates or prepares the ACME manager and its
// HTTP-01 challenge listener
func (a *App) setupTLS(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.ACME.Enabled {
		tlsConfig, err := certs.Load(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		if info, err := certs.ReadInfo(cfg.CertFile); err == nil {
			a.logger.Info("TLS enabled with manual certificate",
				"subject", info.Subject, "expires", info.NotAfter, "days_left", info.DaysLeft(time.Now()))
		}
		return tlsConfig, nil
	}

	manager := certs.NewManager(certs.ACMEConfig{
		Email:        cfg.ACME.Email,
		Domains:      cfg.ACME.Domains,
		CacheDir:     cfg.ACME.CacheDir,
		DirectoryURL: cfg.ACME.DirectoryURL,
	})
	a.acmeServer = &http.Server{
		Addr:              cfg.ACME.HTTPAddr,
		Handler:           manager.ChallengeHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.logger.Info("ACME (Let's Encrypt) enabled", "domains", cfg.ACME.Domains)

	return manager.TLSConfig(), nil
}

// Handler returns the API handler
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	logAttrs := []any{
		"api_addr", a.config.API.ListenAddr,
		"templates", a.config.Templates.Source,
	}
	if a.metricsServer != nil {
		logAttrs = append(logAttrs, "metrics_addr", a.config.Metrics.ListenAddr)
	}
	a.logger.Info("starting campaign-builder", logAttrs...)

	// Create context that listens for signals
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	if a.acmeServer != nil {
		go func() {
			a.logger.Info("starting ACME HTTP challenge server", "addr", a.acmeServer.Addr)
			if err := a.acmeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Warn("ACME HTTP server error", "error", err)
			}
		}()
	}

	// Wait for shutdown signal or error
	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("server error", "error", runErr)
		cancel()
	}

	if err := a.Shutdown(context.Background()); err != nil {
		return err
	}
	return runErr
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if a.acmeServer != nil {
		if err := a.acmeServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("ACME server shutdown error", "error", err)
		}
	}

	a.close()

	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) close() {
	// counters are flushed before the database they live in closes
	if a.limiter != nil {
		if err := a.limiter.Stop(); err != nil {
			a.logger.Error("rate limiter stop error", "error", err)
		}
		a.limiter = nil
	}

	if a.closer == nil {
		return
	}
	if err := a.closer.Close(); err != nil {
		a.logger.Error("template storage close error", "error", err)
	}
	a.closer = nil
}

// SetupLogger creates a logger based on configuration
func SetupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
