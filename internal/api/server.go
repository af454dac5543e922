package api

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lunaticom/campaign-builder/internal/campaign"
	"github.com/lunaticom/campaign-builder/internal/config"
	"github.com/lunaticom/campaign-builder/internal/document"
	"github.com/lunaticom/campaign-builder/internal/format"
	"github.com/lunaticom/campaign-builder/internal/imgbb"
	"github.com/lunaticom/campaign-builder/internal/ipfilter"
	"github.com/lunaticom/campaign-builder/internal/metrics"
	"github.com/lunaticom/campaign-builder/internal/proof"
	"github.com/lunaticom/campaign-builder/internal/ratelimit"
	"github.com/lunaticom/campaign-builder/internal/template"
	"github.com/lunaticom/campaign-builder/internal/webhook"
)

// ImageUploader uploads header images
type ImageUploader interface {
	Upload(ctx context.Context, imageBase64, name string) (*imgbb.Upload, error)
}

// Submitter forwards campaigns to the automation hook
type Submitter interface {
	Submit(ctx context.Context, rec campaign.Record) (*webhook.Payload, error)
}

// ProofSender emails rendered campaigns
type ProofSender interface {
	Send(ctx context.Context, msg *proof.Message) (string, error)
}

// TemplateAdmin manages stored templates
type TemplateAdmin interface {
	List(ctx context.Context, filter template.ListFilter) ([]*template.Template, error)
	GetByName(ctx context.Context, name string) (*template.Template, error)
	Create(ctx context.Context, tmpl *template.Template) error
	Put(ctx context.Context, tmpl *template.Template) error
	DeleteByName(ctx context.Context, name string) error
	Stats(ctx context.Context) (*template.Stats, error)
}

// Services are the collaborators behind the API. Proof, Templates, Limiter
// and TLS may be nil.
type Services struct {
	Generator *document.Generator
	Images    ImageUploader
	Hook      Submitter
	Proof     ProofSender
	Templates TemplateAdmin
	Limiter   *ratelimit.Limiter

	// TLS serves the API over HTTPS when set
	TLS *tls.Config

	// CollapseBlankLines selects the preview formatter variant
	CollapseBlankLines bool
	Version            string
}

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     *config.APIConfig
	svc        Services
	preview    format.Options
	filter     *ipfilter.Filter
	proxies    *ipfilter.Proxies
	logger     *slog.Logger
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(cfg *config.APIConfig, svc Services, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		svc:       svc,
		preview:   format.Options{CollapseBlankLines: svc.CollapseBlankLines},
		filter:    ipfilter.New(cfg.AllowedIPs, logger),
		proxies:   ipfilter.NewProxies(cfg.TrustedProxies, logger),
		logger:    logger,
		startTime: time.Now(),
	}

	if s.filter.Enabled() {
		logger.Info("API IP filtering enabled", "allowed_networks", s.filter.Count())
	}
	if s.proxies.Enabled() {
		logger.Info("forwarding headers trusted from proxies", "proxies", cfg.TrustedProxies)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        s.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
		TLSConfig:      svc.TLS,
	}

	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.proxies.Middleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metrics.HTTPMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.filter.Middleware)
		r.Use(s.authMiddleware)
		r.Use(s.bodyLimitMiddleware)

		r.Post("/preview", s.handlePreview)
		r.Post("/generate-html", s.handleGenerateHTML)
		r.Post("/generate-brief", s.handleGenerateBrief)
		r.With(s.rateLimitMiddleware("upload")).Post("/upload-image", s.handleUploadImage)
		r.With(s.rateLimitMiddleware("submit")).Post("/submit", s.handleSubmit)
		r.With(s.rateLimitMiddleware("proof")).Post("/proof", s.handleProof)

		if s.svc.Templates != nil {
			s.registerTemplateRoutes(r)
		}
	})
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	if s.httpServer.TLSConfig != nil {
		s.logger.Info("starting HTTPS API server", "addr", s.config.ListenAddr)
		// certificates come from TLSConfig
		return s.httpServer.ListenAndServeTLS("", "")
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	return s.httpServer.Shutdown(ctx)
}
