// Package api serves the ingestion pipeline over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/JoaoPedroMBiofy/ingestor/internal/ingest"
	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

// Ingester runs one ingestion. *ingest.Pipeline satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// SearchFunc queries a collection.
type SearchFunc func(ctx context.Context, collection, query string, topK int) ([]vector.SearchResult, error)

// Config holds the server settings and optional extra routes.
type Config struct {
	ListenAddr  string
	BodyLimitMB int
	// MaxConcurrent caps ingestions running at once. Extra requests wait
	// up to QueueTimeout (default 10m) and then get 503. Zero means no cap.
	MaxConcurrent int
	QueueTimeout  time.Duration

	// UploadDir is the parent of per-request upload directories. Empty means
	// the system temp dir.
	UploadDir string

	// Health serves /health, /ready and /live when set.
	Health http.Handler
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Search enables POST /search when set.
	Search SearchFunc
}

// Server is the HTTP front of the pipeline.
type Server struct {
	config   Config
	ingester Ingester
	logger   *slog.Logger
	app      *fiber.App
	sem      chan struct{}
}

// NewServer creates the server and registers its routes.
func NewServer(config Config, ingester Ingester, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	limit := config.BodyLimitMB
	if limit <= 0 {
		limit = 100
	}

	if config.QueueTimeout <= 0 {
		config.QueueTimeout = 10 * time.Minute
	}

	// Immutable: form values outlive the handler in span attributes and
	// background exporters.
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
		BodyLimit:             limit * 1024 * 1024,
		ReadTimeout:           time.Minute,
	})

	s := &Server{
		config:   config,
		ingester: ingester,
		logger:   logger,
		app:      app,
	}
	if config.MaxConcurrent > 0 {
		s.sem = make(chan struct{}, config.MaxConcurrent)
	}

	app.Use(recover.New())
	app.Use(s.logRequests)

	app.Get("/healthcheck", s.handleHealthcheck)
	app.Post("/ingest/pdf", s.handleIngestPDF)

	if config.Search != nil {
		app.Post("/search", s.handleSearch)
	}
	if config.Health != nil {
		h := adaptor.HTTPHandler(config.Health)
		for _, path := range []string{"/health", "/healthz", "/ready", "/readyz", "/live", "/livez"} {
			app.Get(path, h)
		}
	}
	if config.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(config.Metrics))
	}

	return s
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Info("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}
