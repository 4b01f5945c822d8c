// Package app builds the ingestion components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/JoaoPedroMBiofy/ingestor/internal/bucket"
	"github.com/JoaoPedroMBiofy/ingestor/internal/chunk"
	"github.com/JoaoPedroMBiofy/ingestor/internal/config"
	"github.com/JoaoPedroMBiofy/ingestor/internal/document"
	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding"
	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding/gemini"
	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding/oci"
	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding/ollama"
	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding/openai"
	"github.com/JoaoPedroMBiofy/ingestor/internal/ingest"
	"github.com/JoaoPedroMBiofy/ingestor/internal/lineage"
	lineageneo4j "github.com/JoaoPedroMBiofy/ingestor/internal/lineage/neo4j"
	"github.com/JoaoPedroMBiofy/ingestor/internal/observability"
	"github.com/JoaoPedroMBiofy/ingestor/internal/secrets"
	"github.com/JoaoPedroMBiofy/ingestor/internal/server"
	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
	"github.com/JoaoPedroMBiofy/ingestor/internal/vector/qdrant"
	"github.com/JoaoPedroMBiofy/ingestor/internal/vector/sqlite"
	"github.com/JoaoPedroMBiofy/ingestor/internal/vector/weaviate"
)

// Converter is a document.Converter that can report its own health.
type Converter interface {
	document.Converter
	Check(ctx context.Context) error
}

// App holds the wired components of one process.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store     vector.Store
	Gateway   *vector.Gateway
	Provider  embedding.Provider
	Converter Converter
	Lineage   lineage.Recorder
	Metrics   *observability.IngestMetrics
	Tracer    *observability.TracerProvider
	Pipeline  *ingest.Pipeline

	closers []io.Closer
	once    sync.Once
}

// Options override components, mostly for tests.
type Options struct {
	Store     vector.Store
	Provider  embedding.Provider
	Extractor document.PageExtractor
	Converter Converter
}

// New wires every component from cfg. Optional integrations (bucket,
// lineage, tracing) are only created when configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if err := resolveSecrets(ctx, cfg, logger); err != nil {
		return nil, err
	}
	for _, w := range cfg.Validate() {
		logger.Warn("config", "warning", w)
	}

	a := &App{Config: cfg, Logger: logger, Metrics: observability.NewIngestMetrics(), Lineage: lineage.Nop{}}

	if err := a.initTracing(ctx); err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		s, err := OpenStore(cfg.Vector)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		store = s
	}
	a.Store = store

	allowEmpty := cfg.Vector.AllowEmptyUpsert
	a.Gateway = vector.NewGateway(store, vector.WithAllowEmpty(allowEmpty), vector.WithLogger(logger))

	provider := opts.Provider
	if provider == nil {
		p, closer, err := NewProvider(cfg.Embedding)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		provider = p
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}
	a.Provider = provider

	a.Converter = opts.Converter
	if a.Converter == nil {
		a.Converter = NewConverter(cfg.Converter)
	}

	extractor := opts.Extractor
	if extractor == nil {
		extractor = document.NewPDFCPUExtractor()
	}

	pipelineOpts := []ingest.Option{
		ingest.WithLogger(logger),
		ingest.WithMetrics(a.Metrics),
	}
	if cfg.Bucket.Enabled {
		pipelineOpts = append(pipelineOpts, ingest.WithUploader(bucket.NewHTTPUploader(cfg.Bucket.URL, cfg.Bucket.Suffix, cfg.Bucket.Timeout)))
	}
	if cfg.Lineage.Enabled {
		rec, err := lineageneo4j.New(ctx, cfg.Lineage.URI, cfg.Lineage.Username, cfg.Lineage.Password)
		if err != nil {
			// lineage is optional; ingestion keeps working without it
			logger.Error("lineage disabled", "uri", cfg.Lineage.URI, "error", err)
		} else {
			a.Lineage = rec
			pipelineOpts = append(pipelineOpts, ingest.WithLineage(rec))
		}
	}

	popts, err := PipelineOptions(cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Pipeline = ingest.New(extractor, a.Converter, a.Gateway, provider, popts, pipelineOpts...)

	logger.Info("ingestor ready",
		"store", store.Name(),
		"embedding", provider.Name(),
		"converter", a.Converter.Name(),
		"strategy", popts.DefaultStrategy,
		"mode", popts.DefaultMode,
	)
	return a, nil
}

func (a *App) initTracing(ctx context.Context) error {
	tc := observability.DefaultTracingConfig()
	tc.OTLPEndpoint = a.Config.Tracing.Endpoint
	tc.Insecure = a.Config.Tracing.Insecure
	if a.Config.Tracing.ServiceName != "" {
		tc.ServiceName = a.Config.Tracing.ServiceName
	}
	if a.Config.Tracing.SampleRate > 0 {
		tc.SampleRate = a.Config.Tracing.SampleRate
	}

	tp, err := observability.InitTracing(ctx, tc)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	a.Tracer = tp
	return nil
}

func resolveSecrets(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m, err := secrets.NewManager(cfg.Secrets)
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	if filled := m.Fill(ctx, cfg); len(filled) > 0 {
		logger.Debug("credentials resolved", "backend", m.Name(), "keys", filled)
	}
	return nil
}

// PipelineOptions converts configuration into pipeline settings.
func PipelineOptions(cfg *config.Config) (ingest.Options, error) {
	opts := ingest.DefaultOptions()

	strategy, err := chunk.ParseStrategy(cfg.Chunk.Strategy)
	if err != nil {
		return opts, err
	}
	mode, err := ingest.ParseMode(cfg.Ingest.Mode)
	if err != nil {
		return opts, err
	}
	distance, err := vector.ParseDistance(cfg.Vector.Distance)
	if err != nil {
		return opts, err
	}

	opts.DefaultStrategy = strategy
	opts.DefaultMode = mode
	opts.Chunk = chunk.Options{
		Size:            cfg.Chunk.Size,
		Overlap:         cfg.Chunk.Overlap,
		BufferSize:      cfg.Chunk.BufferSize,
		ThresholdAmount: cfg.Chunk.ThresholdAmount,
	}
	opts.VectorSize = cfg.Vector.VectorSize
	opts.Distance = distance
	opts.OutputDir = cfg.Ingest.OutputDir
	opts.WorkDir = cfg.Ingest.WorkDir
	opts.WriteMarkdown = cfg.Ingest.WriteMarkdown
	opts.KeepPageMarkdown = cfg.Ingest.KeepPageMarkdown
	return opts, nil
}

// OpenStore connects to the configured vector backend.
func OpenStore(cfg config.VectorConfig) (vector.Store, error) {
	switch cfg.Provider {
	case "qdrant":
		return qdrant.New(qdrant.Config{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			APIKey: cfg.Qdrant.APIKey,
			TLS:    cfg.Qdrant.TLS,
		})
	case "weaviate":
		return weaviate.New(weaviate.Config{
			Host:   cfg.Weaviate.Host,
			Scheme: cfg.Weaviate.Scheme,
			APIKey: cfg.Weaviate.APIKey,
		})
	case "sqlite":
		return sqlite.Open(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown vector provider %q", cfg.Provider)
	}
}

// NewEmbeddingFactory returns a factory with every built-in backend
// registered.
func NewEmbeddingFactory() *embedding.ProviderFactory {
	f := embedding.NewFactory()
	f.Register("oci", oci.NewFromConfig)
	f.Register("openai", openai.NewFromConfig)
	f.Register("gemini", gemini.NewFromConfig)
	f.Register("ollama", ollama.NewFromConfig)
	return f
}

// NewProvider builds the configured embedding provider. The closer is
// non-nil when the backend holds a connection.
func NewProvider(cfg config.EmbeddingConfig) (embedding.Provider, io.Closer, error) {
	var closer io.Closer

	f := NewEmbeddingFactory()
	f.Register("gemini", func(pc embedding.ProviderConfig) (embedding.Provider, error) {
		p, err := gemini.NewFromConfig(pc)
		if c, ok := p.(io.Closer); ok && err == nil {
			closer = c
		}
		return p, err
	})

	p, err := f.Create(embedding.ProviderConfig{
		Provider:          cfg.Provider,
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		RequestsPerMinute: cfg.RequestsPerMinute,
		OCI: embedding.OCICredentials{
			UserID:        cfg.OCI.UserID,
			Fingerprint:   cfg.OCI.Fingerprint,
			TenancyID:     cfg.OCI.TenancyID,
			Region:        cfg.OCI.Region,
			PrivateKey:    cfg.OCI.PrivateKey,
			CompartmentID: cfg.OCI.CompartmentID,
			Endpoint:      cfg.OCI.Endpoint,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return p, closer, nil
}

// NewConverter builds the configured OCR converter.
func NewConverter(cfg config.ConverterConfig) Converter {
	if cfg.Kind == "tesseract" {
		return document.NewTesseractConverter(cfg.Language, cfg.DPI)
	}
	return document.NewDoclingConverter(cfg.DoclingURL, cfg.Language, cfg.Timeout)
}

// Search embeds query with the configured provider and queries collection.
func (a *App) Search(ctx context.Context, collection, query string, topK int) ([]vector.SearchResult, error) {
	return a.Gateway.Search(ctx, collection, query, topK, a.Provider)
}

// HealthServer returns a health server with one check per component.
func (a *App) HealthServer() *server.HealthServer {
	hs := server.NewHealthServer(&server.HealthConfig{Version: "1.0.0"})
	a.RegisterHealthChecks(hs)
	return hs
}

// RegisterHealthChecks adds the store, embedding and converter checks to hs.
func (a *App) RegisterHealthChecks(hs *server.HealthServer) {
	hs.RegisterCheck("vector_store", server.StoreHealthChecker(a.Store.Name(), func(ctx context.Context) error {
		_, err := a.Store.CollectionExists(ctx, "ingestor_healthcheck")
		return err
	}))
	hs.RegisterCheck("embedding", server.EmbeddingHealthChecker(a.Provider.Name(), nil))
	hs.RegisterCheck("converter", server.ConverterHealthChecker(a.Converter.Name(), a.Converter.Check))
}

// RegisterShutdownHooks closes every component in priority order.
func (a *App) RegisterShutdownHooks(h *server.ShutdownHandler) {
	for _, c := range a.closers {
		h.AddHook(server.EmbeddingShutdownHook(c.Close))
	}
	h.AddHook(server.LineageShutdownHook(a.Lineage.Close))
	if a.Tracer != nil {
		h.AddHook(server.TracingShutdownHook(a.Tracer.Shutdown))
	}
	h.AddHook(server.StoreShutdownHook(a.Store.Close))
}

// Close releases every component. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var errList []error
	a.once.Do(func() {
		for _, c := range a.closers {
			errList = append(errList, c.Close())
		}
		if a.Lineage != nil {
			errList = append(errList, a.Lineage.Close(ctx))
		}
		if a.Tracer != nil {
			errList = append(errList, a.Tracer.Shutdown(ctx))
		}
		if a.Store != nil {
			errList = append(errList, a.Store.Close())
		}
	})
	return errors.Join(errList...)
}
