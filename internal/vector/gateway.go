package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/google/uuid"

	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding"
	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
)

// Gateway owns collection lifecycle and point upserts against a Store.
// It holds no per-call state and is safe for concurrent use.
type Gateway struct {
	store      Store
	allowEmpty bool
	newID      func() string
	logger     *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithAllowEmpty controls whether EmbedAndUpsert accepts an empty document
// list as a no-op (true) or rejects it with EmptyInput (false).
func WithAllowEmpty(allow bool) GatewayOption {
	return func(g *Gateway) { g.allowEmpty = allow }
}

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// WithIDGenerator replaces the point id generator.
func WithIDGenerator(fn func() string) GatewayOption {
	return func(g *Gateway) { g.newID = fn }
}

// NewGateway creates a Gateway over store.
func NewGateway(store Store, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store:      store,
		allowEmpty: true,
		newID:      uuid.NewString,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Store returns the underlying backend.
func (g *Gateway) Store() Store { return g.store }

// EnsureCollection creates the collection if it does not exist. A concurrent
// creator winning the race is not an error. An existing collection with a
// different vector size is a DimensionMismatch, and one with a different
// distance is a DistanceMismatch.
func (g *Gateway) EnsureCollection(ctx context.Context, c Collection) error {
	const op = "vector.EnsureCollection"

	if c.Name == "" {
		return errs.Ef(errs.EmptyInput, op, "collection name is empty")
	}
	if c.VectorSize <= 0 {
		return errs.Ef(errs.DimensionMismatch, op, fmt.Sprintf("vector size must be positive, got %d", c.VectorSize))
	}
	if c.Distance == "" {
		c.Distance = Cosine
	}

	exists, err := g.store.CollectionExists(ctx, c.Name)
	if err != nil {
		return errs.E(errs.StoreUnavailable, op, err)
	}

	if !exists {
		err := g.store.CreateCollection(ctx, c)
		switch {
		case err == nil:
			g.logger.Info("created collection",
				"collection", c.Name, "vector_size", c.VectorSize, "distance", c.Distance, "store", g.store.Name())
		case errors.Is(err, ErrCollectionExists):
			g.logger.Debug("collection created concurrently", "collection", c.Name)
		default:
			return errs.E(errs.StoreUnavailable, op, err)
		}
	}

	info, err := g.store.CollectionInfo(ctx, c.Name)
	if err != nil {
		return errs.E(errs.StoreUnavailable, op, err)
	}
	if info.VectorSize != c.VectorSize {
		return errs.Ef(errs.DimensionMismatch, op,
			fmt.Sprintf("collection %q has vector size %d, requested %d", c.Name, info.VectorSize, c.VectorSize))
	}
	if info.Distance != "" && info.Distance != c.Distance {
		return errs.Ef(errs.DistanceMismatch, op,
			fmt.Sprintf("collection %q uses %s distance, requested %s", c.Name, info.Distance, c.Distance))
	}
	return nil
}

// EmbedAndUpsert embeds docs in one batch and writes them as fresh points in
// one upsert. It returns the point ids in document order. Nothing is written
// unless every vector matches the collection's size.
func (g *Gateway) EmbedAndUpsert(ctx context.Context, collection string, docs []Document, provider embedding.Provider) ([]string, error) {
	const op = "vector.EmbedAndUpsert"

	if len(docs) == 0 {
		if g.allowEmpty {
			return nil, nil
		}
		return nil, errs.Ef(errs.EmptyInput, op, "no documents to upsert")
	}

	info, err := g.store.CollectionInfo(ctx, collection)
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return nil, errs.E(errs.UpsertFailure, op, err)
		}
		return nil, errs.E(errs.StoreUnavailable, op, err)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vectors, err := provider.Embed(ctx, texts)
	if err != nil {
		return nil, errs.E(errs.UpsertFailure, op, fmt.Errorf("embedding %d documents: %w", len(docs), err))
	}
	if len(vectors) != len(docs) {
		return nil, errs.Ef(errs.UpsertFailure, op,
			fmt.Sprintf("provider %s returned %d vectors for %d documents", provider.Name(), len(vectors), len(docs)))
	}

	points := make([]Point, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		if len(vectors[i]) != info.VectorSize {
			return nil, errs.Ef(errs.DimensionMismatch, op,
				fmt.Sprintf("document %d has %d dimensions, collection %q expects %d", i, len(vectors[i]), collection, info.VectorSize))
		}

		payload := make(map[string]string, len(d.Metadata)+1)
		maps.Copy(payload, d.Metadata)
		payload[PayloadContentKey] = d.Content

		ids[i] = g.newID()
		points[i] = Point{ID: ids[i], Vector: vectors[i], Payload: payload}
	}

	if err := g.store.Upsert(ctx, collection, points); err != nil {
		return nil, errs.E(errs.UpsertFailure, op, err)
	}

	g.logger.Debug("upserted points", "collection", collection, "points", len(points))
	return ids, nil
}

// Search embeds query and returns the topK closest points.
func (g *Gateway) Search(ctx context.Context, collection, query string, topK int, provider embedding.Provider) ([]SearchResult, error) {
	const op = "vector.Search"

	if query == "" {
		return nil, errs.Ef(errs.EmptyInput, op, "query is empty")
	}
	if topK <= 0 {
		topK = 5
	}

	vec, err := embedding.EmbedOne(ctx, provider, query)
	if err != nil {
		return nil, fmt.Errorf("%s: embedding query: %w", op, err)
	}

	results, err := g.store.Search(ctx, collection, vec, topK)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, errs.E(errs.StoreUnavailable, op, err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return results, nil
}
