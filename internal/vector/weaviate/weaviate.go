// Package weaviate implements vector.Store on Weaviate classes. Each
// collection maps to a class with externally supplied vectors; the vector size
// is recorded in the class description because Weaviate does not fix it.
package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

const (
	contentProperty = "content"
	payloadProperty = "payload"
	sizePrefix      = "vector_size="
	batchSize       = 100
)

// Config addresses a Weaviate instance.
type Config struct {
	Host   string
	Scheme string
	APIKey string
}

// Store implements vector.Store using Weaviate.
type Store struct {
	client *weaviate.Client
}

// New creates a Weaviate-backed store.
func New(cfg Config) (*Store, error) {
	scheme := cfg.Scheme
	host := cfg.Host
	if strings.HasPrefix(host, "https://") {
		scheme, host = "https", strings.TrimPrefix(host, "https://")
	} else if strings.HasPrefix(host, "http://") {
		scheme, host = "http", strings.TrimPrefix(host, "http://")
	}
	if scheme == "" {
		scheme = "http"
	}

	wcfg := weaviate.Config{Host: host, Scheme: scheme}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Name() string { return "weaviate" }

var invalidClassChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// ClassName maps a collection name onto a valid Weaviate class name.
func ClassName(collection string) string {
	name := invalidClassChars.ReplaceAllString(collection, "_")
	if name == "" {
		return "Collection"
	}
	r := []rune(name)
	if !unicode.IsLetter(r[0]) {
		return "C" + name
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	ok, err := s.client.Schema().ClassExistenceChecker().WithClassName(ClassName(name)).Do(ctx)
	if err != nil {
		return false, mapError(err)
	}
	return ok, nil
}

func (s *Store) CreateCollection(ctx context.Context, c vector.Collection) error {
	class := &models.Class{
		Class:       ClassName(c.Name),
		Description: sizePrefix + strconv.Itoa(c.VectorSize),
		Vectorizer:  "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": toDistance(c.Distance),
		},
		Properties: []*models.Property{
			{Name: contentProperty, DataType: []string{"text"}},
			{Name: payloadProperty, DataType: []string{"text"}},
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) CollectionInfo(ctx context.Context, name string) (vector.Collection, error) {
	class, err := s.client.Schema().ClassGetter().WithClassName(ClassName(name)).Do(ctx)
	if err != nil {
		return vector.Collection{Name: name}, mapError(err)
	}
	if class == nil {
		return vector.Collection{Name: name}, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
	}

	size, err := strconv.Atoi(strings.TrimPrefix(class.Description, sizePrefix))
	if err != nil || !strings.HasPrefix(class.Description, sizePrefix) {
		return vector.Collection{Name: name}, fmt.Errorf("weaviate class %s was not created by ingestor: no vector size", class.Class)
	}

	distance := vector.Cosine
	if cfg, ok := class.VectorIndexConfig.(map[string]interface{}); ok {
		if d, ok := cfg["distance"].(string); ok {
			distance = fromDistance(d)
		}
	}
	return vector.Collection{Name: name, VectorSize: size, Distance: distance}, nil
}

// Upsert writes points in batches of batchSize. Weaviate batches are not
// transactional across calls.
func (s *Store) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	className := ClassName(collection)
	for start := 0; start < len(points); start += batchSize {
		end := min(start+batchSize, len(points))

		batcher := s.client.Batch().ObjectsBatcher()
		for _, p := range points[start:end] {
			content, meta := vector.SplitPayload(p.Payload)
			metaJSON, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			batcher = batcher.WithObjects(&models.Object{
				Class: className,
				ID:    strfmt.UUID(p.ID),
				Properties: map[string]interface{}{
					contentProperty: content,
					payloadProperty: string(metaJSON),
				},
				Vector: p.Vector,
			})
		}

		resp, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert batch %d-%d: %w", start, end, mapError(err))
		}
		for _, r := range resp {
			if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
				return fmt.Errorf("failed to insert object %s: %s", r.ID, r.Result.Errors.Error[0].Message)
			}
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, vec []float32, topK int) ([]vector.SearchResult, error) {
	className := ClassName(collection)
	fields := []graphql.Field{
		{Name: contentProperty},
		{Name: payloadProperty},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)
	result, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search failed: %s", result.Errors[0].Message)
	}

	get, _ := result.Data["Get"].(map[string]interface{})
	items, _ := get[className].([]interface{})

	out := make([]vector.SearchResult, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		r := vector.SearchResult{Metadata: map[string]string{}}
		r.Content, _ = obj[contentProperty].(string)
		if raw, ok := obj[payloadProperty].(string); ok && raw != "" {
			_ = json.Unmarshal([]byte(raw), &r.Metadata)
		}
		if add, ok := obj["_additional"].(map[string]interface{}); ok {
			r.ID, _ = add["id"].(string)
			if d, ok := add["distance"].(float64); ok {
				r.Score = float32(1 - d)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// Close is a no-op; the client holds no long-lived connection.
func (s *Store) Close() error { return nil }

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", vector.ErrUnavailable, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "already exists"):
		return fmt.Errorf("%w: %v", vector.ErrCollectionExists, err)
	case strings.Contains(msg, "status code: 404"):
		return fmt.Errorf("%w: %v", vector.ErrCollectionNotFound, err)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return fmt.Errorf("%w: %v", vector.ErrUnavailable, err)
	}
	return err
}

func toDistance(d vector.Distance) string {
	switch d {
	case vector.Dot:
		return "dot"
	case vector.Euclidean:
		return "l2-squared"
	default:
		return "cosine"
	}
}

func fromDistance(d string) vector.Distance {
	switch d {
	case "dot":
		return vector.Dot
	case "l2-squared":
		return vector.Euclidean
	default:
		return vector.Cosine
	}
}

var _ vector.Store = (*Store)(nil)
