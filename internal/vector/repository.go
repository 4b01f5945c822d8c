package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// PayloadContentKey is the payload key holding a point's chunk text.
const PayloadContentKey = "page_content"

// Backend errors. Store implementations wrap their transport errors with these
// so the gateway can classify failures without knowing the backend.
var (
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrUnavailable        = errors.New("vector store unavailable")
)

// Document is a unit of embeddable text.
type Document struct {
	Content  string
	Metadata map[string]string
}

// Point is one embedded chunk as written to the store.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// Distance is the similarity metric a collection is created with.
type Distance string

const (
	Cosine    Distance = "cosine"
	Dot       Distance = "dot"
	Euclidean Distance = "euclid"
)

// ParseDistance maps a config value to a Distance.
func ParseDistance(s string) (Distance, error) {
	switch d := Distance(strings.ToLower(strings.TrimSpace(s))); d {
	case Cosine, Dot, Euclidean:
		return d, nil
	case "":
		return Cosine, nil
	}
	return "", fmt.Errorf("unknown distance metric %q", s)
}

// Collection describes a named container of fixed-size vectors.
type Collection struct {
	Name       string
	VectorSize int
	Distance   Distance
}

// SearchResult is a single match from a similarity search.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]string
}

// Store is the wire contract every vector backend implements.
type Store interface {
	// CollectionExists reports whether a collection with the name exists.
	CollectionExists(ctx context.Context, name string) (bool, error)
	// CreateCollection creates the collection. It returns an error wrapping
	// ErrCollectionExists if the name is taken.
	CreateCollection(ctx context.Context, c Collection) error
	// CollectionInfo returns the collection's fixed parameters, or an error
	// wrapping ErrCollectionNotFound.
	CollectionInfo(ctx context.Context, name string) (Collection, error)
	// Upsert writes all points in one batch.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search finds the top-k points closest to vec.
	Search(ctx context.Context, collection string, vec []float32, topK int) ([]SearchResult, error)
	// Name identifies the backend (e.g. "qdrant").
	Name() string
	// Close releases resources.
	Close() error
}

// SplitPayload separates the chunk text from the metadata in a stored payload.
func SplitPayload(payload map[string]string) (string, map[string]string) {
	meta := make(map[string]string, len(payload))
	var content string
	for k, v := range payload {
		if k == PayloadContentKey {
			content = v
			continue
		}
		meta[k] = v
	}
	return content, meta
}
