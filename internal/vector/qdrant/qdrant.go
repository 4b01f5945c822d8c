// Package qdrant implements vector.Store over Qdrant's gRPC API.
package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

// Config addresses a Qdrant gRPC endpoint (port 6334 by default).
type Config struct {
	Host   string
	Port   int
	APIKey string
	TLS    bool
}

// Store implements vector.Store using Qdrant.
type Store struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	apiKey      string
}

// New creates a Qdrant-backed store. The connection is established lazily on
// the first call.
func New(cfg Config) (*Store, error) {
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Store{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		apiKey:      cfg.APIKey,
	}, nil
}

// NewWithClients builds a Store over existing gRPC clients.
func NewWithClients(collections pb.CollectionsClient, points pb.PointsClient) *Store {
	return &Store{collections: collections, points: points}
}

func (s *Store) Name() string { return "qdrant" }

func (s *Store) auth(ctx context.Context) context.Context {
	if s.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", s.apiKey)
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	resp, err := s.collections.CollectionExists(s.auth(ctx), &pb.CollectionExistsRequest{CollectionName: name})
	if err != nil {
		return false, mapError(err)
	}
	return resp.GetResult().GetExists(), nil
}

func (s *Store) CreateCollection(ctx context.Context, c vector.Collection) error {
	_, err := s.collections.Create(s.auth(ctx), &pb.CreateCollection{
		CollectionName: c.Name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(c.VectorSize),
					Distance: toDistance(c.Distance),
				},
			},
		},
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) CollectionInfo(ctx context.Context, name string) (vector.Collection, error) {
	resp, err := s.collections.Get(s.auth(ctx), &pb.GetCollectionInfoRequest{CollectionName: name})
	if err != nil {
		return vector.Collection{Name: name}, mapError(err)
	}

	params := resp.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return vector.Collection{Name: name}, fmt.Errorf("qdrant collection %s uses named vectors, which are not supported", name)
	}
	return vector.Collection{
		Name:       name,
		VectorSize: int(params.GetSize()),
		Distance:   fromDistance(params.GetDistance()),
	}, nil
}

// Upsert writes all points in one request and waits for them to be applied.
func (s *Store) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	pts := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		payload := make(map[string]*pb.Value, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}
		pts[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: p.Vector}}},
			Payload: payload,
		}
	}

	wait := true
	_, err := s.points.Upsert(s.auth(ctx), &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         pts,
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, vec []float32, topK int) ([]vector.SearchResult, error) {
	resp, err := s.points.Search(s.auth(ctx), &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, mapError(err)
	}

	results := make([]vector.SearchResult, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		payload := make(map[string]string, len(pt.GetPayload()))
		for k, v := range pt.GetPayload() {
			payload[k] = v.GetStringValue()
		}
		content, meta := vector.SplitPayload(payload)
		results[i] = vector.SearchResult{
			ID:       pt.GetId().GetUuid(),
			Score:    pt.GetScore(),
			Content:  content,
			Metadata: meta,
		}
	}
	return results, nil
}

func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// mapError translates gRPC status codes into the vector package's errors.
func mapError(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", vector.ErrUnavailable, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", vector.ErrCollectionNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", vector.ErrCollectionExists, err)
	}
	// Older servers report a lost create race as InvalidArgument.
	if strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("%w: %v", vector.ErrCollectionExists, err)
	}
	return err
}

func toDistance(d vector.Distance) pb.Distance {
	switch d {
	case vector.Dot:
		return pb.Distance_Dot
	case vector.Euclidean:
		return pb.Distance_Euclid
	default:
		return pb.Distance_Cosine
	}
}

func fromDistance(d pb.Distance) vector.Distance {
	switch d {
	case pb.Distance_Dot:
		return vector.Dot
	case pb.Distance_Euclid:
		return vector.Euclidean
	default:
		return vector.Cosine
	}
}

var _ vector.Store = (*Store)(nil)
