package qdrant

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

type fakeCollections struct {
	pb.CollectionsClient
	exists    bool
	createErr error
	created   *pb.CreateCollection
	size      uint64
	getErr    error
}

func (f *fakeCollections) CollectionExists(_ context.Context, _ *pb.CollectionExistsRequest, _ ...grpc.CallOption) (*pb.CollectionExistsResponse, error) {
	return &pb.CollectionExistsResponse{Result: &pb.CollectionExists{Exists: f.exists}}, nil
}

func (f *fakeCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.created = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeCollections) Get(_ context.Context, in *pb.GetCollectionInfoRequest, _ ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &pb.GetCollectionInfoResponse{Result: &pb.CollectionInfo{
		Config: &pb.CollectionConfig{Params: &pb.CollectionParams{
			VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: f.size, Distance: pb.Distance_Cosine},
			}},
		}},
	}}, nil
}

type fakePoints struct {
	pb.PointsClient
	upserted *pb.UpsertPoints
	err      error
}

func (f *fakePoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.upserted = in
	if f.err != nil {
		return nil, f.err
	}
	return &pb.PointsOperationResponse{}, nil
}

func TestCreateCollection(t *testing.T) {
	cols := &fakeCollections{}
	s := NewWithClients(cols, &fakePoints{})

	err := s.CreateCollection(context.Background(), vector.Collection{Name: "docs", VectorSize: 1024, Distance: vector.Cosine})
	require.NoError(t, err)

	params := cols.created.GetVectorsConfig().GetParams()
	assert.Equal(t, "docs", cols.created.GetCollectionName())
	assert.Equal(t, uint64(1024), params.GetSize())
	assert.Equal(t, pb.Distance_Cosine, params.GetDistance())
}

func TestCreateCollection_AlreadyExists(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"status code", status.Error(codes.AlreadyExists, "collection docs exists")},
		{"message", status.Error(codes.InvalidArgument, "Wrong input: Collection `docs` already exists!")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewWithClients(&fakeCollections{createErr: tt.err}, &fakePoints{})
			err := s.CreateCollection(context.Background(), vector.Collection{Name: "docs", VectorSize: 4})
			assert.ErrorIs(t, err, vector.ErrCollectionExists)
		})
	}
}

func TestCollectionInfo(t *testing.T) {
	s := NewWithClients(&fakeCollections{size: 768}, &fakePoints{})
	info, err := s.CollectionInfo(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, vector.Collection{Name: "docs", VectorSize: 768, Distance: vector.Cosine}, info)
}

func TestCollectionInfo_Errors(t *testing.T) {
	s := NewWithClients(&fakeCollections{getErr: status.Error(codes.NotFound, "not found")}, &fakePoints{})
	_, err := s.CollectionInfo(context.Background(), "docs")
	assert.ErrorIs(t, err, vector.ErrCollectionNotFound)

	s = NewWithClients(&fakeCollections{getErr: status.Error(codes.Unavailable, "connection refused")}, &fakePoints{})
	_, err = s.CollectionInfo(context.Background(), "docs")
	assert.ErrorIs(t, err, vector.ErrUnavailable)
}

func TestUpsert(t *testing.T) {
	pts := &fakePoints{}
	s := NewWithClients(&fakeCollections{}, pts)

	err := s.Upsert(context.Background(), "docs", []vector.Point{
		{ID: "6f1c5a4e-2b0d-4c55-9d1e-0a8f3b7c2e11", Vector: []float32{0.1, 0.2}, Payload: map[string]string{"page": "1"}},
	})
	require.NoError(t, err)

	require.NotNil(t, pts.upserted)
	assert.Equal(t, "docs", pts.upserted.GetCollectionName())
	assert.True(t, pts.upserted.GetWait())
	require.Len(t, pts.upserted.GetPoints(), 1)
	p := pts.upserted.GetPoints()[0]
	assert.Equal(t, "6f1c5a4e-2b0d-4c55-9d1e-0a8f3b7c2e11", p.GetId().GetUuid())
	assert.Equal(t, []float32{0.1, 0.2}, p.GetVectors().GetVector().GetData())
	assert.Equal(t, "1", p.GetPayload()["page"].GetStringValue())
}

func TestUpsert_PassesThroughOtherErrors(t *testing.T) {
	cause := status.Error(codes.InvalidArgument, "wrong vector dimension")
	s := NewWithClients(&fakeCollections{}, &fakePoints{err: cause})
	err := s.Upsert(context.Background(), "docs", []vector.Point{{ID: "x"}})
	require.Error(t, err)
	assert.False(t, errors.Is(err, vector.ErrUnavailable))
}
