package weaviate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

func TestClassName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"testdoc", "Testdoc"},
		{"relatorio-anual 2024", "Relatorio_anual_2024"},
		{"2024-report", "C2024_report"},
		{"", "Collection"},
		{"Already", "Already"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassName(tt.in), tt.in)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"status code: 422, error: class name \"Docs\" already exists", vector.ErrCollectionExists},
		{"status code: 404, error: ", vector.ErrCollectionNotFound},
		{"dial tcp [::1]:8080: connect: connection refused", vector.ErrUnavailable},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, mapError(errors.New(tt.msg)), tt.want, tt.msg)
	}
	assert.Nil(t, mapError(nil))
}

func TestDistanceRoundTrip(t *testing.T) {
	for _, d := range []vector.Distance{vector.Cosine, vector.Dot, vector.Euclidean} {
		assert.Equal(t, d, fromDistance(toDistance(d)))
	}
}
