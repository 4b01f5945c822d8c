package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("ingest: %w", E(NoPages, "ingest.Run", nil))
	if !errors.Is(err, ErrNoPages) {
		t.Fatal("expected ErrNoPages to match")
	}
	if errors.Is(err, ErrConversion) {
		t.Fatal("ErrConversion should not match")
	}
}

func TestIs_UnknownStrategyIsSplitFailure(t *testing.T) {
	err := Ef(UnknownStrategy, "chunk.New", `"fancy"`)
	if !errors.Is(err, ErrSplitFailure) {
		t.Error("unknown strategy should be a split failure")
	}
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Error("unknown strategy should match its own sentinel")
	}
	if errors.Is(ErrSplitFailure, ErrUnknownStrategy) {
		t.Error("split failure is not an unknown strategy")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := E(StoreUnavailable, "vector.EnsureCollection", cause)
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
	want := "vector.EnsureCollection: store_unavailable: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ""},
		{"typed", E(UpsertFailure, "", nil), UpsertFailure},
		{"wrapped", fmt.Errorf("x: %w", E(DimensionMismatch, "", nil)), DimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}
