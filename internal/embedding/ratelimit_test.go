package embedding

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitProvider_Delegates(t *testing.T) {
	inner := &mockProvider{vectors: [][]float32{{0.5}}}
	p := NewRateLimitProvider(inner, &RateLimitConfig{RequestsPerMinute: 6000, BurstSize: 2})

	for i := 0; i < 2; i++ {
		if _, err := p.Embed(context.Background(), []string{"x"}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 calls, got %d", inner.calls)
	}
	if p.Name() != "mock" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestRateLimitProvider_WaitHonoursContext(t *testing.T) {
	inner := &mockProvider{vectors: [][]float32{{0.5}}}
	p := NewRateLimitProvider(inner, &RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1})

	if _, err := p.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Embed(ctx, []string{"x"}); err == nil {
		t.Fatal("expected the second call to be throttled past the deadline")
	}
	if inner.calls != 1 {
		t.Errorf("throttled call reached the provider: %d calls", inner.calls)
	}
}

func TestRateLimitProvider_NilConfigUnlimited(t *testing.T) {
	inner := &mockProvider{}
	p := NewRateLimitProvider(inner, nil)
	for i := 0; i < 10; i++ {
		if _, err := p.Embed(context.Background(), nil); err != nil {
			t.Fatal(err)
		}
	}
}
