package observability

import (
	"context"
	"errors"
	"testing"
)

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.ServiceName != "ingestor" {
		t.Fatalf("expected service name 'ingestor', got %s", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Fatalf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, &TracingConfig{
		ServiceName: "test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil tracer provider")
	}
	if tp.Tracer() == nil {
		t.Fatal("expected non-nil tracer")
	}
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracing_NilConfig(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil tracer provider")
	}
}

func TestIngestSpans(t *testing.T) {
	ctx, root := StartIngestSpan(context.Background(), "report", "report", "recursive_character", "chunked")
	if root == nil {
		t.Fatal("expected non-nil span")
	}
	defer root.End()

	stageCtx, stage := StartStageSpan(ctx, "converting")
	if stage == nil || stageCtx == nil {
		t.Fatal("expected non-nil stage span")
	}
	_, page := StartConvertSpan(stageCtx, "docling", 1)
	page.End()
	stage.End()

	RecordIngestResult(root, 2, 2)
}

func TestRecordError(t *testing.T) {
	_, span := StartStageSpan(context.Background(), "embedding")
	defer span.End()

	RecordError(span, nil)
	RecordError(span, errors.New("provider down"))
}
