package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Chunk:     ChunkConfig{Strategy: "recursive_character", Size: 1000, Overlap: 100},
		Ingest:    IngestConfig{Mode: "chunked"},
		Vector:    VectorConfig{Provider: "qdrant", VectorSize: 1024},
		Converter: ConverterConfig{Kind: "docling"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunk.Size != 1000 || cfg.Chunk.Overlap != 100 {
		t.Errorf("chunk defaults = %d/%d, want 1000/100", cfg.Chunk.Size, cfg.Chunk.Overlap)
	}
	if cfg.Chunk.Strategy != "recursive_character" {
		t.Errorf("strategy = %q", cfg.Chunk.Strategy)
	}
	if !cfg.Vector.AllowEmptyUpsert {
		t.Error("empty upsert should default to a no-op")
	}
	if !cfg.Ingest.WriteMarkdown {
		t.Error("markdown concatenation should default to enabled")
	}
	if cfg.Bucket.Enabled {
		t.Error("bucket upload should default to disabled")
	}
	if cfg.Vector.VectorSize != 1024 {
		t.Errorf("vector size = %d, want 1024", cfg.Vector.VectorSize)
	}
	if cfg.Secrets.Provider != "env" || cfg.Secrets.EnvPrefix != "INGESTOR_SECRET_" {
		t.Errorf("secrets = %q/%q", cfg.Secrets.Provider, cfg.Secrets.EnvPrefix)
	}
	if cfg.Embedding.Timeout != 240*time.Second {
		t.Errorf("embedding timeout = %v, want 240s", cfg.Embedding.Timeout)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingestor.yaml")
	data := "chunk:\n  size: 1700\n  overlap: 80\nvector:\n  provider: sqlite\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunk.Size != 1700 || cfg.Chunk.Overlap != 80 {
		t.Errorf("chunk = %d/%d, want 1700/80", cfg.Chunk.Size, cfg.Chunk.Overlap)
	}
	if cfg.Vector.Provider != "sqlite" {
		t.Errorf("vector.provider = %q, want sqlite", cfg.Vector.Provider)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Listen != ":8000" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("INGESTOR_CHUNK_SIZE", "800")
	t.Setenv("INGESTOR_VECTOR_ALLOW_EMPTY_UPSERT", "false")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("QDRANT_PORT", "6335")
	t.Setenv("OCI_TENANCY_ID", "ocid1.tenancy.oc1..example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunk.Size != 800 {
		t.Errorf("chunk.size = %d, want 800", cfg.Chunk.Size)
	}
	if cfg.Vector.AllowEmptyUpsert {
		t.Error("allow_empty_upsert should be false")
	}
	if cfg.Vector.Qdrant.Host != "qdrant.internal" || cfg.Vector.Qdrant.Port != 6335 {
		t.Errorf("qdrant = %s:%d", cfg.Vector.Qdrant.Host, cfg.Vector.Qdrant.Port)
	}
	if cfg.Embedding.OCI.TenancyID != "ocid1.tenancy.oc1..example" {
		t.Errorf("tenancy = %q", cfg.Embedding.OCI.TenancyID)
	}
}

func TestLoad_RejectsBadChunking(t *testing.T) {
	t.Setenv("INGESTOR_CHUNK_OVERLAP", "1000")
	if _, err := Load(""); err == nil {
		t.Fatal("expected overlap >= size to be rejected")
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero size", func(c *Config) { c.Chunk.Size = 0 }, "chunk.size"},
		{"negative overlap", func(c *Config) { c.Chunk.Overlap = -1 }, "chunk.overlap"},
		{"overlap equals size", func(c *Config) { c.Chunk.Overlap = 1000 }, "chunk.overlap"},
		{"unknown strategy", func(c *Config) { c.Chunk.Strategy = "markdown" }, "chunk.strategy"},
		{"unknown mode", func(c *Config) { c.Ingest.Mode = "stream" }, "ingest.mode"},
		{"unknown store", func(c *Config) { c.Vector.Provider = "pinecone" }, "vector.provider"},
		{"zero vector size", func(c *Config) { c.Vector.VectorSize = 0 }, "vector_size"},
		{"unknown converter", func(c *Config) { c.Converter.Kind = "textract" }, "converter.kind"},
		{"unknown secrets backend", func(c *Config) { c.Secrets.Provider = "keychain" }, "secrets.provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Check()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Empty(t *testing.T) {
	cfg := &Config{}
	warnings := cfg.Validate()
	if len(warnings) != 0 {
		t.Errorf("empty config should have no warnings, got %v", warnings)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := &Config{
		Embedding: EmbeddingConfig{Provider: "openai"},
	}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "api_key") {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected warning about missing api_key")
	}
}

func TestValidate_SemanticWithoutSplitter(t *testing.T) {
	cfg := validConfig()
	cfg.Chunk.Strategy = "semantic_chunker"
	cfg.Ingest.Mode = "whole_document"
	warnings := cfg.Validate()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "never runs the splitter") {
		t.Errorf("warnings = %v", warnings)
	}
}
