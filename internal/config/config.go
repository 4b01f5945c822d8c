package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Chunk     ChunkConfig     `mapstructure:"chunk"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Converter ConverterConfig `mapstructure:"converter"`
	Bucket    BucketConfig    `mapstructure:"bucket"`
	Lineage   LineageConfig   `mapstructure:"lineage"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
}

type ServerConfig struct {
	Listen      string `mapstructure:"listen"`
	BodyLimitMB int    `mapstructure:"body_limit_mb"`
	MaxWorkers  int    `mapstructure:"max_workers"`
	// QueueTimeout bounds how long an upload waits for a free worker.
	QueueTimeout time.Duration `mapstructure:"queue_timeout"`
}

type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// RequestsPerMinute throttles embedding calls; zero disables throttling.
	RequestsPerMinute int       `mapstructure:"requests_per_minute"`
	OCI               OCIConfig `mapstructure:"oci"`
}

// OCIConfig carries Oracle Cloud credentials for the GenAI inference endpoint.
type OCIConfig struct {
	UserID        string `mapstructure:"user_id"`
	Fingerprint   string `mapstructure:"fingerprint"`
	TenancyID     string `mapstructure:"tenancy_id"`
	Region        string `mapstructure:"region"`
	PrivateKey    string `mapstructure:"private_key"`
	CompartmentID string `mapstructure:"compartment_id"`
	Endpoint      string `mapstructure:"endpoint"`
}

type VectorConfig struct {
	Provider   string `mapstructure:"provider"`
	VectorSize int    `mapstructure:"vector_size"`
	Distance   string `mapstructure:"distance"`
	// AllowEmptyUpsert makes an upsert with no documents a no-op instead of
	// an EmptyInput failure.
	AllowEmptyUpsert bool           `mapstructure:"allow_empty_upsert"`
	Qdrant           QdrantConfig   `mapstructure:"qdrant"`
	Weaviate         WeaviateConfig `mapstructure:"weaviate"`
	SQLite           SQLiteConfig   `mapstructure:"sqlite"`
}

type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	TLS    bool   `mapstructure:"tls"`
}

type WeaviateConfig struct {
	Host   string `mapstructure:"host"`
	Scheme string `mapstructure:"scheme"`
	APIKey string `mapstructure:"api_key"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type ChunkConfig struct {
	Strategy string `mapstructure:"strategy"`
	Size     int    `mapstructure:"size"`
	Overlap  int    `mapstructure:"overlap"`
	// BufferSize and ThresholdAmount tune the semantic strategy.
	BufferSize      int     `mapstructure:"buffer_size"`
	ThresholdAmount float64 `mapstructure:"threshold_amount"`
}

type IngestConfig struct {
	Mode             string `mapstructure:"mode"`
	OutputDir        string `mapstructure:"output_dir"`
	WorkDir          string `mapstructure:"work_dir"`
	WriteMarkdown    bool   `mapstructure:"write_markdown"`
	KeepPageMarkdown bool   `mapstructure:"keep_page_markdown"`
}

type ConverterConfig struct {
	Kind       string        `mapstructure:"kind"`
	DoclingURL string        `mapstructure:"docling_url"`
	Language   string        `mapstructure:"language"`
	Timeout    time.Duration `mapstructure:"timeout"`
	DPI        int           `mapstructure:"dpi"`
}

type BucketConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Suffix  string        `mapstructure:"suffix"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LineageConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	SpoolDir  string `mapstructure:"spool_dir"`
	// HealthAddr is where the worker serves /health, /ready and /live.
	HealthAddr string `mapstructure:"health_addr"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// SecretsConfig selects where missing credentials are looked up.
type SecretsConfig struct {
	Provider  string      `mapstructure:"provider"`
	EnvPrefix string      `mapstructure:"env_prefix"`
	File      string      `mapstructure:"file"`
	Vault     VaultConfig `mapstructure:"vault"`
}

type VaultConfig struct {
	Address string        `mapstructure:"address"`
	Token   string        `mapstructure:"token"`
	Mount   string        `mapstructure:"mount"`
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	validStrategies = map[string]bool{"recursive_character": true, "semantic_chunker": true}
	validModes      = map[string]bool{"whole_document": true, "per_page": true, "chunked": true}
	validVectors    = map[string]bool{"qdrant": true, "weaviate": true, "sqlite": true}
	validConverters = map[string]bool{"docling": true, "tesseract": true}
	validSecrets    = map[string]bool{"": true, "env": true, "file": true, "vault": true}
)

// Check returns an error for settings the pipeline cannot run with.
func (c *Config) Check() error {
	var problems []string

	if c.Chunk.Size <= 0 {
		problems = append(problems, fmt.Sprintf("chunk.size must be positive, got %d", c.Chunk.Size))
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		problems = append(problems, fmt.Sprintf("chunk.overlap must be in [0, chunk.size), got %d", c.Chunk.Overlap))
	}
	if !validStrategies[c.Chunk.Strategy] {
		problems = append(problems, fmt.Sprintf("unknown chunk.strategy %q", c.Chunk.Strategy))
	}
	if !validModes[c.Ingest.Mode] {
		problems = append(problems, fmt.Sprintf("unknown ingest.mode %q", c.Ingest.Mode))
	}
	if !validVectors[c.Vector.Provider] {
		problems = append(problems, fmt.Sprintf("unknown vector.provider %q", c.Vector.Provider))
	}
	if c.Vector.VectorSize <= 0 {
		problems = append(problems, fmt.Sprintf("vector.vector_size must be positive, got %d", c.Vector.VectorSize))
	}
	if !validConverters[c.Converter.Kind] {
		problems = append(problems, fmt.Sprintf("unknown converter.kind %q", c.Converter.Kind))
	}
	if !validSecrets[c.Secrets.Provider] {
		problems = append(problems, fmt.Sprintf("unknown secrets.provider %q", c.Secrets.Provider))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	switch c.Embedding.Provider {
	case "openai", "gemini":
		if c.Embedding.APIKey == "" {
			warnings = append(warnings, fmt.Sprintf("embedding provider '%s' is configured but api_key is empty", c.Embedding.Provider))
		}
	case "oci":
		if c.Embedding.OCI.TenancyID == "" || c.Embedding.OCI.PrivateKey == "" {
			warnings = append(warnings, "embedding provider 'oci' is missing tenancy_id or private_key")
		}
	}

	if c.Bucket.Enabled && c.Bucket.URL == "" {
		warnings = append(warnings, "bucket upload is enabled but bucket.url is empty")
	}

	if c.Lineage.Enabled && c.Lineage.URI == "" {
		warnings = append(warnings, "lineage is enabled but lineage.uri is empty")
	}

	if c.Chunk.Strategy == "semantic_chunker" && c.Ingest.Mode != "chunked" {
		warnings = append(warnings, fmt.Sprintf("chunk.strategy is semantic_chunker but ingest.mode '%s' never runs the splitter", c.Ingest.Mode))
	}

	return warnings
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8000")
	v.SetDefault("server.body_limit_mb", 100)
	v.SetDefault("server.max_workers", 4)
	v.SetDefault("server.queue_timeout", 10*time.Minute)

	v.SetDefault("embedding.provider", "oci")
	v.SetDefault("embedding.model", "cohere.embed-multilingual-v3.0")
	v.SetDefault("embedding.timeout", 240*time.Second)
	v.SetDefault("embedding.max_retries", 0)
	v.SetDefault("embedding.retry_delay", time.Second)

	v.SetDefault("vector.provider", "qdrant")
	v.SetDefault("vector.vector_size", 1024)
	v.SetDefault("vector.distance", "cosine")
	v.SetDefault("vector.allow_empty_upsert", true)
	v.SetDefault("vector.qdrant.host", "localhost")
	v.SetDefault("vector.qdrant.port", 6334)
	v.SetDefault("vector.weaviate.host", "localhost:8080")
	v.SetDefault("vector.weaviate.scheme", "http")
	v.SetDefault("vector.sqlite.path", "ingestor.db")

	v.SetDefault("chunk.strategy", "recursive_character")
	v.SetDefault("chunk.size", 1000)
	v.SetDefault("chunk.overlap", 100)
	v.SetDefault("chunk.buffer_size", 1)
	v.SetDefault("chunk.threshold_amount", 1.5)

	v.SetDefault("ingest.mode", "chunked")
	v.SetDefault("ingest.output_dir", "output")
	v.SetDefault("ingest.write_markdown", true)
	v.SetDefault("ingest.keep_page_markdown", false)

	v.SetDefault("converter.kind", "docling")
	v.SetDefault("converter.docling_url", "http://localhost:5001")
	v.SetDefault("converter.language", "por")
	v.SetDefault("converter.timeout", 5*time.Minute)
	v.SetDefault("converter.dpi", 300)

	v.SetDefault("bucket.enabled", false)
	v.SetDefault("bucket.suffix", "docling")
	v.SetDefault("bucket.timeout", 60*time.Second)

	v.SetDefault("lineage.uri", "bolt://localhost:7687")
	v.SetDefault("lineage.username", "neo4j")

	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "ingestor")
	v.SetDefault("temporal.spool_dir", "spool")
	v.SetDefault("temporal.health_addr", ":8081")

	v.SetDefault("tracing.service_name", "ingestor")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.env_prefix", "INGESTOR_SECRET_")
	v.SetDefault("secrets.vault.mount", "secret")
	v.SetDefault("secrets.vault.path", "ingestor")
	v.SetDefault("secrets.vault.timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// legacyEnv maps keys to the variable names older deployments export.
var legacyEnv = map[string]string{
	"embedding.oci.user_id":        "OCI_USER_ID",
	"embedding.oci.fingerprint":    "OCI_FINGERPRINT",
	"embedding.oci.tenancy_id":     "OCI_TENANCY_ID",
	"embedding.oci.region":         "OCI_REGION",
	"embedding.oci.private_key":    "OCI_API_KEY",
	"embedding.oci.endpoint":       "OCI_GEN_AI_ENDPOINT",
	"embedding.oci.compartment_id": "OCI_COMPARTMENT_ID",
	"embedding.model":              "DEFAULT_OCI_EMBEDDING_MODEL",
	"bucket.url":                   "OCI_BUCKET_URL",
	"vector.qdrant.host":           "QDRANT_HOST",
	"vector.qdrant.port":           "QDRANT_PORT",
	"server.max_workers":           "MAX_WORKERS",
	"secrets.vault.address":        "VAULT_ADDR",
	"secrets.vault.token":          "VAULT_TOKEN",
}

// Load reads configuration from an optional file, a .env file and the
// environment. An empty path skips the config file. Validate warnings are
// left to the caller, since credentials may still be filled from a secrets
// backend.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("INGESTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		// Prefixed names still win; the legacy name is only a fallback.
		if err := v.BindEnv(key, "INGESTOR_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Check(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
