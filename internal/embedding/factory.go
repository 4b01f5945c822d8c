package embedding

import (
	"fmt"
	"sort"
	"time"
)

// ProviderConfig holds all configuration needed to create any embedding provider.
type ProviderConfig struct {
	Provider string // "oci", "openai", "gemini", "ollama"
	APIKey   string
	Model    string
	BaseURL  string // Override for self-hosted / compatible endpoints

	// Timeout and retry configuration
	Timeout    time.Duration // Per-request timeout
	MaxRetries int           // Retry attempts after the first call (0 = no retries)
	RetryDelay time.Duration // Initial retry delay for exponential backoff

	// RequestsPerMinute throttles calls (0 = unlimited)
	RequestsPerMinute int

	OCI OCICredentials
}

// OCICredentials identifies an Oracle Cloud API signing key.
type OCICredentials struct {
	UserID        string
	Fingerprint   string
	TenancyID     string
	Region        string
	PrivateKey    string
	CompartmentID string
	Endpoint      string
}

// ProviderFactory creates Provider instances from config.
type ProviderFactory struct {
	constructors map[string]ProviderConstructor
}

// ProviderConstructor builds a Provider from config.
type ProviderConstructor func(cfg ProviderConfig) (Provider, error)

// NewFactory creates an empty factory. Backends are registered by the caller.
func NewFactory() *ProviderFactory {
	return &ProviderFactory{
		constructors: make(map[string]ProviderConstructor),
	}
}

// Register adds a provider constructor under the given name.
func (f *ProviderFactory) Register(name string, ctor ProviderConstructor) {
	f.constructors[name] = ctor
}

// Create builds a Provider from config. The result is wrapped with retry and
// timeout handling when configured, and with rate limiting when
// RequestsPerMinute is set.
func (f *ProviderFactory) Create(cfg ProviderConfig) (Provider, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("no embedding provider configured, registered: %v", f.Names())
	}

	ctor, ok := f.constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider %q, registered: %v", cfg.Provider, f.Names())
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", cfg.Provider, err)
	}

	if cfg.Timeout > 0 || cfg.MaxRetries > 0 {
		provider = WrapWithRetry(provider, cfg)
	}

	if cfg.RequestsPerMinute > 0 {
		provider = NewRateLimitProvider(provider, &RateLimitConfig{
			RequestsPerMinute: cfg.RequestsPerMinute,
			BurstSize:         1,
		})
	}

	return provider, nil
}

// Names returns the registered provider names, sorted.
func (f *ProviderFactory) Names() []string {
	out := make([]string, 0, len(f.constructors))
	for k := range f.constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KnownProviders documents the built-in backends and their default endpoints.
//
//	oci    → https://inference.generativeai.<region>.oci.oraclecloud.com
//	openai → https://api.openai.com/v1
//	gemini → https://generativelanguage.googleapis.com
//	ollama → http://localhost:11434
var KnownProviders = map[string]string{
	"oci":    "https://inference.generativeai.<region>.oci.oraclecloud.com",
	"openai": "https://api.openai.com/v1",
	"gemini": "https://generativelanguage.googleapis.com",
	"ollama": "http://localhost:11434",
}
