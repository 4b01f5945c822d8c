// Package secrets resolves credentials that are kept out of the config file.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/JoaoPedroMBiofy/ingestor/internal/config"
)

// Key names a credential the ingestor can look up.
type Key string

const (
	KeyEmbeddingAPIKey Key = "embedding_api_key"
	KeyOCIPrivateKey   Key = "oci_private_key"
	KeyQdrantAPIKey    Key = "qdrant_api_key"
	KeyWeaviateAPIKey  Key = "weaviate_api_key"
	KeyNeo4jPassword   Key = "neo4j_password"
)

// Provider is a read-only secret backend.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Name() string
}

const defaultEnvPrefix = "INGESTOR_SECRET_"

// Manager looks a key up in the configured backend, then in the
// environment, and caches what it finds.
type Manager struct {
	primary  Provider
	fallback Provider

	mu    sync.RWMutex
	cache map[string]string
}

// NewManager builds the backend named by cfg.Provider ("env", "file" or
// "vault").
func NewManager(cfg config.SecretsConfig) (*Manager, error) {
	env := NewEnvProvider(cfg.EnvPrefix)

	// Provider-typed so the env case leaves a true nil fallback.
	var primary Provider
	var fallback Provider = env
	switch cfg.Provider {
	case "env", "":
		primary, fallback = env, nil
	case "file":
		p, err := NewFileProvider(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("create file provider: %w", err)
		}
		primary = p
	case "vault":
		p, err := NewVaultProvider(VaultConfig{
			Address:    cfg.Vault.Address,
			Token:      cfg.Vault.Token,
			MountPath:  cfg.Vault.Mount,
			SecretPath: cfg.Vault.Path,
			Timeout:    cfg.Vault.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create vault provider: %w", err)
		}
		primary = p
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}

	return &Manager{primary: primary, fallback: fallback, cache: make(map[string]string)}, nil
}

// Get returns the value of key from the first backend that has it.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	val, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return val, nil
	}

	for _, p := range []Provider{m.primary, m.fallback} {
		if p == nil {
			continue
		}
		if val, err := p.Get(ctx, key); err == nil && val != "" {
			m.mu.Lock()
			m.cache[key] = val
			m.mu.Unlock()
			return val, nil
		}
	}
	return "", fmt.Errorf("secret not found: %s", key)
}

// Name reports the primary backend.
func (m *Manager) Name() string { return m.primary.Name() }

// Fill sets every empty credential in cfg that the manager can resolve and
// returns the keys it filled. Values already present in cfg win.
func (m *Manager) Fill(ctx context.Context, cfg *config.Config) []Key {
	targets := []struct {
		key Key
		dst *string
	}{
		{KeyEmbeddingAPIKey, &cfg.Embedding.APIKey},
		{KeyOCIPrivateKey, &cfg.Embedding.OCI.PrivateKey},
		{KeyQdrantAPIKey, &cfg.Vector.Qdrant.APIKey},
		{KeyWeaviateAPIKey, &cfg.Vector.Weaviate.APIKey},
		{KeyNeo4jPassword, &cfg.Lineage.Password},
	}

	var filled []Key
	for _, t := range targets {
		if *t.dst != "" {
			continue
		}
		val, err := m.Get(ctx, string(t.key))
		if err != nil {
			continue
		}
		*t.dst = val
		filled = append(filled, t.key)
	}
	return filled
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	prefix string
}

func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = defaultEnvPrefix
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	envKey := p.prefix + strings.ToUpper(key)
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("env var not found: %s", envKey)
}
