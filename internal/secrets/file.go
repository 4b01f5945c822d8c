package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// FileProvider reads secrets from a local file. A .json file holds one
// object of string values; anything else is parsed as KEY=value lines.
type FileProvider struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

func NewFileProvider(path string) (*FileProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("file path required")
	}
	p := &FileProvider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(_ context.Context, key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if val, ok := p.data[key]; ok {
		return val, nil
	}
	// dotenv files conventionally use upper case names
	if val, ok := p.data[strings.ToUpper(key)]; ok {
		return val, nil
	}
	return "", fmt.Errorf("secret not found: %s", key)
}

// Reload re-reads the file.
func (p *FileProvider) Reload() error {
	data, err := load(p.path)
	if err != nil {
		return fmt.Errorf("load secrets file: %w", err)
	}
	p.mu.Lock()
	p.data = data
	p.mu.Unlock()
	return nil
}

func load(path string) (map[string]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data := make(map[string]string)
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		return data, nil
	}
	return godotenv.Read(path)
}
