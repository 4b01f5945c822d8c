// Package openai implements embedding.Provider for OpenAI and compatible APIs
// (vLLM, LiteLLM, Together, ...).
package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding"
)

const defaultModel = "text-embedding-3-small"

// Client implements embedding.Provider over the /embeddings endpoint.
type Client struct {
	client *goopenai.Client
	model  string
}

// New creates an OpenAI-compatible provider. An empty baseURL uses the
// public OpenAI API.
func New(apiKey, model, baseURL string) *Client {
	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		client: goopenai.NewClientWithConfig(config),
		model:  model,
	}
}

// NewFromConfig adapts New to embedding.ProviderConstructor.
func NewFromConfig(cfg embedding.ProviderConfig) (embedding.Provider, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai: api_key is required unless base_url points at a compatible server")
	}
	return New(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
}

func (c *Client) Name() string { return "openai" }

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", embedding.ErrEmbedding, err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: openai: embedding index %d out of range", embedding.ErrEmbedding, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("%w: openai: no embedding for input %d", embedding.ErrEmbedding, i)
		}
	}
	return out, nil
}

var _ embedding.Provider = (*Client)(nil)
