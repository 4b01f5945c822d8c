// Package gemini implements embedding.Provider for Google's Gemini API.
package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding"
)

const defaultModel = "text-embedding-004"

// Client embeds text with a Gemini embedding model.
type Client struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

// New creates a Gemini provider. The client keeps a connection open until
// Close is called.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api_key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}

	return &Client{
		client: client,
		model:  client.EmbeddingModel(model),
	}, nil
}

// NewFromConfig adapts New to embedding.ProviderConstructor.
func NewFromConfig(cfg embedding.ProviderConfig) (embedding.Provider, error) {
	return New(context.Background(), cfg.APIKey, cfg.Model)
}

func (c *Client) Name() string { return "gemini" }

// Embed sends all texts in one batch request.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := c.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	res, err := c.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", embedding.ErrEmbedding, err)
	}

	out := make([][]float32, 0, len(res.Embeddings))
	for _, e := range res.Embeddings {
		out = append(out, e.Values)
	}
	if err := embedding.CheckBatch(c.Name(), texts, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}

var _ embedding.Provider = (*Client)(nil)
