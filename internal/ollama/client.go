// Package ollama embeds texts with a local Ollama server through langchaingo.
package ollama

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	DefaultModel   = "nomic-embed-text:latest"
	DefaultBaseURL = "http://localhost:11434"
)

// DocumentEmbedder is the subset of embeddings.Embedder the client needs.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type Config struct {
	Model      string
	BaseURL    string
	Dimensions int
}

// Client embeds batches of texts with an Ollama model.
type Client struct {
	embedder   DocumentEmbedder
	dimensions int
	logger     *slog.Logger
}

// NewClient connects the langchaingo Ollama LLM for cfg.Model.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	llm, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}

	// Chunk content is multi-line; keep it as written.
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &Client{
		embedder:   embedder,
		dimensions: cfg.Dimensions,
		logger:     logger.With("component", "ollama-embedder", "model", cfg.Model),
	}, nil
}

// Embed returns one embedding per text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	c.logger.Debug("generating embeddings", "count", len(texts))

	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding failed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}

	if c.dimensions > 0 {
		for i, v := range vectors {
			if len(v) != c.dimensions {
				return nil, fmt.Errorf("embedding at position %d has %d dimensions, expected %d", i, len(v), c.dimensions)
			}
		}
	}
	return vectors, nil
}
