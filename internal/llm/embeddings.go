package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"pdfqa/internal/apperr"
)

// EmbeddingsClient is a client for an OpenAI-compatible embeddings API.
type EmbeddingsClient struct {
	opts         Options
	expectedSize int
	client       *openai.Client
}

// NewEmbeddingsClient creates a new embeddings client.
// When expectedSize is positive every returned vector is checked against it.
func NewEmbeddingsClient(opts Options, expectedSize int) *EmbeddingsClient {
	return &EmbeddingsClient{
		opts:         opts,
		expectedSize: expectedSize,
		client:       newOpenAIClient(opts),
	}
}

// Model returns the configured embedding model name.
func (c *EmbeddingsClient) Model() string {
	return c.opts.Model
}

// EmbedTexts generates embeddings for the given texts, one vector per input in input order.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperr.New(apperr.ErrModelCall, "empty input array")
	}

	var resp openai.EmbeddingResponse
	err := call(ctx, c.opts, "embeddings", func(ctx context.Context) error {
		var err error
		resp, err = c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(c.opts.Model),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, apperr.Newf(apperr.ErrModelCall, "expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	result := make([][]float32, len(texts))
	for i, data := range resp.Data {
		idx := data.Index
		if idx < 0 || idx >= len(texts) || result[idx] != nil {
			return nil, apperr.Newf(apperr.ErrModelCall, "embedding %d has invalid index %d", i, idx)
		}
		if c.expectedSize > 0 && len(data.Embedding) != c.expectedSize {
			return nil, apperr.Newf(apperr.ErrModelCall,
				"embedding %d has size %d, expected %d", i, len(data.Embedding), c.expectedSize)
		}
		result[idx] = data.Embedding
	}

	return result, nil
}
