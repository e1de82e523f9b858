// Package embedding wraps the external embedding service. The service is
// treated as opaque: text in, fixed-length vector out. Nothing is cached.
package embedding

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/services"
)

// api is the slice of the go-openai client the embedding client depends on.
type api interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config holds embedding client configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client turns text into fixed-length embedding vectors by calling an
// OpenAI-compatible embeddings endpoint.
type Client struct {
	api        api
	model      string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewClient creates an embedding client from configuration.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	return &Client{
		api:        openai.NewClientWithConfig(clientCfg),
		model:      model,
		maxRetries: cfg.MaxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// NewClientWithAPI creates a client around an existing API implementation.
// Used by tests to substitute the external service.
func NewClientWithAPI(a api, model string, logger *zap.Logger) *Client {
	return &Client{api: a, model: model, retryDelay: time.Millisecond, logger: logger}
}

// Embed generates the embedding vector for a single text.
// Returns services.ErrEmbeddingUnavailable when the external service is
// unreachable or returns malformed output.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for a batch of texts. Results are
// returned in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, services.ErrEmptyQuery
		}
	}

	var resp openai.EmbeddingResponse
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, embeddingUnavailable(ctx.Err())
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		resp, err = c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.model),
			Input: texts,
		})
		if err == nil {
			break
		}
		c.logger.Warn("embedding request failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	if err != nil {
		return nil, embeddingUnavailable(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, embeddingUnavailable(nil).
			WithDetail("expected", len(texts)).
			WithDetail("got", len(resp.Data))
	}

	// The API does not guarantee response order; Index is authoritative.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || len(d.Embedding) == 0 {
			return nil, embeddingUnavailable(nil)
		}
		out := make([]float32, len(d.Embedding))
		copy(out, d.Embedding)
		vectors[d.Index] = out
	}
	for i, v := range vectors {
		if v == nil {
			return nil, embeddingUnavailable(nil).WithDetail("missing_index", i)
		}
	}
	return vectors, nil
}

// embeddingUnavailable maps any failure of the external embedding call to
// the services.ErrEmbeddingUnavailable sentinel, preserving the cause.
func embeddingUnavailable(cause error) *services.DomainError {
	return services.NewDomainError(services.ErrorTypeExternal,
		"embedding service unavailable", cause)
}

// EmbedQA embeds a question/answer pair as a single combined text so both
// phrasings contribute to similarity matching.
func (c *Client) EmbedQA(ctx context.Context, question, answer string) ([]float32, error) {
	return c.Embed(ctx, "Q: "+question+"\nA: "+answer)
}

// Model returns the embedding model identifier in use.
func (c *Client) Model() string {
	return c.model
}
