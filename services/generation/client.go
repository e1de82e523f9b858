// Package generation wraps the external text-generation service. The
// service is opaque: a system instruction and a user instruction go in,
// answer text comes out. Callers own the fallback behavior on failure.
package generation

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/services"
)

// api is the slice of the go-openai client the generation client depends on.
type api interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds generation client configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls an OpenAI-compatible chat-completion endpoint.
type Client struct {
	api         api
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

// NewClient creates a generation client from configuration.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}

	return &Client{
		api:         openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
		logger:      logger,
	}
}

// NewClientWithAPI creates a client around an existing API implementation.
// Used by tests to substitute the external service.
func NewClientWithAPI(a api, model string, logger *zap.Logger) *Client {
	return &Client{
		api:         a,
		model:       model,
		temperature: 0.7,
		maxTokens:   500,
		timeout:     30 * time.Second,
		logger:      logger,
	}
}

// Generate produces answer text from a system instruction and a user
// instruction. The provider gives no hard latency guarantee, so the client
// imposes its own deadline; a timeout is reported as
// services.ErrGenerationTimeout, any other failure as
// services.ErrGenerationUnavailable.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.NewDomainError(services.ErrorTypeExternal,
				"text generation timed out", err)
		}
		return "", services.NewDomainError(services.ErrorTypeExternal,
			"text generation service unavailable", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", services.NewDomainError(services.ErrorTypeExternal,
			"text generation service unavailable",
			errors.New("empty completion"))
	}
	return resp.Choices[0].Message.Content, nil
}
