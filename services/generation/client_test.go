package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/services"
)

// fakeAPI scripts responses for the chat-completion endpoint.
type fakeAPI struct {
	lastReq openai.ChatCompletionRequest
	resp    openai.ChatCompletionResponse
	err     error
	delay   time.Duration
}

func (f *fakeAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.resp, f.err
}

func respWith(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func TestClient_Generate(t *testing.T) {
	api := &fakeAPI{resp: respWith("We are open 9 to 5 on weekdays.")}
	c := NewClientWithAPI(api, "gpt-4o-mini", zap.NewNop())

	text, err := c.Generate(context.Background(), "system", "When are you open?")
	require.NoError(t, err)
	assert.Equal(t, "We are open 9 to 5 on weekdays.", text)

	require.Len(t, api.lastReq.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, api.lastReq.Messages[0].Role)
	assert.Equal(t, "system", api.lastReq.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, api.lastReq.Messages[1].Role)
	assert.Equal(t, "gpt-4o-mini", api.lastReq.Model)
}

func TestClient_GenerateUnavailable(t *testing.T) {
	api := &fakeAPI{err: errors.New("connection refused")}
	c := NewClientWithAPI(api, "m", zap.NewNop())

	_, err := c.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrGenerationUnavailable))
	assert.True(t, services.IsExternalError(err))
}

func TestClient_GenerateTimeout(t *testing.T) {
	api := &fakeAPI{delay: time.Second, resp: respWith("late")}
	c := NewClientWithAPI(api, "m", zap.NewNop())
	c.timeout = 10 * time.Millisecond

	_, err := c.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrGenerationTimeout))
}

func TestClient_EmptyCompletionIsAnError(t *testing.T) {
	api := &fakeAPI{resp: openai.ChatCompletionResponse{}}
	c := NewClientWithAPI(api, "m", zap.NewNop())

	_, err := c.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrGenerationUnavailable))
}
