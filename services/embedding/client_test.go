package embedding

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/services"
)

// fakeAPI scripts responses for the embeddings endpoint.
type fakeAPI struct {
	calls     int
	failUntil int // fail the first N calls
	resp      openai.EmbeddingResponse
	err       error
}

func (f *fakeAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return openai.EmbeddingResponse{}, errors.New("connection refused")
	}
	return f.resp, f.err
}

func respFor(vectors ...[]float32) openai.EmbeddingResponse {
	data := make([]openai.Embedding, len(vectors))
	for i, v := range vectors {
		data[i] = openai.Embedding{Index: i, Embedding: v}
	}
	return openai.EmbeddingResponse{Data: data}
}

func TestClient_Embed(t *testing.T) {
	api := &fakeAPI{resp: respFor([]float32{0.1, 0.2, 0.3})}
	c := NewClientWithAPI(api, "text-embedding-3-small", zap.NewNop())

	vec, err := c.Embed(context.Background(), "What are your office hours?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 1, api.calls)
}

func TestClient_EmbedEmptyText(t *testing.T) {
	c := NewClientWithAPI(&fakeAPI{}, "m", zap.NewNop())
	_, err := c.Embed(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestClient_EmbedBatchPreservesOrder(t *testing.T) {
	// Response arrives with indices reversed; output must follow input order.
	resp := openai.EmbeddingResponse{Data: []openai.Embedding{
		{Index: 1, Embedding: []float32{2}},
		{Index: 0, Embedding: []float32{1}},
	}}
	c := NewClientWithAPI(&fakeAPI{resp: resp}, "m", zap.NewNop())

	vectors, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vectors[0])
	assert.Equal(t, []float32{2}, vectors[1])
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	api := &fakeAPI{failUntil: 2, resp: respFor([]float32{1})}
	c := NewClientWithAPI(api, "m", zap.NewNop())
	c.maxRetries = 3

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, 3, api.calls)
}

func TestClient_UnreachableMapsToEmbeddingUnavailable(t *testing.T) {
	api := &fakeAPI{failUntil: 10}
	c := NewClientWithAPI(api, "m", zap.NewNop())
	c.maxRetries = 1

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrEmbeddingUnavailable))
	assert.True(t, services.IsExternalError(err))
}

func TestClient_MalformedResponseMapsToEmbeddingUnavailable(t *testing.T) {
	// One vector returned for two inputs.
	api := &fakeAPI{resp: respFor([]float32{1})}
	c := NewClientWithAPI(api, "m", zap.NewNop())

	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrEmbeddingUnavailable))
}

func TestClient_EmptyVectorIsMalformed(t *testing.T) {
	api := &fakeAPI{resp: respFor([]float32{})}
	c := NewClientWithAPI(api, "m", zap.NewNop())

	_, err := c.Embed(context.Background(), "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrEmbeddingUnavailable))
}

func TestClient_EmbedBatchEmptyInput(t *testing.T) {
	c := NewClientWithAPI(&fakeAPI{}, "m", zap.NewNop())
	vectors, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}
