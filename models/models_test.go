package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQAEntry(t *testing.T) {
	entry := NewQAEntry("Do you offer sedation?", "Yes, nitrous oxide and oral sedation.", "procedures", SourceUserDefined)

	assert.Equal(t, "Do you offer sedation?", entry.Question)
	assert.True(t, entry.Active)
	assert.False(t, entry.HasEmbedding())
	assert.False(t, entry.Searchable())
	assert.WithinDuration(t, time.Now(), entry.CreatedAt, time.Second)
}

func TestQAEntrySearchable(t *testing.T) {
	entry := NewQAEntry("q", "a", "general", SourceDentalCorpus)

	entry.Embedding = []float32{0.1, 0.2}
	assert.True(t, entry.HasEmbedding())
	assert.True(t, entry.Searchable())

	entry.Active = false
	assert.False(t, entry.Searchable())
}

func TestQAEntryInvalidate(t *testing.T) {
	entry := NewQAEntry("q", "a", "general", SourceUserDefined)
	entry.Embedding = []float32{0.5}
	entry.EmbeddingModel = "text-embedding-3-small"

	entry.Invalidate()

	assert.Nil(t, entry.Embedding)
	assert.Empty(t, entry.EmbeddingModel)
	assert.False(t, entry.Searchable())
}

func TestQAEntryEmbeddingText(t *testing.T) {
	entry := NewQAEntry("Do you take insurance?", "Yes.", "billing", SourceUserDefined)
	assert.Equal(t, "Q: Do you take insurance?\nA: Yes.", entry.EmbeddingText())
}

func TestQAEntryEmbeddingNotSerialized(t *testing.T) {
	entry := NewQAEntry("q", "a", "general", SourceUserDefined)
	entry.Embedding = []float32{0.1, 0.2, 0.3}

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "embedding")
}

func TestNewChatSession(t *testing.T) {
	session := NewChatSession("patient-42")

	assert.NotEqual(t, "", session.ID.String())
	assert.Equal(t, "patient-42", session.UserID)
	assert.True(t, session.Active)
	assert.Zero(t, session.MessageCount)
	assert.Nil(t, session.EndedAt)
}

func TestNewChatSessionAnonymous(t *testing.T) {
	session := NewChatSession("")
	assert.Equal(t, "anonymous", session.UserID)
}

func TestChatSessionsHaveUniqueIDs(t *testing.T) {
	a := NewChatSession("u")
	b := NewChatSession("u")
	assert.NotEqual(t, a.ID, b.ID)
}
