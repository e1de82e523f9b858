package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteOK(w, map[string]string{"status": "fine"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp SuccessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "fine", data["status"])
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, map[string]int{"id": 7}))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteBadRequest(w, "question is required", map[string]interface{}{"field": "question"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "bad_request", resp.Error)
	assert.Equal(t, "question is required", resp.Message)
	assert.Equal(t, "question", resp.Details["field"])
}

func TestWriteNotFoundDefaultMessage(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteNotFound(w, ""))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "not_found", resp.Error)
	assert.Equal(t, "Resource not found", resp.Message)
}

func TestWriteBadGateway(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteBadGateway(w, "", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestWriteJSONNilBody(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusAccepted, nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Body.String())
}
