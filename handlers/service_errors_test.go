package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/services"
	"github.com/brightsmile/dental-assistant/utils"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "not found",
			err:        services.ErrEntryNotFound,
			wantStatus: http.StatusNotFound,
			wantError:  "not_found",
		},
		{
			name:       "validation",
			err:        services.ErrEmptyQuery,
			wantStatus: http.StatusBadRequest,
			wantError:  "bad_request",
		},
		{
			name:       "conflict",
			err:        services.ErrSessionEnded,
			wantStatus: http.StatusConflict,
			wantError:  "conflict",
		},
		{
			name:       "external service failure",
			err:        services.ErrGenerationUnavailable,
			wantStatus: http.StatusBadGateway,
			wantError:  "bad_gateway",
		},
		{
			name:       "internal",
			err:        services.WrapInternal("database exploded", assert.AnError),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
		},
		{
			name:       "invalid state maps to internal",
			err:        services.ErrDimensionMismatch,
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
		},
		{
			name:       "plain error",
			err:        assert.AnError,
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			require.Equal(t, tt.wantStatus, w.Code)

			var resp utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestHandleServiceErrorDoesNotLeakInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, services.WrapInternal("pg: connection refused at 10.0.0.3", assert.AnError), zap.NewNop())

	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	assert.Contains(t, w.Body.String(), "An internal error occurred")
}

func TestHandleValidationError(t *testing.T) {
	type req struct {
		Question string `validate:"required"`
	}
	err := utils.ValidateStruct(req{})
	require.Error(t, err)

	w := httptest.NewRecorder()
	HandleValidationError(w, err, zap.NewNop())

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Validation failed", resp.Message)
	assert.Equal(t, "Question is required", resp.Details["Question"])
}
