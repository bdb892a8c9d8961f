package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/types"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrTimeout, http.StatusGatewayTimeout},
		{types.ErrUpstreamError, http.StatusBadGateway},
		{types.ErrRetrieval, http.StatusServiceUnavailable},
		{types.ErrGeneration, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, types.NewError(tt.code, "boom"), zap.NewNop())

			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), string(tt.code))
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestDecodeJSONBody_RejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bogus": 1}`))

	var dst struct {
		Question string `json:"question"`
	}
	err := DecodeJSONBody(rec, req, &dst, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.False(t, RequireMethod(rec, req, http.MethodPost))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}
