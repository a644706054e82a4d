package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		pingErr    error
		name       string
		wantStatus int
	}{
		{name: "storage up", wantStatus: http.StatusOK},
		{name: "storage down", pingErr: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(setupTestLogger(), pingerFunc(func(context.Context) error { return tt.pingErr }))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			w := httptest.NewRecorder()

			handler.Health(w, req)

			resp := w.Result()
			defer func() {
				err := resp.Body.Close()
				assert.NoError(t, err)
			}()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

			if tt.pingErr == nil {
				assert.Equal(t, true, body["success"])
				data := body["data"].(map[string]any)
				assert.Equal(t, "ok", data["status"])
				assert.Equal(t, "ok", data["storage"])
				return
			}

			assert.Equal(t, false, body["success"])
			assert.Equal(t, "storage unavailable", body["message"])
			assert.NotContains(t, body["message"], "connection refused")
		})
	}
}
