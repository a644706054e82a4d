package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/transitauth/internal/server/apierr"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixClock(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestJSON(t *testing.T) {
	fixClock(t)
	rec := httptest.NewRecorder()

	Created(rec, setupTestLogger(), "created", map[string]int{"expiresIn": 60})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "2026-05-01T10:00:00Z", body["timestamp"])
	assert.Equal(t, "created", body["message"])
	assert.Equal(t, map[string]any{"expiresIn": float64(60)}, body["data"])
}

func TestOK_OmitsEmptyFields(t *testing.T) {
	rec := httptest.NewRecorder()

	OK(rec, setupTestLogger(), "", nil)

	body := decode(t, rec)
	assert.NotContains(t, body, "message")
	assert.NotContains(t, body, "data")
}

func TestError(t *testing.T) {
	tests := []struct {
		err         error
		wantMessage any
		name        string
		wantStatus  int
	}{
		{
			name:        "validation list",
			err:         apierr.Validation("email is required", "password is required"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: []any{"email is required", "password is required"},
		},
		{
			name:        "single message",
			err:         apierr.Unauthorized("invalid credentials"),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "invalid credentials",
		},
		{
			name:        "forbidden",
			err:         apierr.Forbidden("account is inactive"),
			wantStatus:  http.StatusForbidden,
			wantMessage: "account is inactive",
		},
		{
			name:        "not found",
			err:         apierr.NotFound("user not found"),
			wantStatus:  http.StatusNotFound,
			wantMessage: "user not found",
		},
		{
			name:        "conflict",
			err:         apierr.Conflict("email already registered"),
			wantStatus:  http.StatusConflict,
			wantMessage: "email already registered",
		},
		{
			name:        "too many requests",
			err:         apierr.TooManyRequests("rate limit exceeded"),
			wantStatus:  http.StatusTooManyRequests,
			wantMessage: "rate limit exceeded",
		},
		{
			name:        "unexpected error is hidden",
			err:         errors.New("pq: connection refused at 10.0.0.5"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixClock(t)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)

			Error(rec, req, setupTestLogger(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, float64(tt.wantStatus), body["statusCode"])
			assert.Equal(t, "2026-05-01T10:00:00Z", body["timestamp"])
			assert.Equal(t, tt.wantMessage, body["message"])
		})
	}
}

func TestError_LogsInternalCause(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)

	Error(rec, req, logger, apierr.Internal(errors.New("disk full")))

	assert.Contains(t, buf.String(), "disk full")
	assert.NotContains(t, rec.Body.String(), "disk full")
}
