package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_StatusCode(t *testing.T) {
	tests := []struct {
		err  *Error
		name string
		want int
	}{
		{name: "bad request", err: BadRequest("x"), want: http.StatusBadRequest},
		{name: "validation", err: Validation("a", "b"), want: http.StatusBadRequest},
		{name: "unauthorized", err: Unauthorized("x"), want: http.StatusUnauthorized},
		{name: "forbidden", err: Forbidden("x"), want: http.StatusForbidden},
		{name: "not found", err: NotFound("x"), want: http.StatusNotFound},
		{name: "conflict", err: Conflict("x"), want: http.StatusConflict},
		{name: "too many requests", err: TooManyRequests("x"), want: http.StatusTooManyRequests},
		{name: "unavailable", err: Unavailable("x"), want: http.StatusServiceUnavailable},
		{name: "internal", err: Internal(errors.New("boom")), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestError_PublicMessage(t *testing.T) {
	// Internal никогда не раскрывает причину
	internal := Internal(errors.New("pq: connection refused on 10.0.0.3"))
	assert.Equal(t, "internal server error", internal.PublicMessage())
	assert.Contains(t, internal.Error(), "connection refused")

	multi := Validation("name is required", "email must be a valid email")
	assert.Equal(t, []string{"name is required", "email must be a valid email"}, multi.PublicMessage())

	single := Validation("passwords do not match")
	assert.Equal(t, "passwords do not match", single.PublicMessage())
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", NotFound("user not found"))
	apiErr := As(wrapped)
	require.NotNil(t, apiErr)
	assert.Equal(t, KindNotFound, apiErr.Kind)

	plain := As(errors.New("unexpected"))
	assert.Equal(t, KindInternal, plain.Kind)
	assert.Equal(t, http.StatusInternalServerError, plain.StatusCode())
}

func TestWrap_KeepsKindAndCause(t *testing.T) {
	cause := errors.New("token is expired")
	err := Wrap(Unauthorized("invalid or expired token"), cause)

	assert.True(t, IsKind(err, KindUnauthorized))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "invalid or expired token", err.PublicMessage())
}
