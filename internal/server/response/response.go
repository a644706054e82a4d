// Package response writes the uniform JSON envelope used by every endpoint.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/transitauth/internal/server/apierr"
	"github.com/iudanet/transitauth/pkg/api"
)

// now подменяется в тестах
var now = time.Now

func timestamp() string {
	return now().UTC().Format(time.RFC3339)
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, logger *slog.Logger, status int, message string, data any) {
	write(w, logger, status, api.Envelope{
		Success:   true,
		Timestamp: timestamp(),
		Message:   message,
		Data:      data,
	})
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, logger *slog.Logger, message string, data any) {
	JSON(w, logger, http.StatusOK, message, data)
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, logger *slog.Logger, message string, data any) {
	JSON(w, logger, http.StatusCreated, message, data)
}

// Error maps err to a failure envelope. It is the only place where errors
// become HTTP statuses. Unexpected errors are logged with their cause and
// rendered as a generic 500.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr := apierr.As(err)
	status := apiErr.StatusCode()

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("reason", apiErr.Message),
		)
	}

	write(w, logger, status, api.ErrorEnvelope{
		Success:    false,
		Timestamp:  timestamp(),
		StatusCode: status,
		Message:    apiErr.PublicMessage(),
	})
}

func write(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}
