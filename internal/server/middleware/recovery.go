package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/iudanet/transitauth/internal/server/apierr"
	"github.com/iudanet/transitauth/internal/server/response"
)

// RecoveryMiddleware turns a handler panic into the 500 envelope and logs the
// stack. http.ErrAbortHandler is re-raised so net/http aborts the connection.
// If the handler already started the response only the log entry is written.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := wrapResponseWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "Panic recovered",
					slog.Any("error", rec),
					slog.String("method", r.Method),
					slog.String("path", sanitizePath(r.URL.Path)),
					slog.String("request_id", chimiddleware.GetReqID(r.Context())),
					slog.String("stack", string(debug.Stack())),
				)

				if rw.wroteHeader {
					return
				}
				// Клиент видит только generic сообщение
				response.Error(rw, r, logger, apierr.Internal(fmt.Errorf("panic: %v", rec)))
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
