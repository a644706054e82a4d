package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/transitauth/internal/server/apierr"
	"github.com/iudanet/transitauth/internal/server/response"
	"github.com/iudanet/transitauth/internal/server/storage"
	"github.com/iudanet/transitauth/pkg/api"
)

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger *slog.Logger
	db     storage.Pinger
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, db storage.Pinger) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		db:     db,
	}
}

// Health обрабатывает GET /api/v1/health
// 503, если хранилище учетных записей недоступно
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "storage ping failed", slog.Any("error", err))
		response.Error(w, r, h.logger, apierr.Unavailable("storage unavailable"))
		return
	}

	response.OK(w, h.logger, "", api.HealthResponse{
		Status:  "ok",
		Storage: "ok",
	})
}
