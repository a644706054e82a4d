package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/transitauth/internal/models"
	"github.com/iudanet/transitauth/internal/server/apierr"
	"github.com/iudanet/transitauth/internal/server/response"
	"github.com/iudanet/transitauth/pkg/api"
)

// UserLookup читает учетные записи по id
type UserLookup interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

// UserHandler обслуживает административные запросы к учетным записям
type UserHandler struct {
	logger *slog.Logger
	users  UserLookup
}

// NewUserHandler создает handler для /api/v1/admin/users
func NewUserHandler(logger *slog.Logger, users UserLookup) *UserHandler {
	return &UserHandler{logger: logger, users: users}
}

// Get обрабатывает GET /api/v1/admin/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, r, h.logger, apierr.BadRequest("invalid user id"))
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.OK(w, h.logger, "", api.UserEnvelope{User: api.NewUserResponse(user)})
}
