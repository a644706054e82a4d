package handlers

import (
	"context"

	"github.com/iudanet/transitauth/internal/server/jwt"
)

// contextKey тип для ключей контекста
type contextKey string

// IdentityKey ключ для хранения проверенной личности в контексте
const IdentityKey contextKey = "identity"

// WithIdentity stores the verified token identity in ctx.
func WithIdentity(ctx context.Context, id jwt.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFromContext извлекает личность, положенную auth middleware
func IdentityFromContext(ctx context.Context) (jwt.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(jwt.Identity)
	return id, ok
}
