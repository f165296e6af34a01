package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

type userIDKey struct{}
type roleKey struct{}

func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return id, ok
}

func ContextWithRole(ctx context.Context, role domain.UserRole) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx context.Context) (domain.UserRole, bool) {
	role, ok := ctx.Value(roleKey{}).(domain.UserRole)
	return role, ok
}
