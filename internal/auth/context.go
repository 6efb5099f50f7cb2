package auth

import (
	"context"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
)

type contextKey struct{}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	MemberID int64
	Role     string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func MemberID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.MemberID
}

func IsAdmin(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return id.Role == model.RoleAdmin
}
