package auth

import (
	"context"
	"errors"
)

type contextKey struct{}

// UserContextKey is the context key for authenticated user
var UserContextKey = contextKey{}

var (
	// ErrNoUserInContext is returned when no user is found in context
	ErrNoUserInContext = errors.New("no authenticated user in context")
)

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *UserInfo) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserFromContext extracts authenticated user from request context
func GetUserFromContext(ctx context.Context) (*UserInfo, error) {
	user, ok := ctx.Value(UserContextKey).(*UserInfo)
	if !ok || user == nil {
		return nil, ErrNoUserInContext
	}
	return user, nil
}
