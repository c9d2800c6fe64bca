package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/farmconnect/farmconnect-backend/pkg/enums"
)

type contextKey int

const (
	userIDKey contextKey = iota
	roleKey
	accessTokenKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// UserIDFromContext returns the authenticated user id as set by Auth.
func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, userIDKey) }

// UserUUIDFromContext is UserIDFromContext parsed; uuid.Nil when absent.
func UserUUIDFromContext(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func RoleFromContext(ctx context.Context) string { return stringValue(ctx, roleKey) }

// AccessTokenFromContext returns the raw bearer token; refresh and logout
// need it to find the session.
func AccessTokenFromContext(ctx context.Context) string { return stringValue(ctx, accessTokenKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, userIDKey, userID)
}

func WithRole(ctx context.Context, role enums.UserType) context.Context {
	return withValue(ctx, roleKey, string(role))
}

func WithAccessToken(ctx context.Context, token string) context.Context {
	return withValue(ctx, accessTokenKey, token)
}
