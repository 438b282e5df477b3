package domain

import "context"

type ctxKey struct{ name string }

var (
	userKey      = ctxKey{"user"}
	requestIDKey = ctxKey{"request_id"}
)

// NewContextWithUser attaches the authenticated shopper to ctx.
func NewContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated shopper, or nil for anonymous
// requests.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userKey).(*User)
	return user
}

// MustUser returns the authenticated shopper and panics when there is none.
// Handlers mounted behind RequireAuth use it.
func MustUser(ctx context.Context) *User {
	if user := UserFromContext(ctx); user != nil {
		return user
	}
	panic("domain: no authenticated user in context")
}

// NewContextWithRequestID attaches the request correlation id to ctx.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the correlation id, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
