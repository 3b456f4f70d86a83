package auth

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a custom type used for context keys to avoid collisions.
type contextKey string

const SessionIDKey contextKey = "sessionID"

// WithSessionID returns a copy of ctx carrying the authenticated session id.
func WithSessionID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// GetSessionIDFromContext retrieves the session id set by the session middleware.
// Returns the ID and true if found, otherwise uuid.Nil and false.
func GetSessionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(SessionIDKey).(uuid.UUID)
	return id, ok
}
