package pool

import (
	"context"

	"github.com/google/uuid"

	"github.com/guileen/nodepool/logger"
)

// WithSession returns a context carrying a new session id, unless ctx
// already has one. Pool.Current returns the same connection for calls
// sharing a session until it is released.
func WithSession(ctx context.Context) context.Context {
	if SessionID(ctx) != "" {
		return ctx
	}
	return WithSessionID(ctx, uuid.NewString())
}

// WithSessionID returns a context carrying the given session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return logger.WithContextValue(ctx, logger.SessionIDKey, id)
}

// SessionID returns the session id carried by ctx, or "".
func SessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(logger.SessionIDKey).(string)
	return id
}
