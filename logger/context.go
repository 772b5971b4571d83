package logger

import (
	"context"
)

// ContextKey is used for context values
type ContextKey string

const (
	// SessionIDKey is the context key for the pool session id
	SessionIDKey ContextKey = "session_id"
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
)

// WithContextValue adds a value to the context for logging
func WithContextValue(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// ExtractContextValues extracts logging-relevant values from context
func ExtractContextValues(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}

	var args []any

	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		args = append(args, "session_id", sessionID)
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		args = append(args, "request_id", requestID)
	}

	return args
}
