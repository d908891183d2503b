package logging

import "context"

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request ids.
	RequestIDKey contextKey = "request_id"

	// ConnectionIDKey is the context key for connection ids.
	ConnectionIDKey contextKey = "connection_id"

	// UserKey is the context key for user ids.
	UserKey contextKey = "user"
)

// WithRequestID adds a request id to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithConnectionID adds a connection id to the context.
func WithConnectionID(ctx context.Context, connectionID string) context.Context {
	return context.WithValue(ctx, ConnectionIDKey, connectionID)
}

// GetConnectionID retrieves the connection id from the context.
func GetConnectionID(ctx context.Context) string {
	if id, ok := ctx.Value(ConnectionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUser adds a user id to the context.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser retrieves the user id from the context.
func GetUser(ctx context.Context) string {
	if user, ok := ctx.Value(UserKey).(string); ok {
		return user
	}
	return ""
}

// extractContextFields collects the known context fields into slog args.
func extractContextFields(ctx context.Context) []any {
	var args []any
	if id := GetRequestID(ctx); id != "" {
		args = append(args, "request_id", id)
	}
	if id := GetConnectionID(ctx); id != "" {
		args = append(args, "connection_id", id)
	}
	if user := GetUser(ctx); user != "" {
		args = append(args, "user", user)
	}
	return args
}
