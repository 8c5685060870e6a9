package services

import "context"

type contextKey string

const (
	projectIDKey contextKey = "project_id"
	sourceKeyKey contextKey = "source_key"
	requestIDKey contextKey = "request_id"
)

// WithProjectID annotates context with the remote reconstruction project id.
func WithProjectID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, projectIDKey, id)
}

// ProjectIDFromContext extracts the reconstruction project id if present.
func ProjectIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(projectIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSourceKey annotates context with the template source key.
func WithSourceKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, sourceKeyKey, key)
}

// SourceKeyFromContext returns the template source key if present.
func SourceKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sourceKeyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
