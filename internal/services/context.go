package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	sandboxKey   contextKey = "sandbox"
	projectKey   contextKey = "project"
	requestIDKey contextKey = "request_id"
)

// WithJobID annotates context with the scheduler job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(jobIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithSandbox annotates context with the sandbox identifier.
func WithSandbox(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sandboxKey, id)
}

// SandboxFromContext returns the sandbox identifier if present.
func SandboxFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(sandboxKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithProject annotates context with the project identifier.
func WithProject(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, projectKey, id)
}

// ProjectFromContext returns the project identifier if present.
func ProjectFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(projectKey).(string); ok && str != "" {
		return str, true
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

// RequestIDFromContext returns the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(requestIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
