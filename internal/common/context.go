package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID    contextKey = "run_id"
	ContextKeyCaseName contextKey = "case_name"
)

// WithRunID adds a batch run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the batch run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithCaseName adds the case being processed to the context
func WithCaseName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ContextKeyCaseName, name)
}

// CaseNameFromContext extracts the case name from context
func CaseNameFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(ContextKeyCaseName).(string); ok {
		return name
	}
	return ""
}

// LoggerFrom decorates logger with whatever run/case identifiers ctx carries.
func LoggerFrom(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RunIDFromContext(ctx); id != "" {
		logger = logger.With("run_id", id)
	}
	if name := CaseNameFromContext(ctx); name != "" {
		logger = logger.With("case", name)
	}
	return logger
}
