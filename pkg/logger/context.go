package logger

import (
	"context"

	"github.com/narwhalmedia/simulcast/pkg/interfaces"
)

type contextKey struct{}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger interfaces.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger carried by ctx, or fallback.
func FromContext(ctx context.Context, fallback interfaces.Logger) interfaces.Logger {
	if logger, ok := ctx.Value(contextKey{}).(interfaces.Logger); ok {
		return logger
	}
	return fallback
}
