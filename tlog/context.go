// Package tlog carries a zap logger in the context.
//
// Every context that reaches request handling, the WebSocket transport or
// the session sweeper is expected to contain a logger; Get panics otherwise.
package tlog

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

var tlogKey loggerKey

// Get returns the logger stored in ctx
func Get(ctx context.Context) *zap.Logger {
	return ctx.Value(tlogKey).(*zap.Logger)
}

// Named returns a context whose logger has name appended to its name
func Named(ctx context.Context, name string) context.Context {
	return WithLogger(ctx, Get(ctx).Named(name))
}

// WithLogger stores logger in ctx, replacing any logger already there
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, tlogKey, logger)
}

// With returns a context whose logger carries fields
func With(ctx context.Context, fields ...zapcore.Field) context.Context {
	return WithLogger(ctx, Get(ctx).With(fields...))
}
