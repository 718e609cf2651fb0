package log

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type key int

const (
	contextKey key = iota
	loggerKey  key = iota
)

// WithContext enriches the logger with fields from the context
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	return logger.With(Fields(ctx)...)
}

// WithFields adds log fields to the context
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	existing := Fields(ctx)
	combined := make([]zap.Field, 0, len(existing)+len(fields))
	combined = append(combined, existing...)
	combined = append(combined, fields...)

	return context.WithValue(ctx, contextKey, combined)
}

// Fields extracts log fields from the context
func Fields(ctx context.Context) []zap.Field {
	rawFields := ctx.Value(contextKey)

	if rawFields == nil {
		return []zap.Field{}
	}

	fields, ok := rawFields.([]zap.Field)

	if !ok {
		return []zap.Field{}
	}

	return fields
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger extracts a logger from the context
func Logger(ctx context.Context) *zap.Logger {
	rawLogger := ctx.Value(loggerKey)

	if rawLogger == nil {
		return nil
	}

	logger, ok := rawLogger.(*zap.Logger)

	if !ok {
		return nil
	}

	return logger
}

// LoggerFromContext attempts to use a logger passed through the context.
// If no logger is passed through the context it uses the default logger and
// attaches the defaultLogger to the context. The returned logger carries
// the fields attached to the context.
func LoggerFromContext(ctx context.Context, defaultLogger *zap.Logger) (*zap.Logger, context.Context) {
	logger := Logger(ctx)

	if logger == nil {
		logger = defaultLogger
		ctx = WithLogger(ctx, logger)
	}

	return WithContext(ctx, logger), ctx
}

// OrNop returns logger or a no-op logger if logger is nil
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

// New builds a production JSON logger at the given level.
// An empty level means info.
func New(level string) (*zap.Logger, error) {
	var lvl zapcore.Level

	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)

	return config.Build()
}
