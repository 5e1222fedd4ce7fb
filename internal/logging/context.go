package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type loggerContextKey struct{}

// New creates a JSON logger that includes trace/span ids from the context
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewTraceLogHandler(handler))
}

// FromContext returns the logger stored in ctx.
// Falls back to a logger on stderr, as stdout carries command output.
func FromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return New(os.Stderr, slog.LevelInfo).With(slog.String("logger", "fallback"))
	}
	return logger
}

func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

func AddMetaToContext(ctx context.Context, args ...slog.Attr) context.Context {
	anySlice := make([]any, 0, len(args))
	for _, arg := range args {
		anySlice = append(anySlice, arg)
	}

	return AddToContext(ctx, FromContext(ctx).With(anySlice...))
}
