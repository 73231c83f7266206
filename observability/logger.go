package observability

import (
	"context"
	"io"
	"log/slog"

	"llmquery/config"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

func NewLogger(cfg config.LogConfig, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: cfg.Level})
	} else {
		handler = slog.NewTextHandler(writer, &slog.HandlerOptions{Level: cfg.Level})
	}
	return slog.New(handler).With(slog.String("service", "llmquery"))
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(requestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}
