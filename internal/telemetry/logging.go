package telemetry

import (
	"context"
	"fmt"
	"log/slog"
)

// errorFormattingMiddleware expands error attributes into {kind, error} groups so JSON output
// keeps the message instead of an empty object.
func errorFormattingMiddleware(
	ctx context.Context,
	record slog.Record,
	next func(context.Context, slog.Record) error,
) error {
	attrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, formatErrorAttr(attr))
		return true
	})

	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	out.AddAttrs(attrs...)
	return next(ctx, out)
}

func formatErrorAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindAny {
		return attr
	}
	err, ok := attr.Value.Any().(error)
	if !ok || err == nil {
		return attr
	}
	return slog.Group(attr.Key,
		slog.String("kind", fmt.Sprintf("%T", err)),
		slog.String("error", err.Error()),
	)
}
