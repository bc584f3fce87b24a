// Package logging wraps log/slog with the request-scoped helpers the API uses.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/samber/oops"
)

// Logger is a slog.Logger with field and error helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger writes human-readable text in development and JSON otherwise.
func NewLogger(isDev bool) *Logger {
	return NewLoggerTo(os.Stdout, isDev)
}

func NewLoggerTo(w io.Writer, isDev bool) *Logger {
	var handler slog.Handler
	if isDev {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// WithFields returns a child logger carrying the given fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// LogError logs err at error level. Structured oops errors contribute their
// code and context so operators see which collaborator failed.
func (l *Logger) LogError(ctx context.Context, msg string, err error, args ...any) {
	if err == nil {
		return
	}
	args = append(args, "error", err.Error())
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			args = append(args, "code", code)
		}
		if oc := oopsErr.Context(); len(oc) > 0 {
			args = append(args, "context", oc)
		}
	}
	l.ErrorContext(ctx, msg, args...)
}
