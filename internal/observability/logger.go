package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger writes one JSON object per line with timestamp, level and message
// keys followed by the event fields.
type Logger struct {
	base *slog.Logger
}

func NewLogger(env string) *Logger {
	level := slog.LevelInfo
	if env == "development" || env == "local" {
		level = slog.LevelDebug
	}
	return NewLoggerTo(os.Stdout, level)
}

func NewLoggerTo(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.999999999Z07:00"))
			case slog.LevelKey:
				a.Value = slog.StringValue(levelName(a.Value.Any()))
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})
	return &Logger{base: slog.New(handler)}
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.write(slog.LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write(slog.LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write(slog.LevelWarn, message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write(slog.LevelError, message, fields)
}

// Slog exposes the underlying logger for libraries that take *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.base
}

func (l *Logger) write(level slog.Level, message string, fields map[string]any) {
	attrs := make([]slog.Attr, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.base.LogAttrs(context.Background(), level, message, attrs...)
}

func levelName(v any) string {
	level, ok := v.(slog.Level)
	if !ok {
		return "info"
	}
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
