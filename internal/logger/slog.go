package logger

import (
	"context"
	"log/slog"
	"time"
)

// slogLogger is the default backend
type slogLogger struct {
	logger *slog.Logger
	level  Level
}

// NewSlogLogger creates a Logger on log/slog. Any format other than "text"
// writes JSON lines.
func NewSlogLogger(cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:       toSlogLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: durationMillis,
	}

	var handler slog.Handler = slog.NewJSONHandler(cfg.output(), opts)
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.output(), opts)
	}

	return &slogLogger{logger: slog.New(handler), level: cfg.Level}
}

// durationMillis renders durations as float milliseconds, matching the zap backend
func durationMillis(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindDuration {
		return slog.Float64(a.Key, float64(a.Value.Duration())/float64(time.Millisecond))
	}
	return a
}

func toSlogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// fieldsToAttrs flattens fields into alternating key/value pairs; both the
// slog and the zap sugared API accept this shape
func fieldsToAttrs(fields []Field) []any {
	kv := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		kv = append(kv, f.Key, f.Value)
	}
	return kv
}

func (l *slogLogger) Debug(msg string, fields ...Field) { l.logger.Debug(msg, fieldsToAttrs(fields)...) }
func (l *slogLogger) Info(msg string, fields ...Field)  { l.logger.Info(msg, fieldsToAttrs(fields)...) }
func (l *slogLogger) Warn(msg string, fields ...Field)  { l.logger.Warn(msg, fieldsToAttrs(fields)...) }
func (l *slogLogger) Error(msg string, fields ...Field) { l.logger.Error(msg, fieldsToAttrs(fields)...) }

func (l *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{logger: l.logger.With(fieldsToAttrs(fields)...), level: l.level}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	if fields := extractContextFields(ctx); len(fields) > 0 {
		return l.With(fields...)
	}
	return l
}

func (l *slogLogger) Level() Level { return l.level }
