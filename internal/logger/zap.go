package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger implements Logger using zap's sugared logger
type zapLogger struct {
	sugar *zap.SugaredLogger
	level Level
}

// NewZapLogger creates a new Logger backed by zap
func NewZapLogger(cfg Config) (Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder

	var enc zapcore.Encoder
	switch cfg.Format {
	case "text":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "", "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(cfg.output()), toZapLevel(cfg.Level))
	opts := []zap.Option{}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	return &zapLogger{
		sugar: zap.New(core, opts...).Sugar(),
		level: cfg.Level,
	}, nil
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.sugar.Debugw(msg, fieldsToAttrs(fields)...)
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.sugar.Infow(msg, fieldsToAttrs(fields)...)
}

func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.sugar.Warnw(msg, fieldsToAttrs(fields)...)
}

func (l *zapLogger) Error(msg string, fields ...Field) {
	l.sugar.Errorw(msg, fieldsToAttrs(fields)...)
}

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{
		sugar: l.sugar.With(fieldsToAttrs(fields)...),
		level: l.level,
	}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	if fields := extractContextFields(ctx); len(fields) > 0 {
		return l.With(fields...)
	}
	return l
}

func (l *zapLogger) Level() Level {
	return l.level
}

// Sync flushes buffered zap output
func (l *zapLogger) Sync() error {
	return l.sugar.Sync()
}
