// Package logger configures the process-wide logger. A zap core does the
// actual writing; a small slog bridge is installed as the default handler so
// packages can log through log/slog without importing zap directly.
package logger

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Initialize sets up the global zap logger and installs it as the slog
// default. In debug mode it uses a human-readable console encoder at debug
// level; otherwise JSON at info level. Logs go to stderr so stdout stays
// clean for commands that emit data (e.g. version --format json).
func Initialize(debug bool) *zap.Logger {
	var encoder zapcore.Encoder
	level := zapcore.InfoLevel

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if debug {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(devCfg)
		level = zapcore.DebugLevel
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	zl := zap.New(core, zap.AddCaller())

	zap.ReplaceGlobals(zl)
	slog.SetDefault(slog.New(&zapHandler{logger: zl, level: level}))

	return zl
}

// zapHandler forwards slog records to a zap logger.
type zapHandler struct {
	logger *zap.Logger
	level  zapcore.Level
	attrs  []zap.Field
	group  string
}

func (h *zapHandler) Enabled(_ context.Context, level slog.Level) bool {
	return toZapLevel(level) >= h.level
}

func (h *zapHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]zap.Field, 0, record.NumAttrs()+len(h.attrs))
	fields = append(fields, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, h.toField(attr))
		return true
	})

	if ce := h.logger.Check(toZapLevel(record.Level), record.Message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func (h *zapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make([]zap.Field, 0, len(attrs))
	for _, attr := range attrs {
		fields = append(fields, h.toField(attr))
	}
	return &zapHandler{
		logger: h.logger,
		level:  h.level,
		attrs:  append(h.attrs[:len(h.attrs):len(h.attrs)], fields...),
		group:  h.group,
	}
}

func (h *zapHandler) WithGroup(name string) slog.Handler {
	prefix := name
	if h.group != "" {
		prefix = h.group + "." + name
	}
	return &zapHandler{logger: h.logger, level: h.level, attrs: h.attrs, group: prefix}
}

func (h *zapHandler) toField(attr slog.Attr) zap.Field {
	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	return zap.Any(key, attr.Value.Resolve().Any())
}

func toZapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
