// Package main is the entry point for the seedpost uploader.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seedpost/seedpost/cmd/seedpost/app"
	"github.com/seedpost/seedpost/internal/config"
)

// getLogLevel reads SEEDPOST_LOG_LEVEL, falling back to LOG_LEVEL.
// Defaults to info if neither is set or the value is invalid.
func getLogLevel() zapcore.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	level, ok := app.ParseLogLevel(levelStr)
	if !ok {
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
	}
	return level
}

// traceHandler injects the trace_id and span_id of the active span into
// every log record
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func main() {
	level := zap.NewAtomicLevelAt(getLogLevel())

	// JSON to stderr so stdout stays clean for command output
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.EncoderConfig.EncodeLevel = app.EncodeLevel
	zapLogger, err := zapCfg.Build()
	if err != nil {
		slog.Error("Failed to build logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	handler := &traceHandler{Handler: app.NewSlogHandler(zapLogger)}
	slog.SetDefault(slog.New(handler))

	if err := app.NewRootCmd(level).Execute(); err != nil {
		_ = zapLogger.Sync()
		os.Exit(1)
	}
}
