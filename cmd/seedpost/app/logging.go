package app

import (
	"log/slog"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugLevel is the zap level slog.LevelDebug records arrive at through zapr.
// zapcore.DebugLevel (-1) would drop them.
const DebugLevel = zapcore.Level(slog.LevelDebug)

// ParseLogLevel maps a level name to a zap level. ok is false for unknown
// names, which map to info.
func ParseLogLevel(name string) (level zapcore.Level, ok bool) {
	switch strings.ToLower(name) {
	case "debug":
		return DebugLevel, true
	case "info", "":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// EncodeLevel renders every level below info as "debug"
func EncodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l < zapcore.InfoLevel {
		enc.AppendString("debug")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// NewSlogHandler bridges slog onto a zap logger
func NewSlogHandler(logger *zap.Logger) slog.Handler {
	return logr.ToSlogHandler(zapr.NewLogger(logger))
}
