// Package logger builds the zap logger used across the controller.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels accepted in configuration.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// defaultLevel is used for unknown level strings.
const defaultLevel = zapcore.DebugLevel

// ParseLevel converts a textual level to a zapcore.Level.
func ParseLevel(s string) zapcore.Level {
	switch s {
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return defaultLevel
	}
}

// New returns a console logger on stdout at level.
func New(level string) *zap.SugaredLogger {
	return NewWriter(os.Stdout, level)
}

// NewWriter returns a console logger writing to w at level.
func NewWriter(w io.Writer, level string) *zap.SugaredLogger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zap.NewAtomicLevelAt(ParseLevel(level)),
	)
	return zap.New(core).Sugar()
}
