// Package logging builds the logr loggers used across mixopt. Loggers travel
// in the context; components fetch them with logr.FromContextOrDiscard.
package logging

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vsinha/mixopt/pkg/domain/entities"
)

// Verbosity levels for logger.V(...)
const (
	DEBUG = 1
	TRACE = 2
)

// NewLogger creates a zap-backed logr.Logger.
// level is one of trace|debug|info|warn|error, format is console|json.
func NewLogger(level, format string) (logr.Logger, error) {
	var zc zap.Config
	switch strings.ToLower(format) {
	case "json":
		zc = zap.NewProductionConfig()
	case "", "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return logr.Discard(), fmt.Errorf("unknown log format %q", format)
	}

	lvl, err := parseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true

	z, err := zc.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("failed to build logger: %w", err)
	}
	return zapr.NewLogger(z), nil
}

// NewTestLogger returns a console logger at trace verbosity for tests
func NewTestLogger() logr.Logger {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-TRACE))
	z, err := zc.Build()
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(z)
}

// Warn logs a recovered condition under the "warning" key
func Warn(logger logr.Logger, w entities.Warning, keysAndValues ...any) {
	kv := []any{"warning", string(w.Kind), "source", w.Source}
	if w.Count > 0 {
		kv = append(kv, "count", w.Count)
	}
	if len(w.Keys) > 0 {
		kv = append(kv, "keys", w.Keys)
	}
	kv = append(kv, keysAndValues...)
	logger.Info(w.Message, kv...)
}

// logr verbosity V(n) maps to zap level -n
func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return zapcore.Level(-TRACE), nil
	case "debug":
		return zapcore.Level(-DEBUG), nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
