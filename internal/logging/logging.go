// Package logging wires go.uber.org/zap behind the session.Logger seam.
package logging

import (
	"go.uber.org/zap"

	"github.com/sonicscribe/sonicscribe/pkg/session"
)

// ZapLogger adapts a *zap.SugaredLogger to session.Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a ZapLogger at the given level (any level name zap parses,
// e.g. "debug", "info", "warn", "error"; a value zap cannot parse keeps
// the "info" default). Unset LOG_LEVEL means
// production defaults: info level, JSON encoding.
func New(level string) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil && level != "" {
		cfg.Level = lvl
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{sugar: logger.Sugar()}, nil
}

// NewNop builds a ZapLogger that discards everything, for tests and
// callers that don't want log output.
func NewNop() *ZapLogger {
	return &ZapLogger{sugar: zap.NewNop().Sugar()}
}

func (l *ZapLogger) Debug(msg string, args ...interface{}) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...interface{})  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...interface{})  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...interface{}) { l.sugar.Errorw(msg, args...) }

// Sync flushes buffered log entries. Call before process exit.
func (l *ZapLogger) Sync() error { return l.sugar.Sync() }

var _ session.Logger = (*ZapLogger)(nil)
