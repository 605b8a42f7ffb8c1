// Package logging provides the structured logging interface threaded
// through every component of the relay, plus a no-op default and a
// zap-backed production implementation.
package logging

import "go.uber.org/zap"

// Logger is implemented by anything that can record leveled, structured
// log lines. Components accept a Logger at construction time; none of
// them reach into a process-wide logger.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// NoOpLogger discards everything. It is the zero-value default so
// components remain usable without a logger being wired up explicitly.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, kv ...any) {}
func (NoOpLogger) Info(msg string, kv ...any)  {}
func (NoOpLogger) Warn(msg string, kv ...any)  {}
func (NoOpLogger) Error(msg string, kv ...any) {}

// ZapLogger adapts a *zap.SugaredLogger to the Logger interface.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.Sugar()}
}

// NewProductionZapLogger builds a JSON-encoded, info-level production
// zap logger and wraps it.
func NewProductionZapLogger() (*ZapLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(l), nil
}

func (z *ZapLogger) Debug(msg string, kv ...any) { z.sugar.Debugw(msg, kv...) }
func (z *ZapLogger) Info(msg string, kv ...any)  { z.sugar.Infow(msg, kv...) }
func (z *ZapLogger) Warn(msg string, kv ...any)  { z.sugar.Warnw(msg, kv...) }
func (z *ZapLogger) Error(msg string, kv ...any) { z.sugar.Errorw(msg, kv...) }

var (
	_ Logger = NoOpLogger{}
	_ Logger = (*ZapLogger)(nil)
)
