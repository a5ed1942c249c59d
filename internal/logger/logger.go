// Package logger wraps zap with the key/value calls used across codecycle.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ComponentKey names the subsystem that wrote an entry
const ComponentKey = "component"

// Logger is a structured key/value logger
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a JSON logger at info level in prod mode and a debug console
// logger otherwise. Entries carry the caller and prod errors a stack trace.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(mode, "prod") {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return fromZap(zl), nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return fromZap(zap.NewNop())
}

func fromZap(zl *zap.Logger) *Logger {
	return &Logger{sugar: zl.Sugar()}
}

// Component returns a child logger tagged with the subsystem name
func (l *Logger) Component(name string) *Logger {
	return l.With(ComponentKey, name)
}

// With returns a child logger that adds the given pairs to every entry
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) { l.sugar.Debugw(msg, keysAndValues...) }
func (l *Logger) Info(msg string, keysAndValues ...interface{})  { l.sugar.Infow(msg, keysAndValues...) }
func (l *Logger) Warn(msg string, keysAndValues ...interface{})  { l.sugar.Warnw(msg, keysAndValues...) }
func (l *Logger) Error(msg string, keysAndValues ...interface{}) { l.sugar.Errorw(msg, keysAndValues...) }

// Sync flushes buffered entries. Syncing stderr fails on some terminals, so the error is dropped.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
