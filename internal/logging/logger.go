// =============================================================================
// Sales Receipt Reconciler - Logging
// =============================================================================
//
// Every component logs through the Logger interface. The implementation is a
// zap SugaredLogger so messages keep their printf style while the output is
// structured (console or JSON).
//
// =============================================================================

package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultLevel = "info"

// Logger is the logging contract used throughout the application.
// Messages are printf-style format strings.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Options configure New.
type Options struct {
	// Level is "debug", "info", "warn" or "error". Invalid values fall back
	// to "info".
	Level string

	// Format is "console" or "json".
	Format string

	// File, when set, receives the log in addition to stderr.
	File string
}

// ZapLogger adapts a zap logger to the Logger interface.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

// New builds a zap backed Logger.
func New(opts Options) (*ZapLogger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(opts.Level)))); err != nil {
		_ = level.UnmarshalText([]byte(defaultLevel))
	}

	encoding := "console"
	if strings.EqualFold(opts.Format, "json") {
		encoding = "json"
	}

	encoderCfg := zapcore.EncoderConfig{
		MessageKey:    "message",
		TimeKey:       "timestamp",
		LevelKey:      "severity",
		NameKey:       "logger",
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: "stacktrace",
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(level.String()))
		},
	}

	outputs := []string{"stderr"}
	if opts.File != "" {
		outputs = append(outputs, opts.File)
	}

	cfg := zap.Config{
		Level:             level,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     true,
		DisableStacktrace: true,
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return Wrap(base), nil
}

// Wrap adapts an existing zap logger.
func Wrap(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{sugar: logger.Sugar(), base: logger}
}

// Nop returns a Logger that discards everything.
func Nop() *ZapLogger {
	return Wrap(zap.NewNop())
}

// With returns a child logger carrying extra key/value context, for example
// the run id.
func (l *ZapLogger) With(keysAndValues ...interface{}) *ZapLogger {
	child := l.sugar.With(keysAndValues...)
	return &ZapLogger{sugar: child, base: child.Desugar()}
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

func (l *ZapLogger) Debug(msg string, args ...interface{}) { l.sugar.Debugf(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...interface{})  { l.sugar.Infof(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...interface{})  { l.sugar.Warnf(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...interface{}) { l.sugar.Errorf(msg, args...) }

// ForRun tags l with a run id when it is zap backed. Other loggers are
// returned unchanged, nil becomes a no-op logger.
func ForRun(l Logger, runID string) Logger {
	if z, ok := l.(*ZapLogger); ok && z != nil {
		return z.With("run", runID)
	}
	return OrNop(l)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
