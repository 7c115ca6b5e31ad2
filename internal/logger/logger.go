package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger tags every entry with the component that emitted it. Messages keep
// the printf style used across the services; the zap backend makes them
// structured JSON.
type Logger struct {
	z     *zap.SugaredLogger
	level zap.AtomicLevel
}

// New builds a JSON logger at the given level (debug, info, warn, error).
func New(level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if level == "" {
		level = "info"
	}
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{z: z.Sugar(), level: cfg.Level}, nil
}

// Wrap adapts an existing zap logger, e.g. zaptest or zap.NewNop in tests.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{z: z.WithOptions(zap.AddCallerSkip(1)).Sugar(), level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

func NewNop() *Logger {
	return Wrap(zap.NewNop())
}

// SetLogLevel changes the minimum level at runtime.
func (l *Logger) SetLogLevel(level string) error {
	return l.level.UnmarshalText([]byte(level))
}

func (l *Logger) with(component string) *zap.SugaredLogger {
	if component == "" {
		return l.z
	}
	return l.z.With("component", component)
}

func (l *Logger) Debug(component, message string, args ...interface{}) {
	l.with(component).Debugf(message, args...)
}

func (l *Logger) Info(component, message string, args ...interface{}) {
	l.with(component).Infof(message, args...)
}

func (l *Logger) Warn(component, message string, args ...interface{}) {
	l.with(component).Warnf(message, args...)
}

func (l *Logger) Error(component, message string, args ...interface{}) {
	l.with(component).Errorf(message, args...)
}

// Fatal logs at error level and exits.
func (l *Logger) Fatal(component, message string, args ...interface{}) {
	l.with(component).Fatalf(message, args...)
}

func (l *Logger) Sync() error {
	return l.z.Sync()
}
