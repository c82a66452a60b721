// Package logger provides the process-wide structured logger.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu            sync.RWMutex
	defaultLogger = zap.NewNop().Sugar()
	helperLogger  = defaultLogger
	initialized   bool
)

// Options controls how Init builds the logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Development switches to the human readable console encoder.
	Development bool
}

// Init builds the global logger. Output goes to stderr so that the chat
// console on stdout is not interleaved with log lines.
func Init(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return err
		}
	}
	if os.Getenv("DEBUG") == "true" {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)
	if opts.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	Set(zap.New(core, zap.AddCaller()).Sugar())
	return nil
}

// L returns the global logger. Before Init it discards everything.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Set replaces the global logger, mostly for tests.
func Set(l *zap.SugaredLogger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
	helperLogger = l.WithOptions(zap.AddCallerSkip(1))
	initialized = true
}

// Initialized reports whether Init or Set has been called.
func Initialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return initialized
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return helperLogger
}

// Debug logs at Debug level.
func Debug(msg string, keysAndValues ...any) {
	current().Debugw(msg, keysAndValues...)
}

// Info logs at Info level.
func Info(msg string, keysAndValues ...any) {
	current().Infow(msg, keysAndValues...)
}

// Warn logs at Warn level.
func Warn(msg string, keysAndValues ...any) {
	current().Warnw(msg, keysAndValues...)
}

// Error logs at Error level.
func Error(msg string, keysAndValues ...any) {
	current().Errorw(msg, keysAndValues...)
}

// Fatal logs at Error level and then exits.
func Fatal(msg string, keysAndValues ...any) {
	l := current()
	l.Errorw(msg, keysAndValues...)
	_ = l.Sync()
	os.Exit(1)
}

// With returns a child logger carrying the given fields.
func With(keysAndValues ...any) *zap.SugaredLogger {
	return L().With(keysAndValues...)
}

// Sync flushes buffered log entries.
func Sync() error {
	return current().Sync()
}
