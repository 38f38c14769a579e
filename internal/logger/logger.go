// Package logger provides a simple logging interface for ramwatch components.
// It allows packages to log debug, info, warn, and error messages without
// being coupled to a specific logging implementation.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DebugEnv enables debug output regardless of the configured level.
const DebugEnv = "RAMWATCH_DEBUG"

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})

	// Named returns a logger whose messages are tagged with name
	// (e.g. "bus" or "escalation").
	Named(name string) Logger
}

// Config controls where log output goes.
type Config struct {
	// Level is "debug", "info", "warn" or "error". Empty means info.
	Level string

	// File, when set, receives JSON log lines rotated by lumberjack.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console is where human-readable output goes. Defaults to stderr.
	Console io.Writer
}

// zapLogger implements Logger on top of a zap SugaredLogger.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a zap-backed logger from cfg.
func New(cfg Config) (Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if os.Getenv(DebugEnv) != "" {
		level = zapcore.DebugLevel
	}

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = ""

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), level),
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileCfg),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
			}),
			level,
		))
	}

	return &zapLogger{sugar: zap.New(zapcore.NewTee(cores...)).Sugar()}, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func (l *zapLogger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{sugar: l.sugar.Named(name)}
}

// Sync flushes buffered output. Safe to call on any Logger.
func Sync(l Logger) {
	if z, ok := l.(*zapLogger); ok {
		_ = z.sugar.Sync()
	}
}

// noopLogger implements Logger but discards all messages.
// Useful for testing or when logging is not desired.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(format string, args ...interface{}) {}
func (noopLogger) Info(format string, args ...interface{})  {}
func (noopLogger) Warn(format string, args ...interface{})  {}
func (noopLogger) Error(format string, args ...interface{}) {}
func (n noopLogger) Named(string) Logger                    { return n }

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Name    string
	Message string
}

// BufferLogger captures log messages for testing.
// It is safe for concurrent use; bus handlers log from many goroutines.
type BufferLogger struct {
	name  string
	store *messageStore
}

type messageStore struct {
	mu       sync.Mutex
	messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{store: &messageStore{}}
}

func (l *BufferLogger) add(level, format string, args ...interface{}) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.messages = append(l.store.messages, LogMessage{
		Level:   level,
		Name:    l.name,
		Message: fmt.Sprintf(format, args...),
	})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add("debug", format, args...) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add("info", format, args...) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add("warn", format, args...) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add("error", format, args...) }

// Named returns a BufferLogger sharing the same message store.
func (l *BufferLogger) Named(name string) Logger {
	if l.name != "" {
		name = l.name + "." + name
	}
	return &BufferLogger{name: name, store: l.store}
}

// Messages returns a copy of everything captured so far.
func (l *BufferLogger) Messages() []LogMessage {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	out := make([]LogMessage, len(l.store.messages))
	copy(out, l.store.messages)
	return out
}

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	for _, m := range l.Messages() {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Contains returns true if any message at level contains substr.
func (l *BufferLogger) Contains(level, substr string) bool {
	for _, m := range l.Messages() {
		if m.Level == level && strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.messages = l.store.messages[:0]
}
