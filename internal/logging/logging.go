// Package logging provides category-tagged logging for the agent.
// All logging must go through this package so every line carries a category.
package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category constants for consistent logging categories.
const (
	CategoryApp        = "App"
	CategoryAgent      = "Agent"
	CategorySession    = "Session"
	CategoryBridge     = "Bridge"
	CategoryPlayback   = "Playback"
	CategoryRealtime   = "Realtime"
	CategoryTranscript = "Transcript"
)

var (
	mu     sync.RWMutex
	level  zap.AtomicLevel
	logger *zap.SugaredLogger
)

// Init initializes logging with default configuration.
func Init() {
	mu.Lock()
	defer mu.Unlock()

	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	logger = l.Sugar()
}

// SetLevel adjusts the minimum log level at runtime ("debug", "info", "warn", "error").
func SetLevel(s string) {
	if lvl, err := zapcore.ParseLevel(s); err == nil {
		level.SetLevel(lvl)
	}
}

// Shutdown gracefully flushes buffered log entries.
func Shutdown(ctx context.Context) {
	mu.RLock()
	defer mu.RUnlock()
	if logger != nil {
		_ = logger.Sync()
	}
}

func get(category string) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return zap.NewNop().Sugar()
	}
	return logger.With("category", category)
}

// Debug logs a debug message.
func Debug(category, msg string, params ...interface{}) {
	get(category).Debugf(msg, params...)
}

// Info logs an info message.
func Info(category, msg string, params ...interface{}) {
	get(category).Infof(msg, params...)
}

// Warning logs a warning message.
func Warning(category, msg string, params ...interface{}) {
	get(category).Warnf(msg, params...)
}

// Error logs an error message.
func Error(category, msg string, params ...interface{}) {
	get(category).Errorf(msg, params...)
}

// Fail logs a failure message. The caller is expected to exit afterwards.
func Fail(category, msg string, params ...interface{}) {
	get(category).Errorf(msg, params...)
}
