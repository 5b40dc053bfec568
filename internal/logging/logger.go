// Package logging provides categorized zap loggers for agentfabric.
// Each subsystem logs through a named child of a single shared logger so
// output can be filtered per category.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names used across the codebase.
const (
	CategoryRegistry   = "registry"
	CategoryCapability = "capability"
	CategoryPlanner    = "planner"
	CategoryOracle     = "oracle"
	CategoryLoader     = "loader"
	CategoryExecutor   = "executor"
	CategoryAdaptation = "adaptation"
	CategoryHistory    = "history"
	CategoryAnalytics  = "analytics"
	CategoryWorkflow   = "workflow"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Init builds the shared logger. Debug mode switches to the development
// encoder and enables debug-level output. Safe to call more than once; the
// last call wins.
func Init(debug bool, level string) error {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("parse log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build(zap.AddCallerSkip(0))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	base = logger
	mu.Unlock()
	return nil
}

// SetLogger swaps in an externally constructed logger. Tests use this with
// zaptest loggers.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	base = l
	mu.Unlock()
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	l := base
	mu.RUnlock()
	_ = l.Sync()
}

// Named returns a sugared logger for the given category.
func Named(category string) *zap.SugaredLogger {
	mu.RLock()
	l := base
	mu.RUnlock()
	return l.Named(category).Sugar()
}

// Convenience accessors, one per subsystem.

func Registry() *zap.SugaredLogger   { return Named(CategoryRegistry) }
func Capability() *zap.SugaredLogger { return Named(CategoryCapability) }
func Planner() *zap.SugaredLogger    { return Named(CategoryPlanner) }
func Oracle() *zap.SugaredLogger     { return Named(CategoryOracle) }
func Loader() *zap.SugaredLogger     { return Named(CategoryLoader) }
func Executor() *zap.SugaredLogger   { return Named(CategoryExecutor) }
func Adaptation() *zap.SugaredLogger { return Named(CategoryAdaptation) }
func History() *zap.SugaredLogger    { return Named(CategoryHistory) }
func Analytics() *zap.SugaredLogger  { return Named(CategoryAnalytics) }
func Workflow() *zap.SugaredLogger   { return Named(CategoryWorkflow) }
