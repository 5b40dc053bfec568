// Package loader resolves registered component names to callables. Artifacts
// are interpreted with yaegi rather than compiled, so generated code can be
// loaded at execution time without a toolchain round trip. Resolved callables
// are cached per process and invalidated on replacement.
package loader

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"agentfabric/internal/logging"
	"agentfabric/internal/oracle"
	"agentfabric/internal/registry"
)

// ErrLoadFailure is returned when an artifact cannot be read, interpreted,
// or does not declare the expected callable.
var ErrLoadFailure = errors.New("load failure")

// ToolFunc is the callable shape every tool artifact declares.
type ToolFunc func(input interface{}) interface{}

// AgentFunc is the callable shape every agent artifact declares.
type AgentFunc func(state map[string]interface{}) map[string]interface{}

// Catalog is the registry view the loader needs.
type Catalog interface {
	GetTool(name string) (*registry.ToolRecord, bool)
	GetAgent(name string) (*registry.AgentRecord, bool)
	GetToolUsage(name string) ([]string, error)
}

// Loader caches resolved callables keyed by component name.
type Loader struct {
	catalog Catalog

	mu     sync.RWMutex
	agents map[string]AgentFunc
	tools  map[string]ToolFunc

	watcher *watcher
}

// New creates a loader over the given catalog.
func New(catalog Catalog) *Loader {
	return &Loader{
		catalog: catalog,
		agents:  make(map[string]AgentFunc),
		tools:   make(map[string]ToolFunc),
	}
}

// Agent resolves an agent name to its callable, loading and caching it on
// first use. An agent's interpreter also evaluates the artifacts of every
// tool the agent uses, so the agent body can call them directly.
func (l *Loader) Agent(name string) (AgentFunc, error) {
	l.mu.RLock()
	fn, ok := l.agents[name]
	l.mu.RUnlock()
	if ok {
		return fn, nil
	}

	rec, ok := l.catalog.GetAgent(name)
	if !ok {
		return nil, fmt.Errorf("%w: agent %s not registered", ErrLoadFailure, name)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("%w: load stdlib symbols: %v", ErrLoadFailure, err)
	}

	for _, tool := range rec.UsesTools {
		toolRec, ok := l.catalog.GetTool(tool)
		if !ok {
			return nil, fmt.Errorf("%w: agent %s uses unregistered tool %s", ErrLoadFailure, name, tool)
		}
		if err := l.evalArtifact(i, toolRec.Location); err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool, err)
		}
	}
	if err := l.evalArtifact(i, rec.Location); err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}

	symbol := oracle.AgentSymbol(name)
	v, err := i.Eval(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: symbol %s not declared: %v", ErrLoadFailure, symbol, err)
	}
	fn, ok = v.Interface().(func(state map[string]interface{}) map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s has wrong signature", ErrLoadFailure, symbol)
	}

	l.mu.Lock()
	l.agents[name] = fn
	l.mu.Unlock()

	logging.Loader().Debugw("agent loaded", "agent", name, "tools", len(rec.UsesTools))
	return fn, nil
}

// Tool resolves a tool name to its callable, loading and caching it on
// first use.
func (l *Loader) Tool(name string) (ToolFunc, error) {
	l.mu.RLock()
	fn, ok := l.tools[name]
	l.mu.RUnlock()
	if ok {
		return fn, nil
	}

	rec, ok := l.catalog.GetTool(name)
	if !ok {
		return nil, fmt.Errorf("%w: tool %s not registered", ErrLoadFailure, name)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("%w: load stdlib symbols: %v", ErrLoadFailure, err)
	}
	if err := l.evalArtifact(i, rec.Location); err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	v, err := i.Eval(name)
	if err != nil {
		return nil, fmt.Errorf("%w: symbol %s not declared: %v", ErrLoadFailure, name, err)
	}
	fn, ok = v.Interface().(func(input interface{}) interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s has wrong signature", ErrLoadFailure, name)
	}

	l.mu.Lock()
	l.tools[name] = fn
	l.mu.Unlock()

	logging.Loader().Debugw("tool loaded", "tool", name)
	return fn, nil
}

func (l *Loader) evalArtifact(i *interp.Interpreter, location string) error {
	source, err := os.ReadFile(location)
	if err != nil {
		return fmt.Errorf("%w: read artifact %s: %v", ErrLoadFailure, location, err)
	}
	if err := validateImports(string(source)); err != nil {
		return fmt.Errorf("%w: artifact %s: %v", ErrLoadFailure, location, err)
	}
	if _, err := i.Eval(string(source)); err != nil {
		return fmt.Errorf("%w: interpret %s: %v", ErrLoadFailure, location, err)
	}
	return nil
}

// Invalidate drops the cached callable for a component. Invalidating a tool
// also drops every cached agent that embeds it, since agents carry their
// tools inside their interpreter.
func (l *Loader) Invalidate(name string) {
	var consumers []string
	if _, ok := l.catalog.GetTool(name); ok {
		consumers, _ = l.catalog.GetToolUsage(name)
	}

	l.mu.Lock()
	delete(l.agents, name)
	delete(l.tools, name)
	for _, agent := range consumers {
		delete(l.agents, agent)
	}
	l.mu.Unlock()

	logging.Loader().Debugw("cache invalidated", "component", name, "consumers", len(consumers))
}

// cachedCounts reports cache sizes, for tests and diagnostics.
func (l *Loader) cachedCounts() (agents, tools int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.agents), len(l.tools)
}
