// Package registry collects the task listeners and expression functions an engine is built with.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"slices"
	"strings"

	"github.com/dukex/taskflow/pkg/engine"
	"github.com/dukex/taskflow/pkg/expression"
)

var (
	ErrDuplicateListener = errors.New("listener already registered")
	ErrUnknownListener   = errors.New("listener not registered")
	ErrDuplicateFunction = errors.New("function already registered")
)

// Symbols plugins must export.
const (
	PluginSymbol         = "Listener"
	FunctionPluginSymbol = "Function"
)

// NamedListener is implemented by listeners loaded from plugins.
type NamedListener interface {
	engine.TaskListener
	Name() string
}

// NamedFunction is implemented by expression functions loaded from plugins.
type NamedFunction interface {
	Name() string
	Call(ctx context.Context, args ...any) (any, error)
}

type Registry struct {
	logger    *slog.Logger
	listeners map[string]engine.TaskListener
	global    []string
	functions map[string]expression.Func
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		listeners: make(map[string]engine.TaskListener),
		functions: make(map[string]expression.Func),
	}
}

// RegisterListener makes a listener available to definitions under name.
func (r *Registry) RegisterListener(name string, listener engine.TaskListener) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownListener)
	}

	if _, ok := r.listeners[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateListener, name)
	}

	r.listeners[name] = listener
	r.logger.Debug("Registered task listener", "listener", name)

	return nil
}

// RegisterFunction makes fn callable from expressions as name(...).
func (r *Registry) RegisterFunction(name string, fn expression.Func) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", expression.ErrUnknownFunction)
	}

	if _, ok := r.functions[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
	}

	r.functions[name] = fn
	r.logger.Debug("Registered expression function", "function", name)

	return nil
}

// FunctionNames returns the registered function names, sorted.
func (r *Registry) FunctionNames() []string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Evaluator builds the evaluator for language with every registered function.
func (r *Registry) Evaluator(language string) (expression.Evaluator, error) {
	return expression.New(language, r.functions)
}

// MarkGlobal runs a registered listener for every created task, in the order marked.
func (r *Registry) MarkGlobal(names ...string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if _, ok := r.listeners[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownListener, name)
		}

		if !slices.Contains(r.global, name) {
			r.global = append(r.global, name)
		}
	}

	return nil
}

// Names returns the registered listener names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.listeners))
	for name := range r.listeners {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// EngineOptions turns the registry into engine options.
func (r *Registry) EngineOptions() []engine.Option {
	opts := make([]engine.Option, 0, len(r.listeners)+len(r.global))

	for _, name := range r.Names() {
		opts = append(opts, engine.WithListener(name, r.listeners[name]))
	}

	for _, name := range r.global {
		opts = append(opts, engine.WithGlobalListener(r.listeners[name]))
	}

	return opts
}

// LoadPlugins loads the listener plugins below pluginsPath/listeners and the
// function plugins below pluginsPath/functions.
func (r *Registry) LoadPlugins(pluginsPath string) error {
	if err := r.LoadListenerPlugins(pluginsPath); err != nil {
		return err
	}

	return r.LoadFunctionPlugins(pluginsPath)
}

// LoadListenerPlugins opens every *.so file below pluginsPath/listeners and registers
// its exported Listener.
func (r *Registry) LoadListenerPlugins(pluginsPath string) error {
	return r.loadPlugins(filepath.Join(pluginsPath, "listeners"), PluginSymbol, func(p string, symbol plugin.Symbol) (string, error) {
		listener, ok := symbol.(NamedListener)
		if !ok {
			return "", fmt.Errorf("plugin %s: symbol %s does not implement a named task listener", p, PluginSymbol)
		}

		return listener.Name(), r.RegisterListener(listener.Name(), listener)
	})
}

// LoadFunctionPlugins opens every *.so file below pluginsPath/functions and registers
// its exported Function.
func (r *Registry) LoadFunctionPlugins(pluginsPath string) error {
	return r.loadPlugins(filepath.Join(pluginsPath, "functions"), FunctionPluginSymbol, func(p string, symbol plugin.Symbol) (string, error) {
		fn, ok := symbol.(NamedFunction)
		if !ok {
			return "", fmt.Errorf("plugin %s: symbol %s does not implement a named expression function", p, FunctionPluginSymbol)
		}

		return fn.Name(), r.RegisterFunction(fn.Name(), fn.Call)
	})
}

func (r *Registry) loadPlugins(rootPath, symbolName string, register func(p string, symbol plugin.Symbol) (string, error)) error {
	paths, err := fs.Glob(os.DirFS(rootPath), "*.so")
	if err != nil {
		return err
	}

	l := r.logger.With(slog.String("path", rootPath))
	l.Info("Loading plugins", "count", len(paths))

	for _, p := range paths {
		plg, err := plugin.Open(filepath.Join(rootPath, p))
		if err != nil {
			return fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		symbol, err := plg.Lookup(symbolName)
		if err != nil {
			return fmt.Errorf("plugin %s: %w", p, err)
		}

		name, err := register(p, symbol)
		if err != nil {
			return err
		}

		l.Info("Loaded plugin", slog.String("plugin", p), slog.String("name", name))
	}

	return nil
}
