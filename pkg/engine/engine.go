// Package engine runs process instances and manages their human tasks.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukex/taskflow/pkg/catalog"
	"github.com/dukex/taskflow/pkg/definition"
	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/expression"
	"github.com/dukex/taskflow/pkg/identity"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/variables"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine owns every runtime registry. State lives in memory and every mutation is
// committed to persistence before it becomes visible.
//
// Locks are taken in the order task, instance, maps.
type Engine struct {
	logger          *slog.Logger
	persistence     persistence.Persistence
	catalog         *catalog.Catalog
	variables       *variables.Store
	identity        *identity.Directory
	evaluator       expression.Evaluator
	listeners       map[string]TaskListener
	globalListeners []TaskListener
	publisher       eventbus.EventPublisher
	tracer          trace.Tracer
	listenerTimeout time.Duration
	now             func() time.Time

	taskSequence atomic.Int64

	mu        sync.RWMutex
	instances map[string]*instanceEntry
	tasks     map[string]*taskEntry
}

type instanceEntry struct {
	mu      sync.Mutex
	current atomic.Pointer[models.ProcessInstance]
}

type taskEntry struct {
	mu      sync.Mutex
	current atomic.Pointer[models.Task]
	removed bool // guarded by mu
}

// New creates an engine over the given persistence. Call Load to restore state.
func New(logger *slog.Logger, store persistence.Persistence, opts ...Option) *Engine {
	e := &Engine{
		logger:      logger,
		persistence: store,
		evaluator:   expression.NewBuiltin(),
		listeners:   make(map[string]TaskListener),
		tracer:      otelhelper.NoopTracer(),
		now:         func() time.Time { return time.Now().UTC() },
		instances:   make(map[string]*instanceEntry),
		tasks:       make(map[string]*taskEntry),
	}

	for _, opt := range opts {
		opt(e)
	}

	compilerOpts := []definition.CompilerOption{
		definition.WithListenerCheck(func(name string) bool {
			_, ok := e.listeners[name]

			return ok
		}),
	}

	if validator, ok := e.evaluator.(expression.Validator); ok {
		compilerOpts = append(compilerOpts, definition.WithExpressionValidator(validator))
	}

	e.catalog = catalog.New(logger.With("component", "catalog"), definition.NewCompiler(compilerOpts...), store)
	e.variables = variables.New(logger.With("component", "variables"), store)
	e.identity = identity.New(logger.With("component", "identity"), store)

	return e
}

// Load restores every registry from persistence.
func (e *Engine) Load(ctx context.Context) error {
	snapshot, err := e.persistence.Load(ctx)
	if err != nil {
		return err
	}

	e.catalog.Restore(snapshot)
	e.variables.Restore(snapshot)
	e.identity.Restore(snapshot)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, instance := range snapshot.Instances {
		entry := &instanceEntry{}
		entry.current.Store(instance)
		e.instances[instance.ID] = entry
	}

	for _, task := range snapshot.Tasks {
		entry := &taskEntry{}
		entry.current.Store(task)
		e.tasks[task.ID] = entry

		if task.Sequence > e.taskSequence.Load() {
			e.taskSequence.Store(task.Sequence)
		}
	}

	e.logger.InfoContext(ctx, "Loaded engine state",
		"definitions", len(snapshot.Definitions),
		"instances", len(snapshot.Instances),
		"tasks", len(snapshot.Tasks),
		"users", len(snapshot.Users))

	return nil
}

// Catalog returns the deployment catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Identity returns the identity directory.
func (e *Engine) Identity() *identity.Directory {
	return e.identity
}

// VariableStore returns the variable store.
func (e *Engine) VariableStore() *variables.Store {
	return e.variables
}

// HealthCheck reports whether persistence is reachable.
func (e *Engine) HealthCheck(ctx context.Context) error {
	return e.persistence.HealthCheck(ctx)
}

func (e *Engine) lookupTask(op, id string) (*taskEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.tasks[id]
	if !ok {
		return nil, models.NotFound(op, "task", id)
	}

	return entry, nil
}

func (e *Engine) lookupInstance(op, id string) (*instanceEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.instances[id]
	if !ok {
		return nil, models.NotFound(op, "process instance", id)
	}

	return entry, nil
}

// nolint:spancheck // the caller ends the span
func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otelhelper.StartSpan(ctx, e.tracer, name, attrs...)
}

// fail records err on the span and logs it before handing it back.
func (e *Engine) fail(ctx context.Context, span trace.Span, op string, err error) error {
	otelhelper.SetError(span, err)
	e.logger.WarnContext(ctx, "Operation failed", "op", op, "error", err)

	return err
}

func (e *Engine) publish(ctx context.Context, key string, evs ...eventbus.Event) {
	if e.publisher == nil {
		return
	}

	for _, event := range evs {
		if err := e.publisher.Publish(ctx, key, event); err != nil {
			e.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
		}
	}
}
