package engine

import (
	"time"

	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/expression"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Engine.
type Option func(*Engine)

// WithEvaluator replaces the builtin ${...} expression evaluator.
func WithEvaluator(evaluator expression.Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = evaluator
	}
}

// WithListener registers a task listener that nodes reference by name.
func WithListener(name string, listener TaskListener) Option {
	return func(e *Engine) {
		e.listeners[name] = listener
	}
}

// WithGlobalListener registers a listener notified for every created task, after
// the node's own listeners. Global listeners run in registration order.
func WithGlobalListener(listener TaskListener) Option {
	return func(e *Engine) {
		e.globalListeners = append(e.globalListeners, listener)
	}
}

// WithPublisher publishes lifecycle events after every commit.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithTracer records a span per engine operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithListenerTimeout bounds the listener chain of each created task. Zero leaves
// only the caller's deadline in effect.
func WithListenerTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.listenerTimeout = timeout
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}
