package mocks

import (
	"context"
	"sync"

	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockEventBus is a mock implementation of eventbus.EventBus interface.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}

// RecordingPublisher keeps every published event in order.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *RecordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return nil
}

// Types returns the types of the recorded events in publish order.
func (r *RecordingPublisher) Types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]events.EventType, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.GetType())
	}

	return types
}

// Events returns a copy of the recorded events.
func (r *RecordingPublisher) Events() []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]eventbus.Event(nil), r.events...)
}

// Reset forgets every recorded event.
func (r *RecordingPublisher) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}
