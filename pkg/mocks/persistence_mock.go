package mocks

import (
	"context"

	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Commit(ctx context.Context, batch *persistence.Batch) error {
	args := m.Called(ctx, batch)

	return args.Error(0)
}

func (m *MockPersistence) Load(ctx context.Context) (*persistence.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.Snapshot), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// SwitchablePersistence delegates to a real backend until Fail is set.
type SwitchablePersistence struct {
	persistence.Persistence

	Fail error
}

func (s *SwitchablePersistence) Commit(ctx context.Context, batch *persistence.Batch) error {
	if s.Fail != nil {
		return s.Fail
	}

	return s.Persistence.Commit(ctx, batch)
}
