package persistence

import (
	"errors"
	"fmt"
)

// ErrUnsupportedBackend indicates a database URL with an unknown scheme.
var ErrUnsupportedBackend = errors.New("unsupported persistence backend")

// StorageError wraps backend failures with the operation and backend name.
type StorageError struct {
	Op      string // Operation being performed (e.g., "Commit", "Load")
	Backend string // Backend name (e.g., "postgresql", "redis")
	Err     error  // Underlying error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s operation failed on %s persistence: %v", e.Op, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for storage errors.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStorageError creates a new storage error with context.
func NewStorageError(op, backend string, err error) *StorageError {
	return &StorageError{
		Op:      op,
		Backend: backend,
		Err:     err,
	}
}
