package models

import (
	"errors"
	"fmt"
)

// Standard engine error kinds. Every error returned by the engine wraps one of these.
var (
	// ErrNotFound indicates a definition, deployment, instance, task or identity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDefinition indicates a resource does not compile into a valid process graph.
	ErrInvalidDefinition = errors.New("invalid process definition")

	// ErrInvalidVariable indicates a value is not a string, number, boolean or null,
	// or that an assignment expression could not be resolved from the variables.
	ErrInvalidVariable = errors.New("invalid variable")

	// ErrInvalidIdentity indicates an identity entity failed validation.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrAlreadyAssigned indicates a claim on a task assigned to someone else.
	ErrAlreadyAssigned = errors.New("task already assigned")

	// ErrAlreadyCompleted indicates a task was completed by a concurrent caller.
	ErrAlreadyCompleted = errors.New("task already completed")

	// ErrNotCandidate indicates a claimant is not a candidate of the task.
	ErrNotCandidate = errors.New("user is not a candidate")

	// ErrNoApplicablePath indicates no outgoing transition could be taken, including
	// when a transition condition fails to evaluate.
	ErrNoApplicablePath = errors.New("no applicable path")

	// ErrDefinitionSuspended indicates an instance was requested from a suspended definition.
	ErrDefinitionSuspended = errors.New("process definition suspended")

	// ErrTimeout indicates a listener did not finish before the caller's deadline.
	ErrTimeout = errors.New("timeout")
)

// EngineError wraps engine errors with the operation and the entity it targeted.
type EngineError struct {
	Op   string // Operation being performed (e.g., "Claim", "Deploy")
	Kind string // Entity kind (e.g., "task", "process definition")
	ID   string // Entity ID if applicable
	Err  error  // Underlying error
}

func (e *EngineError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
	}

	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for engine errors.
func (e *EngineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewEngineError creates a new engine error with context.
func NewEngineError(op, kind, id string, err error) *EngineError {
	return &EngineError{
		Op:   op,
		Kind: kind,
		ID:   id,
		Err:  err,
	}
}

// NotFound builds a not-found error for the given entity.
func NotFound(op, kind, id string) *EngineError {
	return NewEngineError(op, kind, id, ErrNotFound)
}

// IsNotFound checks if an error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
