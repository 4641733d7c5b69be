// Package events defines the lifecycle notifications published after every commit.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "taskflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	DeploymentCreatedEvent EventType = "deployment.created"

	// Process instance lifecycle events.
	ProcessInstanceStartedEvent    EventType = "process_instance.started"
	ProcessInstanceCompletedEvent  EventType = "process_instance.completed"
	ProcessInstanceTerminatedEvent EventType = "process_instance.terminated"

	// Human task events.
	TaskCreatedEvent   EventType = "task.created"
	TaskAssignedEvent  EventType = "task.assigned"
	TaskCompletedEvent EventType = "task.completed"

	VariablesUpdatedEvent EventType = "variables.updated"
)

// EventTypes lists every event the engine publishes.
var EventTypes = []EventType{
	DeploymentCreatedEvent,
	ProcessInstanceStartedEvent,
	ProcessInstanceCompletedEvent,
	ProcessInstanceTerminatedEvent,
	TaskCreatedEvent,
	TaskAssignedEvent,
	TaskCompletedEvent,
	VariablesUpdatedEvent,
}

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	InstanceID string         `json:"instance_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, instanceID, tenantID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		InstanceID: instanceID,
		TenantID:   tenantID,
		Metadata:   make(map[string]any),
	}
}

type DeploymentCreated struct {
	BaseEvent

	DeploymentID  string   `json:"deployment_id"`
	Name          string   `json:"name"`
	DefinitionIDs []string `json:"definition_ids"`
}

func (e DeploymentCreated) GetType() EventType {
	return DeploymentCreatedEvent
}

type ProcessInstanceStarted struct {
	BaseEvent

	DefinitionID  string         `json:"definition_id"`
	DefinitionKey string         `json:"definition_key"`
	Variables     map[string]any `json:"variables,omitempty"`
}

func (e ProcessInstanceStarted) GetType() EventType {
	return ProcessInstanceStartedEvent
}

type ProcessInstanceCompleted struct {
	BaseEvent

	DefinitionID string        `json:"definition_id"`
	Duration     time.Duration `json:"duration"`
}

func (e ProcessInstanceCompleted) GetType() EventType {
	return ProcessInstanceCompletedEvent
}

type ProcessInstanceTerminated struct {
	BaseEvent

	DefinitionID string `json:"definition_id"`
	Reason       string `json:"reason,omitempty"`
}

func (e ProcessInstanceTerminated) GetType() EventType {
	return ProcessInstanceTerminatedEvent
}

type TaskCreated struct {
	BaseEvent

	TaskID          string   `json:"task_id"`
	NodeID          string   `json:"node_id"`
	Name            string   `json:"name"`
	Assignee        string   `json:"assignee,omitempty"`
	CandidateUsers  []string `json:"candidate_users,omitempty"`
	CandidateGroups []string `json:"candidate_groups,omitempty"`
}

func (e TaskCreated) GetType() EventType {
	return TaskCreatedEvent
}

// TaskAssigned is published on claim, unclaim and administrative reassignment.
// An empty Assignee means the task went back to the candidate pool.
type TaskAssigned struct {
	BaseEvent

	TaskID           string `json:"task_id"`
	Assignee         string `json:"assignee,omitempty"`
	PreviousAssignee string `json:"previous_assignee,omitempty"`
}

func (e TaskAssigned) GetType() EventType {
	return TaskAssignedEvent
}

type TaskCompleted struct {
	BaseEvent

	TaskID    string         `json:"task_id"`
	NodeID    string         `json:"node_id"`
	Assignee  string         `json:"assignee,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (e TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

type VariablesUpdated struct {
	BaseEvent

	ScopeID string   `json:"scope_id"`
	Names   []string `json:"names"`
}

func (e VariablesUpdated) GetType() EventType {
	return VariablesUpdatedEvent
}

// New returns an empty event value for the type, ready to be decoded into.
func New(eventType EventType) (any, bool) {
	switch eventType {
	case DeploymentCreatedEvent:
		return &DeploymentCreated{}, true
	case ProcessInstanceStartedEvent:
		return &ProcessInstanceStarted{}, true
	case ProcessInstanceCompletedEvent:
		return &ProcessInstanceCompleted{}, true
	case ProcessInstanceTerminatedEvent:
		return &ProcessInstanceTerminated{}, true
	case TaskCreatedEvent:
		return &TaskCreated{}, true
	case TaskAssignedEvent:
		return &TaskAssigned{}, true
	case TaskCompletedEvent:
		return &TaskCompleted{}, true
	case VariablesUpdatedEvent:
		return &VariablesUpdated{}, true
	default:
		return nil, false
	}
}
