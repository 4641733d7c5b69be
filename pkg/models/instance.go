package models

import (
	"maps"
	"slices"
	"time"
)

// InstanceStatus represents the lifecycle state of a process instance.
type InstanceStatus string

const (
	InstanceStatusActive     InstanceStatus = "ACTIVE"
	InstanceStatusCompleted  InstanceStatus = "COMPLETED"
	InstanceStatusTerminated InstanceStatus = "TERMINATED"
)

// JoinState records arrivals at an AND-join, counted per incoming transition.
type JoinState struct {
	NodeID    string         `json:"node_id"`
	Arrivals  map[string]int `json:"arrivals"`
	PendingAt time.Time      `json:"pending_at"`
}

// Ready reports whether every transition in incoming has at least one arrival.
func (j *JoinState) Ready(incoming []Transition) bool {
	for _, transition := range incoming {
		if j.Arrivals[transition.ID] == 0 {
			return false
		}
	}

	return true
}

// ProcessInstance is one running execution of a process definition.
type ProcessInstance struct {
	ID            string                `json:"id"`
	DefinitionID  string                `json:"definition_id"`
	DefinitionKey string                `json:"definition_key"`
	TenantID      string                `json:"tenant_id,omitempty"`
	Status        InstanceStatus        `json:"status"`
	ActiveTaskIDs []string              `json:"active_task_ids"`
	Joins         map[string]*JoinState `json:"joins,omitempty"`
	StartedAt     time.Time             `json:"started_at"`
	EndedAt       *time.Time            `json:"ended_at,omitempty"`
	EndReason     string                `json:"end_reason,omitempty"`
}

// Clone returns a deep copy so a modified instance can be committed before it replaces the original.
func (p *ProcessInstance) Clone() *ProcessInstance {
	clone := *p
	clone.ActiveTaskIDs = slices.Clone(p.ActiveTaskIDs)

	if p.Joins != nil {
		clone.Joins = make(map[string]*JoinState, len(p.Joins))
		for id, join := range p.Joins {
			joinCopy := *join
			joinCopy.Arrivals = maps.Clone(join.Arrivals)
			clone.Joins[id] = &joinCopy
		}
	}

	if p.EndedAt != nil {
		endedAt := *p.EndedAt
		clone.EndedAt = &endedAt
	}

	return &clone
}

// IsActive reports whether the instance can still make progress.
func (p *ProcessInstance) IsActive() bool {
	return p.Status == InstanceStatusActive
}

// RemoveActiveTask drops a task from the active set.
func (p *ProcessInstance) RemoveActiveTask(taskID string) {
	p.ActiveTaskIDs = slices.DeleteFunc(p.ActiveTaskIDs, func(id string) bool {
		return id == taskID
	})
}

// PendingJoins counts joins that have received at least one branch but not all of them.
func (p *ProcessInstance) PendingJoins() int {
	return len(p.Joins)
}
