package models

import (
	"slices"
	"time"
)

// TaskStatus represents the assignment state of a human task.
type TaskStatus string

const (
	TaskStatusCreated   TaskStatus = "CREATED"
	TaskStatusAssigned  TaskStatus = "ASSIGNED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

// Identity link types.
const (
	IdentityLinkCandidate = "candidate"
	IdentityLinkAssignee  = "assignee"
)

// IdentityLink relates a task to a user or a group.
type IdentityLink struct {
	TaskID  string `json:"task_id"`
	Type    string `json:"type"`
	UserID  string `json:"user_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

// Task is a human task waiting for a person to act.
type Task struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	NodeID       string         `json:"node_id"`
	InstanceID   string         `json:"instance_id"`
	DefinitionID string         `json:"definition_id"`
	TenantID     string         `json:"tenant_id,omitempty"`
	Status       TaskStatus     `json:"status"`
	Assignee     string         `json:"assignee,omitempty"`
	Candidates   []IdentityLink `json:"candidates,omitempty"`
	Sequence     int64          `json:"sequence"` // Creation order across the engine
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	clone := *t
	clone.Candidates = slices.Clone(t.Candidates)

	if t.CompletedAt != nil {
		completedAt := *t.CompletedAt
		clone.CompletedAt = &completedAt
	}

	return &clone
}

// SetAssignee updates the assignee and keeps the status consistent with it.
func (t *Task) SetAssignee(userID string) {
	t.Assignee = userID

	if userID == "" {
		t.Status = TaskStatusCreated
	} else {
		t.Status = TaskStatusAssigned
	}
}

// CandidateUsers returns the user IDs of candidate links.
func (t *Task) CandidateUsers() []string {
	var users []string

	for _, link := range t.Candidates {
		if link.UserID != "" {
			users = append(users, link.UserID)
		}
	}

	return users
}

// CandidateGroups returns the group IDs of candidate links.
func (t *Task) CandidateGroups() []string {
	var groups []string

	for _, link := range t.Candidates {
		if link.GroupID != "" {
			groups = append(groups, link.GroupID)
		}
	}

	return groups
}

// HasCandidateUser reports whether userID is a direct candidate.
func (t *Task) HasCandidateUser(userID string) bool {
	return slices.Contains(t.CandidateUsers(), userID)
}

// HasCandidateGroup reports whether groupID is a candidate group.
func (t *Task) HasCandidateGroup(groupID string) bool {
	return slices.Contains(t.CandidateGroups(), groupID)
}

// AddCandidateUser adds a candidate user link unless it already exists.
func (t *Task) AddCandidateUser(userID string) {
	if userID == "" || t.HasCandidateUser(userID) {
		return
	}

	t.Candidates = append(t.Candidates, IdentityLink{TaskID: t.ID, Type: IdentityLinkCandidate, UserID: userID})
}

// AddCandidateGroup adds a candidate group link unless it already exists.
func (t *Task) AddCandidateGroup(groupID string) {
	if groupID == "" || t.HasCandidateGroup(groupID) {
		return
	}

	t.Candidates = append(t.Candidates, IdentityLink{TaskID: t.ID, Type: IdentityLinkCandidate, GroupID: groupID})
}

// RemoveCandidateUser drops the candidate user link, if any.
func (t *Task) RemoveCandidateUser(userID string) {
	t.Candidates = slices.DeleteFunc(t.Candidates, func(link IdentityLink) bool {
		return link.UserID != "" && link.UserID == userID
	})
}

// RemoveCandidateGroup drops the candidate group link, if any.
func (t *Task) RemoveCandidateGroup(groupID string) {
	t.Candidates = slices.DeleteFunc(t.Candidates, func(link IdentityLink) bool {
		return link.GroupID != "" && link.GroupID == groupID
	})
}

// IdentityLinks returns the synthetic assignee link followed by the candidate links.
func (t *Task) IdentityLinks() []IdentityLink {
	links := make([]IdentityLink, 0, len(t.Candidates)+1)

	if t.Assignee != "" {
		links = append(links, IdentityLink{TaskID: t.ID, Type: IdentityLinkAssignee, UserID: t.Assignee})
	}

	return append(links, t.Candidates...)
}
