package engine

import (
	"cmp"
	"context"
	"slices"

	"github.com/dukex/taskflow/pkg/models"
)

// TaskQuery filters open tasks. Set fields are AND-composed; zero fields do not filter.
// CandidateUser and CandidateGroup only match unassigned tasks.
type TaskQuery struct {
	CandidateUser        string   `query:"candidate_user"`
	CandidateGroup       string   `query:"candidate_group"`
	Assignee             string   `query:"assignee"`
	Unassigned           bool     `query:"unassigned"`
	TenantIDIn           []string `query:"tenant_id_in"`
	WithoutTenantID      bool     `query:"without_tenant_id"`
	ProcessInstanceID    string   `query:"process_instance_id"`
	ProcessDefinitionKey string   `query:"process_definition_key"`
	TaskDefinitionKey    string   `query:"task_definition_key"`
}

// QueryTasks returns the open tasks matching the query in creation order.
func (e *Engine) QueryTasks(_ context.Context, query TaskQuery) []*models.Task {
	e.mu.RLock()

	tasks := make([]*models.Task, 0, len(e.tasks))
	for _, entry := range e.tasks {
		tasks = append(tasks, entry.current.Load())
	}

	e.mu.RUnlock()

	var groups []string
	if query.CandidateUser != "" {
		groups = e.identity.GroupsOfUser(query.CandidateUser)
	}

	tasks = slices.DeleteFunc(tasks, func(task *models.Task) bool {
		return !e.matchTask(task, query, groups)
	})

	slices.SortFunc(tasks, func(a, b *models.Task) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	return tasks
}

func (e *Engine) matchTask(task *models.Task, query TaskQuery, userGroups []string) bool {
	switch {
	case query.Assignee != "" && task.Assignee != query.Assignee,
		query.Unassigned && task.Assignee != "",
		query.ProcessInstanceID != "" && task.InstanceID != query.ProcessInstanceID,
		query.TaskDefinitionKey != "" && task.NodeID != query.TaskDefinitionKey,
		query.WithoutTenantID && task.TenantID != "",
		len(query.TenantIDIn) > 0 && !slices.Contains(query.TenantIDIn, task.TenantID):
		return false
	}

	if query.CandidateGroup != "" && (task.Assignee != "" || !task.HasCandidateGroup(query.CandidateGroup)) {
		return false
	}

	if query.CandidateUser != "" {
		if task.Assignee != "" {
			return false
		}

		viaGroup := slices.ContainsFunc(userGroups, task.HasCandidateGroup)
		if !task.HasCandidateUser(query.CandidateUser) && !viaGroup {
			return false
		}
	}

	if query.ProcessDefinitionKey != "" {
		def, err := e.catalog.ResolveByID(task.DefinitionID)
		if err != nil || def.Key != query.ProcessDefinitionKey {
			return false
		}
	}

	return true
}
