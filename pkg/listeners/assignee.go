// Package listeners provides the builtin task listeners and expression functions.
package listeners

import (
	"context"
	"log/slog"

	"github.com/dukex/taskflow/pkg/engine"
	"github.com/dukex/taskflow/pkg/expression"
)

// StaticAssignee assigns every task it is notified about to one user.
type StaticAssignee struct {
	logger *slog.Logger
	userID string
}

// NewStaticAssignee creates a listener assigning every task to userID.
func NewStaticAssignee(logger *slog.Logger, userID string) *StaticAssignee {
	return &StaticAssignee{logger: logger, userID: userID}
}

func (l *StaticAssignee) Notify(ctx context.Context, task *engine.TaskDelegate) error {
	l.logger.DebugContext(ctx, "Assigning task", "task_id", task.ID(), "node_id", task.NodeID(), "assignee", l.userID)
	task.SetAssignee(l.userID)

	return nil
}

// DefaultAssignee returns a function resolving ${assignee.default()} to userID.
func DefaultAssignee(logger *slog.Logger, userID string) expression.Func {
	return func(ctx context.Context, _ ...any) (any, error) {
		logger.DebugContext(ctx, "Resolving default assignee", "assignee", userID)

		return userID, nil
	}
}
