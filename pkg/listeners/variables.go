package listeners

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/dukex/taskflow/pkg/engine"
)

// VariableDecorator appends a suffix to every string variable visible to the task
// and writes the result back to the instance scope.
type VariableDecorator struct {
	logger *slog.Logger
	suffix string
}

// NewVariableDecorator creates a decorator that appends suffix to string variables.
func NewVariableDecorator(logger *slog.Logger, suffix string) *VariableDecorator {
	return &VariableDecorator{logger: logger, suffix: suffix}
}

func (l *VariableDecorator) Notify(ctx context.Context, task *engine.TaskDelegate) error {
	vars := task.Variables()

	for _, name := range slices.Sorted(maps.Keys(vars)) {
		l.logger.DebugContext(ctx, "Task variable", "task_id", task.ID(), "name", name, "value", vars[name])

		value, ok := vars[name].(string)
		if !ok {
			continue
		}

		if err := task.SetVariable(name, value+l.suffix); err != nil {
			return err
		}
	}

	return nil
}
