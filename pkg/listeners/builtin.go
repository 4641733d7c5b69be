package listeners

import (
	"log/slog"

	"github.com/dukex/taskflow/pkg/registry"
)

// Names under which the builtin listeners and functions are registered.
const (
	StaticAssigneeName    = "staticAssignee"
	VariableDecoratorName = "variableDecorator"

	DefaultAssigneeFunction = "assignee.default"
)

// Config configures the builtin listeners.
type Config struct {
	Assignee string
	Suffix   string
}

// Register adds the builtin listeners and functions to the registry. The static
// assignee and the default assignee function are only registered when an assignee
// is configured.
func Register(r *registry.Registry, logger *slog.Logger, cfg Config) error {
	if cfg.Assignee != "" {
		if err := r.RegisterListener(StaticAssigneeName, NewStaticAssignee(logger, cfg.Assignee)); err != nil {
			return err
		}

		if err := r.RegisterFunction(DefaultAssigneeFunction, DefaultAssignee(logger, cfg.Assignee)); err != nil {
			return err
		}
	}

	return r.RegisterListener(VariableDecoratorName, NewVariableDecorator(logger, cfg.Suffix))
}
