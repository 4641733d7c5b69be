package main

import (
	"log/slog"

	"github.com/dukex/taskflow/pkg/cmd"
	"github.com/dukex/taskflow/pkg/engine"
	"github.com/dukex/taskflow/pkg/listeners"
	"github.com/dukex/taskflow/pkg/persistence"
	cli "github.com/urfave/cli/v3"
)

// newEngine builds an engine with the configured listeners and expression language. Callers still need to Load it.
func newEngine(logger *slog.Logger, command *cli.Command, store persistence.Persistence, opts ...engine.Option) (*engine.Engine, error) {
	reg, err := cmd.NewRegistry(logger.With("component", "registry"), cmd.ListenerConfig{
		PluginsPath: command.String("plugins-path"),
		Builtin: listeners.Config{
			Assignee: command.String("default-assignee"),
			Suffix:   command.String("variable-suffix"),
		},
		Global: command.StringSlice("global-listener"),
	})
	if err != nil {
		return nil, err
	}

	evaluator, err := reg.Evaluator(command.String("expression-language"))
	if err != nil {
		return nil, err
	}

	opts = append(opts, engine.WithEvaluator(evaluator))
	opts = append(opts, engine.WithListenerTimeout(command.Duration("listener-timeout")))
	opts = append(opts, reg.EngineOptions()...)

	return engine.New(logger.With("component", "engine"), store, opts...), nil
}
