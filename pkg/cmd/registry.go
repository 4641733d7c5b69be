// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/taskflow/pkg/listeners"
	"github.com/dukex/taskflow/pkg/registry"
)

// ListenerConfig selects the listeners available to process definitions.
type ListenerConfig struct {
	PluginsPath string
	Builtin     listeners.Config
	Global      []string // Names of registered listeners run on every task
}

// NewRegistry registers the builtin listeners and functions, loads plugins and marks
// the configured global listeners.
func NewRegistry(log *slog.Logger, cfg ListenerConfig) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	if err := listeners.Register(reg, log, cfg.Builtin); err != nil {
		return nil, err
	}

	if cfg.PluginsPath != "" {
		if err := reg.LoadPlugins(cfg.PluginsPath); err != nil {
			return nil, err
		}
	}

	if err := reg.MarkGlobal(cfg.Global...); err != nil {
		return nil, err
	}

	return reg, nil
}
