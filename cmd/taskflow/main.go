// Package main provides the taskflow command: the engine HTTP server and deployment tooling.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dukex/taskflow/pkg/expression"
	"github.com/dukex/taskflow/pkg/log"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9092

func main() {
	// A missing .env file is not an error; the environment may already be configured.
	_ = godotenv.Load()

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.WithModule("taskflow").Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "taskflow",
		Usage:                 "Deploy process definitions and run human task workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL (memory://, file://dir, postgres://..., redis://..., bolt://file)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.DurationFlag{
				Name:    "listener-timeout",
				Usage:   "Maximum time a task listener may run",
				Value:   5 * time.Second,
				Sources: cli.EnvVars("LISTENER_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Directory containing listener plugins (listeners/*.so)",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.StringFlag{
				Name:    "default-assignee",
				Usage:   "User assigned by the staticAssignee listener and returned by ${assignee.default()}; empty disables both",
				Sources: cli.EnvVars("DEFAULT_ASSIGNEE"),
			},
			&cli.StringFlag{
				Name:    "variable-suffix",
				Usage:   "Suffix appended by the variableDecorator listener",
				Sources: cli.EnvVars("VARIABLE_SUFFIX"),
			},
			&cli.StringSliceFlag{
				Name:    "global-listener",
				Usage:   "Listener run on every created task; may be repeated",
				Sources: cli.EnvVars("GLOBAL_LISTENERS"),
			},
			&cli.StringFlag{
				Name:    "expression-language",
				Usage:   "Expression language of definitions: builtin (${...}) or template ({{ ... }})",
				Value:   expression.LanguageBuiltin,
				Sources: cli.EnvVars("EXPRESSION_LANGUAGE"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			deployCommand(),
			validateCommand(),
		},
	}
}

func requireFiles(command *cli.Command) ([]string, error) {
	files := command.Args().Slice()
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: at least one resource file is required", command.Name)
	}

	return files, nil
}
