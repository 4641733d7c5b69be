package main

import (
	"context"
	"fmt"

	"github.com/dukex/taskflow/pkg/cmd"
	"github.com/dukex/taskflow/pkg/definition"
	"github.com/dukex/taskflow/pkg/log"
	"github.com/dukex/taskflow/pkg/persistence/memory"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
)

func deployCommand() *cli.Command {
	return &cli.Command{
		Name:      "deploy",
		Aliases:   []string{"d"},
		Usage:     "Deploy resource files as one deployment",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"n"},
				Usage:    "Deployment name",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "tenant",
				Aliases: []string{"t"},
				Usage:   "Tenant owning the deployed definitions",
			},
		},
		Action: deploy,
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Compile resource files without deploying them",
		ArgsUsage: "FILE...",
		Action:    validate,
	}
}

func readResources(command *cli.Command) ([]definition.Resource, error) {
	files, err := requireFiles(command)
	if err != nil {
		return nil, err
	}

	resources := make([]definition.Resource, 0, len(files))

	for _, path := range files {
		resource, err := definition.ReadResource(path)
		if err != nil {
			return nil, err
		}

		resources = append(resources, resource)
	}

	return resources, nil
}

func deploy(ctx context.Context, command *cli.Command) (err error) {
	logger := log.WithModule("deploy")

	resources, err := readResources(command)
	if err != nil {
		return err
	}

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, store.Close(context.Background()))
	}()

	eng, err := newEngine(logger, command, store)
	if err != nil {
		return err
	}

	if err := eng.Load(ctx); err != nil {
		return err
	}

	deployment, err := eng.Deploy(ctx, resources, command.String("name"), command.String("tenant"))
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(command.Root().Writer, "deployment %s\n", deployment.ID)

	for _, id := range deployment.DefinitionIDs {
		_, _ = fmt.Fprintf(command.Root().Writer, "  %s\n", id)
	}

	return nil
}

func validate(_ context.Context, command *cli.Command) error {
	logger := log.WithModule("validate")

	resources, err := readResources(command)
	if err != nil {
		return err
	}

	eng, err := newEngine(logger, command, memory.NewPersistence())
	if err != nil {
		return err
	}

	defs, err := eng.Catalog().Validate(resources)
	if err != nil {
		return err
	}

	for _, def := range defs {
		_, _ = fmt.Fprintf(command.Root().Writer, "%s: ok (%d nodes, %d transitions)\n", def.Key, len(def.Nodes), len(def.Transitions))
	}

	return nil
}
