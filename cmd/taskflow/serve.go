package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/taskflow/pkg/cmd"
	"github.com/dukex/taskflow/pkg/engine"
	"github.com/dukex/taskflow/pkg/log"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/retention"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the engine HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.DurationFlag{
				Name:    "history-retention",
				Usage:   "Age after which variable history is pruned; 0 disables pruning",
				Sources: cli.EnvVars("HISTORY_RETENTION"),
			},
			&cli.StringFlag{
				Name:    "history-cleanup-schedule",
				Usage:   "Cron schedule of the history pruning job",
				Value:   "@hourly",
				Sources: cli.EnvVars("HISTORY_CLEANUP_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: serve,
	}
}

func serve(ctx context.Context, command *cli.Command) (err error) {
	logger := log.WithModule("serve")

	logger.InfoContext(ctx, "Initializing taskflow")

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, store.Close(context.Background()))
	}()

	bus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, bus.Close())
	}()

	opts := []engine.Option{engine.WithPublisher(bus)}

	if command.Bool("otel") {
		tracer, shutdown, tracerErr := otelhelper.NewTracer(ctx, "taskflow")
		if tracerErr != nil {
			return tracerErr
		}

		defer func() {
			err = multierr.Append(err, shutdown(context.Background()))
		}()

		opts = append(opts, engine.WithTracer(tracer))
	}

	eng, err := newEngine(logger, command, store, opts...)
	if err != nil {
		return err
	}

	if err := eng.Load(ctx); err != nil {
		return err
	}

	if err := registerAuditLog(log.WithModule("audit"), bus); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := NewAPI(logger, eng)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return bus.Subscribe(ctx)
	})

	if keep := command.Duration("history-retention"); keep > 0 {
		job, err := retention.NewJob(log.WithModule("retention"), eng.VariableStore(), command.String("history-cleanup-schedule"), keep)
		if err != nil {
			return err
		}

		g.Go(func() error {
			return job.Run(ctx)
		})
	}

	g.Go(func() error {
		logger.InfoContext(ctx, "Starting HTTP server", "port", command.Int("port"))

		return api.Start(command.Int("port"))
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.InfoContext(shutdownCtx, "Shutting down HTTP server")

		return api.App().ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
