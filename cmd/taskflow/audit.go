package main

import (
	"context"
	"log/slog"

	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/events"
)

// registerAuditLog logs every lifecycle event delivered by the bus.
func registerAuditLog(logger *slog.Logger, bus eventbus.EventSubscriber) error {
	for _, eventType := range events.EventTypes {
		err := bus.Handle(eventType, func(ctx context.Context, event any) error {
			logger.InfoContext(ctx, "Lifecycle event", "event_type", eventType, "event", event)

			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
