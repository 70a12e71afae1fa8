package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/orderflow/cmd/app/commands"
	"github.com/allisson/orderflow/internal/app"
	"github.com/allisson/orderflow/internal/config"
)

func getOutboxCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "process-outbox",
			Usage: "Run one dispatch cycle over pending and stale outbox events",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				dispatcher, err := container.Dispatcher()
				if err != nil {
					return err
				}

				return commands.RunProcessOutbox(
					ctx,
					dispatcher,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "dispatch-outbox",
			Usage: "Run one full dispatch cycle: stale, retryable and pending outbox events",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				dispatcher, err := container.Dispatcher()
				if err != nil {
					return err
				}

				return commands.RunDispatchOutbox(
					ctx,
					dispatcher,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "retry-outbox",
			Usage: "Run one dispatch cycle over failed outbox events past their cooldown",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				dispatcher, err := container.Dispatcher()
				if err != nil {
					return err
				}

				return commands.RunRetryOutbox(
					ctx,
					dispatcher,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "list-outbox-events",
			Usage: "List outbox events by type, by aggregate, retryable or pending (default)",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "type",
					Aliases: []string{"t"},
					Usage:   "Only events of this event type, newest first",
				},
				&cli.StringFlag{
					Name:  "aggregate-type",
					Usage: "Aggregate type of the event history to show (with --aggregate-id)",
				},
				&cli.StringFlag{
					Name:  "aggregate-id",
					Usage: "Aggregate ID of the event history to show (with --aggregate-type)",
				},
				&cli.BoolFlag{
					Name:  "retryable",
					Usage: "Only FAILED events the next retry cycle would pick up",
				},
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Value:   50,
					Usage:   "Maximum number of events to list",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				outboxStore, err := container.OutboxStore()
				if err != nil {
					return err
				}

				return commands.RunListOutboxEvents(
					ctx,
					outboxStore,
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.OutboxEventQuery{
						EventType:     cmd.String("type"),
						AggregateType: cmd.String("aggregate-type"),
						AggregateID:   cmd.String("aggregate-id"),
						Retryable:     cmd.Bool("retryable"),
						Limit:         int(cmd.Int("limit")),
						MaxRetries:    cfg.OutboxMaxRetries,
						RetryCooldown: cfg.OutboxRetryCooldown,
					},
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "cleanup-outbox",
			Usage: "Delete processed outbox events older than the retention",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "days",
					Aliases: []string{"d"},
					Usage:   "Delete events processed more than this many days ago (default: OUTBOX_RETENTION_DAYS)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				outboxStore, err := container.OutboxStore()
				if err != nil {
					return err
				}

				days := int(cmd.Int("days"))
				if !cmd.IsSet("days") {
					days = cfg.OutboxRetentionDays
				}

				return commands.RunCleanupOutbox(
					ctx,
					outboxStore,
					container.Logger(),
					commands.DefaultIO().Writer,
					days,
					cmd.String("format"),
				)
			},
		},
	}
}
