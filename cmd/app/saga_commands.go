package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/orderflow/cmd/app/commands"
	"github.com/allisson/orderflow/internal/app"
	"github.com/allisson/orderflow/internal/config"
)

func getSagaCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "saga-create-order",
			Usage: "Create an order through the order saga",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "customer",
					Aliases:  []string{"c"},
					Required: true,
					Usage:    "Customer name",
				},
				&cli.StringFlag{
					Name:     "product",
					Aliases:  []string{"p"},
					Required: true,
					Usage:    "Product name",
				},
				&cli.StringFlag{
					Name:     "amount",
					Aliases:  []string{"a"},
					Required: true,
					Usage:    "Order amount (e.g., 199.90)",
				},
				&cli.BoolFlag{
					Name:  "fail-message",
					Value: false,
					Usage: "Make the notification step fail to trigger compensation",
				},
				&cli.BoolFlag{
					Name:  "fail-update",
					Value: false,
					Usage: "Make the status update step fail to trigger compensation",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.SagaOrderUseCase()
				if err != nil {
					return err
				}

				return commands.RunSagaCreateOrder(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("customer"),
					cmd.String("product"),
					cmd.String("amount"),
					cmd.Bool("fail-message"),
					cmd.Bool("fail-update"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "resume-saga",
			Usage: "Continue an unfinished saga from its persisted state",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Saga ID (UUID)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.SagaOrderUseCase()
				if err != nil {
					return err
				}

				return commands.RunResumeSaga(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "recover-sagas",
			Usage: "Resume stale sagas and delete finished ones past retention",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				sagaProcessor, err := container.SagaProcessor()
				if err != nil {
					return err
				}

				return commands.RunRecoverSagas(
					ctx,
					sagaProcessor,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
