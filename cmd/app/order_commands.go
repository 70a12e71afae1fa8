package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/orderflow/cmd/app/commands"
	"github.com/allisson/orderflow/internal/app"
	"github.com/allisson/orderflow/internal/config"
)

func getOrderCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-order",
			Usage: "Create a confirmed order and its outbox event in one transaction",
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
					Name:  "simulate-failure",
					Value: false,
					Usage: "Fail after both writes to demonstrate the rollback",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.OutboxOrderUseCase()
				if err != nil {
					return err
				}

				return commands.RunCreateOrder(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("customer"),
					cmd.String("product"),
					cmd.String("amount"),
					cmd.Bool("simulate-failure"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "cancel-order",
			Usage: "Cancel an order and record its cancellation event",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Order ID (UUID)",
				},
				&cli.StringFlag{
					Name:     "reason",
					Aliases:  []string{"r"},
					Required: true,
					Usage:    "Cancellation reason",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.OutboxOrderUseCase()
				if err != nil {
					return err
				}

				return commands.RunCancelOrder(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("reason"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "create-orders",
			Usage: "Create several orders in a single all-or-nothing transaction",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "count",
					Aliases: []string{"n"},
					Value:   3,
					Usage:   "Number of orders to create",
				},
				&cli.StringFlag{
					Name:     "customer",
					Aliases:  []string{"c"},
					Required: true,
					Usage:    "Customer name",
				},
				&cli.BoolFlag{
					Name:  "simulate-failure",
					Value: false,
					Usage: "Fail on the last order to demonstrate the rollback",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.OutboxOrderUseCase()
				if err != nil {
					return err
				}

				return commands.RunCreateOrders(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("count")),
					cmd.String("customer"),
					cmd.Bool("simulate-failure"),
					cmd.String("format"),
				)
			},
		},
	}
}
