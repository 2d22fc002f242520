package main

import (
	"context"
	"fmt"
	"io"

	"admissions/internal/admissions"
	"admissions/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

const cliActor = "cli"

var pinCommand = &cli.Command{
	Name:  "pin",
	Usage: "Application PIN maintenance",
	Subcommands: []*cli.Command{
		{
			Name:  "generate",
			Usage: "Print freshly generated PINs without issuing them",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "count",
					Value: 1,
				},
			},
			Action: func(cCtx *cli.Context) error {
				for range cCtx.Int("count") {
					pin, err := admissions.GeneratePin()
					if err != nil {
						return err
					}
					fmt.Fprintln(cCtx.App.Writer, pin)
				}
				return nil
			},
		},
		{
			Name:      "show",
			Usage:     "Dump the confirmed payment a PIN belongs to",
			ArgsUsage: "<pin>",
			Action: func(cCtx *cli.Context) error {
				pin, err := admissions.CanonicalPin(cCtx.Args().First())
				if err != nil {
					return err
				}

				_, b, err := pinBackend(cCtx)
				if err != nil {
					return err
				}
				defer b.close()

				return showPayment(cCtx.Context, cCtx.App.Writer, b.deps.Payments, pin)
			},
		},
		{
			Name:      "expire",
			Usage:     "Expire a single PIN",
			ArgsUsage: "<pin>",
			Action: func(cCtx *cli.Context) error {
				config, b, err := pinBackend(cCtx)
				if err != nil {
					return err
				}
				defer b.close()

				svc := newAdmissionsService(newLogger(config), config, b, nil)

				payment, err := svc.ExpirePin(cCtx.Context, cliActor, cCtx.Args().First())
				if err != nil {
					return err
				}

				fmt.Fprintf(cCtx.App.Writer, "expired pin %s on payment %s\n", payment.ApplicationFeePin, payment.ID)
				return nil
			},
		},
		{
			Name:  "cleanup",
			Usage: "Expire every PIN older than the validity window",
			Action: func(cCtx *cli.Context) error {
				config, b, err := pinBackend(cCtx)
				if err != nil {
					return err
				}
				defer b.close()

				logger := newLogger(config)
				svc := newAdmissionsService(logger, config, b, nil)

				n, err := svc.CleanupExpiredPins(cCtx.Context)
				if err != nil {
					return err
				}

				logger.WithField("expired", n).Info("expired stale pins")
				return nil
			},
		},
	},
}

func pinBackend(cCtx *cli.Context) (*types.Config, *backend, error) {
	config, err := loadConfig(cCtx, configOptions{requireDatabase: true})
	if err != nil {
		return nil, nil, err
	}
	b, err := postgresBackend(cCtx.Context, config)
	if err != nil {
		return nil, nil, err
	}
	return config, b, nil
}

type pinLookup interface {
	ConfirmedPaymentByPin(ctx context.Context, pin string) (*types.Payment, error)
}

func showPayment(ctx context.Context, w io.Writer, payments pinLookup, pin string) error {
	payment, err := payments.ConfirmedPaymentByPin(ctx, pin)
	if err != nil {
		return err
	}

	pp.Fprintln(w, payment)
	fmt.Fprintf(w, "expires at %s\n", admissions.PinExpiry(payment.PaymentDate).Format("2006-01-02 15:04:05 MST"))
	return nil
}
