package main

import (
	"fmt"

	"admissions/internal/seed"

	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the question catalog and staff users",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "password",
			Usage:    "Password given to seeded staff users",
			EnvVars:  []string{"SEED_PASSWORD"},
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "skip-users",
			Usage: "Only seed questions",
		},
	},
	Action: func(cCtx *cli.Context) error {
		config, err := loadConfig(cCtx, configOptions{requireDatabase: true})
		if err != nil {
			return err
		}
		logger := newLogger(config)

		b, err := postgresBackend(cCtx.Context, config)
		if err != nil {
			return err
		}
		defer b.close()

		if err := seed.SeedQuestions(cCtx.Context, b.questions); err != nil {
			return fmt.Errorf("failed to seed questions: %w", err)
		}
		logger.WithField("questions", len(seed.Questions)).Info("seeded questions")

		if cCtx.Bool("skip-users") {
			return nil
		}

		created, err := seed.SeedStaffUsers(cCtx.Context, b.deps.Users, cCtx.String("password"))
		if err != nil {
			return fmt.Errorf("failed to seed staff users: %w", err)
		}
		logger.WithField("created", created).Info("seeded staff users")

		return nil
	},
}
