package main

import (
	"fmt"

	"admissions/internal/db"

	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Apply the database schema",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "print",
			Usage: "Print the schema instead of applying it",
		},
	},
	Action: func(cCtx *cli.Context) error {
		if cCtx.Bool("print") {
			fmt.Fprint(cCtx.App.Writer, db.Schema())
			return nil
		}

		config, err := loadConfig(cCtx, configOptions{requireDatabase: true})
		if err != nil {
			return err
		}
		logger := newLogger(config)

		pool, err := db.Connect(cCtx.Context, config)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(cCtx.Context, pool); err != nil {
			return err
		}

		logger.Info("schema applied")
		return nil
	},
}
