package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admissions/internal/auth"
	"admissions/internal/metrics"
	"admissions/internal/seed"
	"admissions/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Start the admissions API server",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "memory",
			Usage: "Keep all state in process memory instead of Postgres, seeded with the question catalog and staff users",
		},
		&cli.StringFlag{
			Name:    "seed-password",
			Usage:   "Password for seeded staff users when --memory is set",
			EnvVars: []string{"SEED_PASSWORD"},
			Value:   "change-me-please",
		},
	},
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, cancel := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	memory := cCtx.Bool("memory")

	config, err := loadConfig(cCtx, configOptions{requireDatabase: !memory, requireJWT: true})
	if err != nil {
		return err
	}

	logger := newLogger(config)

	var b *backend
	if memory {
		b = memoryBackend()
		if err := seed.SeedQuestions(ctx, b.questions); err != nil {
			return fmt.Errorf("failed to seed questions: %w", err)
		}
		created, err := seed.SeedStaffUsers(ctx, b.deps.Users, cCtx.String("seed-password"))
		if err != nil {
			return fmt.Errorf("failed to seed staff users: %w", err)
		}
		logger.WithField("staff_users", created).Warn("running with in-memory storage, data is lost on exit")
	} else {
		b, err = postgresBackend(ctx, config)
		if err != nil {
			return err
		}
	}
	defer b.close()

	files, err := newFileStorage(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to initialize file storage: %w", err)
	}
	b.deps.Files = files

	mailer, err := newMailer(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}
	b.deps.Mailer = mailer

	m := metrics.New(prometheus.DefaultRegisterer)
	admissionsSvc := newAdmissionsService(logger, config, b, m)

	tokens, err := auth.NewTokens(config.JWTSecret, config.JWTIssuer, tokenTTL(config))
	if err != nil {
		return fmt.Errorf("failed to initialize tokens: %w", err)
	}
	accounts := newAccounts(logger, config, b, tokens, mailer)

	service, err := server.New(config, logger, admissionsSvc, accounts, b.notifications, m, prometheus.DefaultGatherer)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", config.ServerPort).Info("starting server")
		errCh <- service.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	}

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := service.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
