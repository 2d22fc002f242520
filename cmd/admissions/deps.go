package main

import (
	"context"
	"fmt"
	"time"

	"admissions/internal/admissions"
	"admissions/internal/admissions/memstore"
	"admissions/internal/auth"
	"admissions/internal/db"
	"admissions/internal/mailer"
	"admissions/internal/metrics"
	"admissions/internal/seed"
	"admissions/internal/server"
	"admissions/internal/storage"
	"admissions/internal/store"
	"admissions/pkg/types"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// backend is the set of stores a command runs against: Postgres, or process
// memory for local runs without a database.
type backend struct {
	deps          admissions.Dependencies
	notifications server.NotificationLister
	questions     seed.QuestionWriter
	resets        auth.PasswordResetStore
	close         func()
}

func postgresBackend(ctx context.Context, config *types.Config) (*backend, error) {
	pool, err := db.Connect(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return poolBackend(pool), nil
}

func poolBackend(pool *pgxpool.Pool) *backend {
	users := store.NewUserRepository(pool)
	applications := store.NewApplicationRepository(pool)
	notifications := store.NewNotificationRepository(pool)
	questions := store.NewQuestionRepository(pool)
	audit := store.NewAuditRepository(pool)

	return &backend{
		deps: admissions.Dependencies{
			Payments:     store.NewPaymentRepository(pool),
			Applications: applications,
			Responses:    applications,
			Progress:     store.NewProgressRepository(pool),
			Users:        users,
			Questions:    questions,
			Notifier:     notifications,
			Auditor:      audit,
			AuditTrail:   audit,
		},
		notifications: notifications,
		questions:     questions,
		resets:        users,
		close:         pool.Close,
	}
}

func memoryBackend() *backend {
	mem := memstore.New()
	return &backend{
		deps: admissions.Dependencies{
			Payments:     mem,
			Applications: mem,
			Responses:    mem,
			Progress:     mem,
			Users:        mem,
			Questions:    mem,
			Notifier:     mem,
			Auditor:      mem,
			AuditTrail:   mem,
		},
		notifications: mem,
		questions:     mem,
		resets:        mem,
		close:         func() {},
	}
}

func newFileStorage(ctx context.Context, config *types.Config) (admissions.FileStorage, error) {
	if config.StorageBackend == "s3" {
		awsConfig, err := loadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Storage(s3.NewFromConfig(awsConfig), config.S3Bucket, config.S3PublicURL), nil
	}
	return storage.NewLocalStorage(config.UploadDir, config.PublicBaseURL)
}

func newMailer(config *types.Config, logger *logrus.Logger) (*mailer.Mailer, error) {
	var sender mailer.Sender = mailer.NewLogSender(logger)
	if config.SMTPHost != "" {
		sender = mailer.NewSMTPSender(config.SMTPHost, config.SMTPPort, config.SMTPUser, config.SMTPPassword)
	}

	from := config.SMTPFrom
	if from == "" {
		from = config.SMTPUser
	}
	return mailer.New(logger, sender, from, config.SMTPFromName)
}

// newAdmissionsService wires the service over b. Files and Mailer may be nil
// for commands that never upload or submit.
func newAdmissionsService(logger *logrus.Logger, config *types.Config, b *backend, m *metrics.Metrics) *admissions.Service {
	opts := []admissions.Option{admissions.WithMaxUploadBytes(config.MaxUploadBytes)}
	if m != nil {
		opts = append(opts, admissions.WithMetrics(m))
	}
	return admissions.New(logger, b.deps, opts...)
}

func newAccounts(logger *logrus.Logger, config *types.Config, b *backend, tokens *auth.Tokens, m *mailer.Mailer) *auth.Accounts {
	opts := []auth.AccountsOption{auth.WithAuditor(b.deps.Auditor)}
	if m != nil {
		ttl := time.Duration(config.PasswordResetTTLMinutes) * time.Minute
		opts = append(opts, auth.WithPasswordResets(b.resets, m, config.PasswordResetURL, ttl))
	}
	return auth.NewAccounts(logger, b.deps.Users, tokens, opts...)
}

func tokenTTL(config *types.Config) time.Duration {
	if config.TokenTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(config.TokenTTLMinutes) * time.Minute
}
