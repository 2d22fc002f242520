package admissions

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// PinValidityDays is how long a confirmed PIN can be used after its payment date.
	PinValidityDays = 30

	DefaultMaxUploadBytes int64 = 10 << 20

	maxPinAttempts = 5

	DefaultPinAuditLimit = 100
	MaxPinAuditLimit     = 500
)

// Audit actions that concern an application PIN.
const (
	ActionCreatePaymentWithPin = "create_payment_with_pin"
	ActionVerifyPin            = "verify_application_pin"
	ActionStartWithPin         = "start_application_with_pin"
	ActionExpirePin            = "expire_pin"
)

var pinAuditActions = []string{
	ActionCreatePaymentWithPin,
	ActionVerifyPin,
	ActionStartWithPin,
	ActionExpirePin,
}

// Metrics receives outcome counts. A nil Metrics is valid.
type Metrics interface {
	PinVerification(outcome Code)
	PaymentCreated()
	Submission(resubmission bool)
}

type Dependencies struct {
	Payments     PaymentStore
	Applications ApplicationStore
	Responses    ResponseStore
	Progress     ProgressStore
	Users        UserStore
	Questions    QuestionCatalog
	Notifier     Notifier
	Auditor      Auditor
	AuditTrail   AuditTrail
	Mailer       Mailer
	Files        FileStorage
}

type Service struct {
	logger *logrus.Logger

	payments     PaymentStore
	applications ApplicationStore
	responses    ResponseStore
	progress     ProgressStore
	users        UserStore
	questions    QuestionCatalog
	notifier     Notifier
	auditor      Auditor
	auditTrail   AuditTrail
	mailer       Mailer
	files        FileStorage

	metrics        Metrics
	now            func() time.Time
	generatePin    func() (string, error)
	maxUploadBytes int64
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithPinGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		s.generatePin = gen
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func New(logger *logrus.Logger, deps Dependencies, opts ...Option) *Service {
	s := &Service{
		logger:         logger,
		payments:       deps.Payments,
		applications:   deps.Applications,
		responses:      deps.Responses,
		progress:       deps.Progress,
		users:          deps.Users,
		questions:      deps.Questions,
		notifier:       deps.Notifier,
		auditor:        deps.Auditor,
		auditTrail:     deps.AuditTrail,
		mailer:         deps.Mailer,
		files:          deps.Files,
		now:            time.Now,
		generatePin:    GeneratePin,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PinExpiry is the last instant a PIN issued with paymentDate is accepted.
func PinExpiry(paymentDate time.Time) time.Time {
	return paymentDate.UTC().AddDate(0, 0, PinValidityDays)
}

func (s *Service) audit(ctx context.Context, userID, action string, details map[string]any) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, userID, action, details); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"action":  action,
		}).Warn("failed to write audit entry")
	}
}

func (s *Service) notify(ctx context.Context, userID, kind, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, kind, message); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"type":    kind,
		}).Warn("failed to create notification")
	}
}

// internal logs err with fields and returns a generic coded error.
func (s *Service) internal(err error, msg string, fields logrus.Fields) *Error {
	s.logger.WithError(err).WithFields(fields).Error(msg)
	return internalError(msg, err)
}
