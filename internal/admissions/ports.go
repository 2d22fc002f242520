package admissions

import (
	"context"
	"io"
	"time"

	"admissions/pkg/types"
)

// Stores return the sentinel errors from pkg/types (optionally wrapped) for
// missing rows and uniqueness violations; anything else is an infrastructure failure.

type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *types.Payment) error
	PinIssued(ctx context.Context, pin string) (bool, error)
	ConfirmedPaymentByPin(ctx context.Context, pin string) (*types.Payment, error)
	Payment(ctx context.Context, paymentID string) (*types.Payment, error)
	// ClaimPin assigns the payment's PIN to userID only if it is still unassigned
	// and the payment is still confirmed. It reports whether this call performed
	// the assignment.
	ClaimPin(ctx context.Context, paymentID, userID string, at time.Time) (bool, error)
	MarkPinUsed(ctx context.Context, paymentID string, at time.Time) error
	PaymentsByStatus(ctx context.Context, status types.PaymentStatus) ([]*types.Payment, error)
	PaymentsByBankUser(ctx context.Context, bankUserID string) ([]*types.Payment, error)
	AllPayments(ctx context.Context) ([]*types.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID string, status types.PaymentStatus) error
	ExpirePin(ctx context.Context, pin string) (*types.Payment, error)
	ExpireStalePins(ctx context.Context, paidBefore time.Time) (int64, error)
	PaymentStatistics(ctx context.Context, dayStart, weekStart time.Time) (*types.PaymentStatistics, error)
	ConfirmedPaymentTotal(ctx context.Context) (types.PaymentWindow, error)
	PinStatistics(ctx context.Context, validSince time.Time) (*types.PinStatistics, error)
}

type ApplicationStore interface {
	// StartDraft resumes the user's draft or creates app as a new draft. It reports
	// whether an existing draft was resumed.
	StartDraft(ctx context.Context, app *types.Application) (*types.Application, bool, error)
	// UpsertDraft behaves like StartDraft but overwrites program type and form data on resume.
	UpsertDraft(ctx context.Context, app *types.Application) (*types.Application, error)
	// SaveSubmission atomically resubmits the user's latest submitted application
	// (replacing its responses) or inserts a new submitted one. It reports whether
	// this was a resubmission.
	SaveSubmission(ctx context.Context, userID string, formData types.FormData, responses []*types.ApplicationResponse, at time.Time) (*types.Application, bool, error)
	// AssignApplicationNumber sets the number once and returns the stored value.
	AssignApplicationNumber(ctx context.Context, applicationID string) (string, error)
	LatestSubmittedByUser(ctx context.Context, userID string) (*types.Application, error)
	ApplicationsByUser(ctx context.Context, userID string) ([]*types.Application, error)
	AllApplications(ctx context.Context) ([]*types.ApplicationListing, error)
	Application(ctx context.Context, applicationID string) (*types.Application, error)
	UpdateApplicationStatus(ctx context.Context, applicationID string, status types.ApplicationStatus) error
	ApplicationCounts(ctx context.Context) (*types.ApplicationCounts, error)
}

type ResponseStore interface {
	// ResponsesByApplication returns responses joined with their question, in catalog order.
	ResponsesByApplication(ctx context.Context, applicationID string) ([]*types.ApplicationResponse, error)
}

type ProgressStore interface {
	// SaveProgress upserts by user id. FilesMetadata on progress is layered over the
	// stored map; keys absent from the call are kept. Returns the merged row.
	SaveProgress(ctx context.Context, progress *types.ApplicationProgress) (*types.ApplicationProgress, error)
	AttachFile(ctx context.Context, userID, questionKey string, file types.FileMetadata) (*types.ApplicationProgress, error)
	Progress(ctx context.Context, userID string) (*types.ApplicationProgress, error)
	ClearProgress(ctx context.Context, userID string) error
}

type UserStore interface {
	User(ctx context.Context, userID string) (*types.User, error)
	UserByEmail(ctx context.Context, email string) (*types.User, error)
	CreateUser(ctx context.Context, user *types.User) error
}

type QuestionCatalog interface {
	ActiveQuestions(ctx context.Context) ([]*types.Question, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID, kind, message string) error
}

type Auditor interface {
	Record(ctx context.Context, userID, action string, details map[string]any) error
}

// AuditTrail reads back PIN audit entries, newest first.
type AuditTrail interface {
	PinAudit(ctx context.Context, actions []string, limit, offset int) ([]*types.PinAuditEntry, error)
}

// ApplicationConfirmation is everything the confirmation email renders.
type ApplicationConfirmation struct {
	Applicant         *types.User
	Application       *types.Application
	ApplicationNumber string
	Categories        []ResponseCategory
}

type Mailer interface {
	SendApplicationConfirmation(ctx context.Context, msg *ApplicationConfirmation) error
}

// FileStorage stores body under name and returns its public URL.
type FileStorage interface {
	Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error)
}
