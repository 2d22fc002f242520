package types

import "time"

const (
	NotificationApplicationSubmitted = "application_submitted"
	NotificationApplicationStatus    = "application_status"
)

type Notification struct {
	ID      string    `db:"id" json:"id"`
	UserID  string    `db:"user_id" json:"user_id"`
	Type    string    `db:"type" json:"type"`
	Message string    `db:"message" json:"message"`
	IsRead  bool      `db:"is_read" json:"is_read"`
	SentAt  time.Time `db:"sent_at" json:"sent_at"`
}

type AuditEntry struct {
	ID        string         `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"user_id"`
	Action    string         `db:"action" json:"action"`
	Details   map[string]any `db:"details" json:"details"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// PinAuditEntry is an audit row about a PIN, joined with the payment it names
// and the acting user's email.
type PinAuditEntry struct {
	AuditEntry
	PaymentID            *string `db:"payment_id" json:"payment_id"`
	TransactionReference *string `db:"transaction_reference" json:"transaction_reference"`
	DepositorName        *string `db:"depositor_name" json:"depositor_name"`
	Email                *string `db:"email" json:"email"`
}
