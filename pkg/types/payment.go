package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusExpired   PaymentStatus = "expired"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusConfirmed, PaymentStatusExpired:
		return true
	}
	return false
}

const DefaultPaymentMethod = "bank"

type Payment struct {
	ID                   string          `db:"id" json:"id"`
	BankUserID           string          `db:"bank_user_id" json:"bank_user_id"`
	Amount               decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod        string          `db:"payment_method" json:"payment_method"`
	TransactionReference string          `db:"transaction_reference" json:"transaction_reference"`
	BankConfirmationPin  string          `db:"bank_confirmation_pin" json:"bank_confirmation_pin"`
	DepositorName        string          `db:"depositor_name" json:"depositor_name"`
	DepositorPhone       *string         `db:"depositor_phone" json:"depositor_phone"`
	ApplicationFeePin    string          `db:"application_fee_pin" json:"application_fee_pin"`
	PaymentStatus        PaymentStatus   `db:"payment_status" json:"payment_status"`
	PaymentDate          time.Time       `db:"payment_date" json:"payment_date"`
	PinUsed              bool            `db:"pin_used" json:"pin_used"`
	PinUsedByUserID      *string         `db:"pin_used_by_user_id" json:"pin_used_by_user_id"`
	PinUsedAt            *time.Time      `db:"pin_used_at" json:"pin_used_at"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentSummary is the payment identity shown to an applicant after a PIN check.
type PaymentSummary struct {
	ID                   string          `json:"id"`
	Amount               decimal.Decimal `json:"amount"`
	TransactionReference string          `json:"transaction_reference"`
	DepositorName        string          `json:"depositor_name"`
	PaymentDate          time.Time       `json:"payment_date"`
}

func (p *Payment) Summary() PaymentSummary {
	return PaymentSummary{
		ID:                   p.ID,
		Amount:               p.Amount,
		TransactionReference: p.TransactionReference,
		DepositorName:        p.DepositorName,
		PaymentDate:          p.PaymentDate,
	}
}

type PaymentWindow struct {
	Count int64           `db:"count" json:"count"`
	Total decimal.Decimal `db:"total" json:"total"`
}

type PaymentStatistics struct {
	Confirmed PaymentWindow `json:"confirmed"`
	Pending   PaymentWindow `json:"pending"`
	Today     PaymentWindow `json:"today"`
	Week      PaymentWindow `json:"week"`
}

// PinStatistics counts application PINs by lifecycle state. A PIN is expired
// once its payment is flagged expired or, still unclaimed, it outlives the
// validity window.
type PinStatistics struct {
	Issued  int64 `db:"issued" json:"total_pins_issued"`
	Used    int64 `db:"used" json:"pins_used"`
	Unused  int64 `db:"unused" json:"pins_unused"`
	Expired int64 `db:"expired" json:"pins_expired"`
}
