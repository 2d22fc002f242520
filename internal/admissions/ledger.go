package admissions

import (
	"context"
	"errors"
	"time"

	"admissions/internal/utils"
	"admissions/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CreatePaymentInput struct {
	Amount               decimal.Decimal
	DepositorName        string
	DepositorPhone       string
	BankConfirmationPin  string
	TransactionReference string
	PaymentMethod        string

	// ApplicationFeePin is optional; one is generated when empty.
	ApplicationFeePin string
}

func (in *CreatePaymentInput) validate() error {
	required := []struct {
		field   string
		missing bool
	}{
		{"amount", in.Amount.IsZero()},
		{"depositor_name", in.DepositorName == ""},
		{"bank_confirmation_pin", in.BankConfirmationPin == ""},
		{"transaction_reference", in.TransactionReference == ""},
	}
	for _, r := range required {
		if r.missing {
			return validationError("Missing required field: %s", r.field)
		}
	}
	if in.Amount.IsNegative() {
		return validationError("Amount must be greater than zero")
	}
	return nil
}

// CreateWithApplicationPin records a confirmed bank payment and issues its application PIN.
func (s *Service) CreateWithApplicationPin(ctx context.Context, bankUserID string, in CreatePaymentInput) (*types.Payment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	supplied := in.ApplicationFeePin != ""
	var suppliedPin string
	if supplied {
		pin, err := CanonicalPin(in.ApplicationFeePin)
		if err != nil {
			return nil, err
		}
		suppliedPin = pin
	}

	method := in.PaymentMethod
	if method == "" {
		method = types.DefaultPaymentMethod
	}

	var phone *string
	if in.DepositorPhone != "" {
		phone = utils.StringPtr(in.DepositorPhone)
	}

	fields := logrus.Fields{
		"bank_user_id":          bankUserID,
		"transaction_reference": in.TransactionReference,
	}

	for attempt := 0; attempt < maxPinAttempts; attempt++ {
		pin := suppliedPin
		if !supplied {
			generated, err := s.generatePin()
			if err != nil {
				return nil, s.internal(err, "failed to generate application pin", fields)
			}
			pin = generated
		}

		issued, err := s.payments.PinIssued(ctx, pin)
		if err != nil {
			return nil, s.internal(err, "failed to check application pin", fields)
		}
		if issued {
			if supplied {
				return nil, newError(CodeConflict, "Application PIN is already assigned to another payment")
			}
			continue
		}

		now := s.now().UTC()
		payment := &types.Payment{
			ID:                   utils.NanoID(),
			BankUserID:           bankUserID,
			Amount:               in.Amount,
			PaymentMethod:        method,
			TransactionReference: in.TransactionReference,
			BankConfirmationPin:  in.BankConfirmationPin,
			DepositorName:        in.DepositorName,
			DepositorPhone:       phone,
			ApplicationFeePin:    pin,
			PaymentStatus:        types.PaymentStatusConfirmed,
			PaymentDate:          now,
			CreatedAt:            now,
			UpdatedAt:            now,
		}

		err = s.payments.CreatePayment(ctx, payment)
		switch {
		case err == nil:
		case errors.Is(err, types.ErrDuplicatePin):
			if supplied {
				return nil, newError(CodeConflict, "Application PIN is already assigned to another payment")
			}
			continue
		case errors.Is(err, types.ErrDuplicateTransactionReference):
			return nil, newError(CodeConflict, "A payment with this transaction reference already exists")
		default:
			return nil, s.internal(err, "failed to create payment", fields)
		}

		if s.metrics != nil {
			s.metrics.PaymentCreated()
		}
		s.audit(ctx, bankUserID, ActionCreatePaymentWithPin, map[string]any{
			"payment_id":            payment.ID,
			"transaction_reference": payment.TransactionReference,
			"amount":                payment.Amount.StringFixed(2),
		})

		return payment, nil
	}

	return nil, s.internal(errors.New("pin space exhausted"), "failed to allocate a unique application pin", fields)
}

// Statistics returns count and sum for confirmed and pending payments plus today and the trailing week.
func (s *Service) Statistics(ctx context.Context) (*types.PaymentStatistics, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := now.AddDate(0, 0, -7)

	stats, err := s.payments.PaymentStatistics(ctx, dayStart, weekStart)
	if err != nil {
		return nil, s.internal(err, "failed to load payment statistics", nil)
	}
	return stats, nil
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, actorID, paymentID string, status types.PaymentStatus) error {
	if !status.Valid() {
		return validationError("Invalid payment status: %s", status)
	}

	err := s.payments.UpdatePaymentStatus(ctx, paymentID, status)
	if errors.Is(err, types.ErrPaymentNotFound) {
		return newError(CodeNotFound, "Payment not found")
	}
	if errors.Is(err, types.ErrDuplicatePin) {
		return newError(CodeConflict, "Application PIN is already assigned to another confirmed payment")
	}
	if err != nil {
		return s.internal(err, "failed to update payment status", logrus.Fields{"payment_id": paymentID})
	}

	s.audit(ctx, actorID, "update_payment_status", map[string]any{
		"payment_id": paymentID,
		"status":     string(status),
	})
	return nil
}

func (s *Service) Payment(ctx context.Context, paymentID string) (*types.Payment, error) {
	payment, err := s.payments.Payment(ctx, paymentID)
	if errors.Is(err, types.ErrPaymentNotFound) {
		return nil, newError(CodeNotFound, "Payment not found")
	}
	if err != nil {
		return nil, s.internal(err, "failed to load payment", logrus.Fields{"payment_id": paymentID})
	}
	return payment, nil
}

func (s *Service) PaymentsByStatus(ctx context.Context, status types.PaymentStatus) ([]*types.Payment, error) {
	if !status.Valid() {
		return nil, validationError("Invalid payment status: %s", status)
	}
	payments, err := s.payments.PaymentsByStatus(ctx, status)
	if err != nil {
		return nil, s.internal(err, "failed to list payments", logrus.Fields{"status": status})
	}
	return payments, nil
}

func (s *Service) PaymentsByBankUser(ctx context.Context, bankUserID string) ([]*types.Payment, error) {
	payments, err := s.payments.PaymentsByBankUser(ctx, bankUserID)
	if err != nil {
		return nil, s.internal(err, "failed to list payments", logrus.Fields{"bank_user_id": bankUserID})
	}
	return payments, nil
}

func (s *Service) AllPayments(ctx context.Context) ([]*types.Payment, error) {
	payments, err := s.payments.AllPayments(ctx)
	if err != nil {
		return nil, s.internal(err, "failed to list payments", nil)
	}
	return payments, nil
}

// ExpirePin flips the payment carrying pin to expired.
func (s *Service) ExpirePin(ctx context.Context, actorID, rawPin string) (*types.Payment, error) {
	pin, err := CanonicalPin(rawPin)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.ExpirePin(ctx, pin)
	if errors.Is(err, types.ErrPaymentNotFound) {
		return nil, newError(CodePinNotFound, "No active payment carries this PIN")
	}
	if err != nil {
		return nil, s.internal(err, "failed to expire pin", logrus.Fields{"pin": pin})
	}

	s.audit(ctx, actorID, ActionExpirePin, map[string]any{
		"payment_id": payment.ID,
		"pin":        pin,
	})
	return payment, nil
}

// CleanupExpiredPins expires every confirmed payment older than the PIN validity window.
func (s *Service) CleanupExpiredPins(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -PinValidityDays)
	n, err := s.payments.ExpireStalePins(ctx, cutoff)
	if err != nil {
		return 0, s.internal(err, "failed to clean up expired pins", logrus.Fields{"cutoff": cutoff})
	}
	if n > 0 {
		s.logger.WithFields(logrus.Fields{"expired": n, "cutoff": cutoff}).Info("expired stale application pins")
	}
	return n, nil
}

func (s *Service) GeneratePin() (string, error) {
	pin, err := s.generatePin()
	if err != nil {
		return "", s.internal(err, "failed to generate application pin", nil)
	}
	return pin, nil
}
