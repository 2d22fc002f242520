package admissions

import (
	"context"
	"errors"
	"time"

	"admissions/pkg/types"

	"github.com/sirupsen/logrus"
)

const (
	msgPinNotFound = "Invalid PIN. Please check your payment receipt and try again."
	msgPinExpired  = "This PIN has expired. Please make a new payment to get a fresh PIN."
	msgPinUsed     = "This PIN has already been used by another applicant."
)

type PinVerification struct {
	Payment   *types.Payment
	Pin       string
	ExpiresAt time.Time

	// Claimed is true when this call assigned the PIN to the caller.
	Claimed bool
}

// ValidatePinFormat checks only the shape of raw and returns the canonical PIN.
func (s *Service) ValidatePinFormat(raw string) (string, error) {
	return CanonicalPin(raw)
}

// VerifyPin checks pin against the ledger and assigns it to userID on first use.
func (s *Service) VerifyPin(ctx context.Context, userID, rawPin string) (*PinVerification, error) {
	v, err := s.verifyPin(ctx, userID, rawPin)
	if s.metrics != nil {
		if err != nil {
			s.metrics.PinVerification(CodeOf(err))
		} else {
			s.metrics.PinVerification(OutcomeOK)
		}
	}
	if err != nil {
		return nil, err
	}

	s.audit(ctx, userID, ActionVerifyPin, map[string]any{
		"payment_id": v.Payment.ID,
		"pin":        v.Pin,
		"claimed":    v.Claimed,
	})
	return v, nil
}

func (s *Service) verifyPin(ctx context.Context, userID, rawPin string) (*PinVerification, error) {
	pin, err := CanonicalPin(rawPin)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.ConfirmedPaymentByPin(ctx, pin)
	if errors.Is(err, types.ErrPaymentNotFound) {
		return nil, newError(CodePinNotFound, msgPinNotFound)
	}
	if err != nil {
		return nil, s.internal(err, "failed to look up application pin", logrus.Fields{"pin": pin})
	}

	v := &PinVerification{
		Payment:   payment,
		Pin:       pin,
		ExpiresAt: PinExpiry(payment.PaymentDate),
	}

	now := s.now()
	if now.After(v.ExpiresAt) {
		return nil, &Error{Code: CodePinExpired, Message: msgPinExpired, Payment: payment}
	}

	if payment.PinUsedByUserID != nil {
		return ownership(v, userID)
	}

	claimed, err := s.payments.ClaimPin(ctx, payment.ID, userID, now.UTC())
	if err != nil {
		return nil, s.internal(err, "failed to assign application pin", logrus.Fields{
			"payment_id": payment.ID,
			"user_id":    userID,
		})
	}
	if claimed {
		at := now.UTC()
		payment.PinUsed = true
		payment.PinUsedByUserID = &userID
		payment.PinUsedAt = &at
		v.Claimed = true
		return v, nil
	}

	// Lost the race: the PIN was assigned or expired between the read and the update.
	fresh, err := s.payments.Payment(ctx, payment.ID)
	if err != nil {
		return nil, s.internal(err, "failed to reload payment", logrus.Fields{"payment_id": payment.ID})
	}
	if fresh.PaymentStatus == types.PaymentStatusExpired {
		return nil, &Error{Code: CodePinExpired, Message: msgPinExpired, Payment: fresh}
	}
	if fresh.PaymentStatus != types.PaymentStatusConfirmed {
		return nil, newError(CodePinNotFound, msgPinNotFound)
	}
	if fresh.PinUsedByUserID == nil {
		return nil, s.internal(errors.New("claim lost without an owner"), "failed to assign application pin", logrus.Fields{"payment_id": payment.ID})
	}
	v.Payment = fresh
	return ownership(v, userID)
}

func ownership(v *PinVerification, userID string) (*PinVerification, error) {
	if *v.Payment.PinUsedByUserID != userID {
		return nil, newError(CodePinUsed, msgPinUsed)
	}
	return v, nil
}
