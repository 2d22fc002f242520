package server

import (
	"net/http"

	"admissions/internal/admissions"
	"admissions/pkg/types"

	"github.com/shopspring/decimal"
)

type paymentBody struct {
	Amount               decimal.Decimal `json:"amount"`
	DepositorName        string          `json:"depositor_name"`
	DepositorPhone       string          `json:"depositor_phone"`
	BankConfirmationPin  string          `json:"bank_confirmation_pin"`
	TransactionReference string          `json:"transaction_reference"`
	PaymentMethod        string          `json:"payment_method"`
	ApplicationFeePin    string          `json:"application_fee_pin"`
}

func (s *Service) handlePostPayment(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	var body paymentBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	payment, err := s.admissions.CreateWithApplicationPin(r.Context(), identity.UserID, admissions.CreatePaymentInput{
		Amount:               body.Amount,
		DepositorName:        body.DepositorName,
		DepositorPhone:       body.DepositorPhone,
		BankConfirmationPin:  body.BankConfirmationPin,
		TransactionReference: body.TransactionReference,
		PaymentMethod:        body.PaymentMethod,
		ApplicationFeePin:    body.ApplicationFeePin,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Payment record created successfully",
		"payment": payment,
	})
}

// handleGetPayments lists every payment, or only those in ?status=.
func (s *Service) handleGetPayments(w http.ResponseWriter, r *http.Request) {
	var (
		payments []*types.Payment
		err      error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		payments, err = s.admissions.PaymentsByStatus(r.Context(), types.PaymentStatus(status))
	} else {
		payments, err = s.admissions.AllPayments(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"payments": nonNilPayments(payments),
	})
}

func (s *Service) handleGetMyPayments(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	payments, err := s.admissions.PaymentsByBankUser(r.Context(), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"user_id":  identity.UserID,
		"payments": nonNilPayments(payments),
		"count":    len(payments),
	})
}

func (s *Service) handlePutPaymentStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	paymentID := r.PathValue("id")

	var body statusBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.admissions.UpdatePaymentStatus(r.Context(), identity.UserID, paymentID, types.PaymentStatus(body.Status)); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Payment status updated",
	})
}

func (s *Service) handleGetBankAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.admissions.Statistics(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pending, err := s.admissions.PaymentsByStatus(ctx, types.PaymentStatusPending)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	confirmed, err := s.admissions.PaymentsByStatus(ctx, types.PaymentStatusConfirmed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"total_payments":     stats.Confirmed.Total,
		"total_count":        stats.Confirmed.Count,
		"pending_payments":   nonNilPayments(pending),
		"confirmed_payments": nonNilPayments(confirmed),
		"statistics":         stats,
	})
}

func (s *Service) handleGetGeneratePin(w http.ResponseWriter, r *http.Request) {
	pin, err := s.admissions.GeneratePin()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"pin":     pin,
	})
}

type expirePinBody struct {
	Pin string `json:"pin"`
}

func (s *Service) handlePostExpirePin(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	var body expirePinBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Pin == "" {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: "PIN is required",
			Code:  string(admissions.CodeValidation),
		})
		return
	}

	payment, err := s.admissions.ExpirePin(r.Context(), identity.UserID, body.Pin)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "PIN expired successfully",
		"payment": payment,
	})
}

func (s *Service) handlePostCleanupPins(w http.ResponseWriter, r *http.Request) {
	count, err := s.admissions.CleanupExpiredPins(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Cleanup completed",
		"expired_count": count,
	})
}

func nonNilPayments(payments []*types.Payment) []*types.Payment {
	if payments == nil {
		return []*types.Payment{}
	}
	return payments
}
