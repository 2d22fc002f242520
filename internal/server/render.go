package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"admissions/internal/admissions"
	"admissions/internal/auth"
	"admissions/pkg/types"

	"github.com/sirupsen/logrus"
)

var (
	errInvalidJSON = errors.New("invalid json body")
	errInvalidForm = errors.New("invalid form body")
)

type errorResponse struct {
	Success bool                  `json:"success"`
	Error   string                `json:"error"`
	Code    string                `json:"code,omitempty"`
	Payment *types.PaymentSummary `json:"payment,omitempty"`
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

func (s *Service) writeMessage(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *auth.ValidationError
	switch {
	case errors.As(err, &validation):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: validation.Message, Code: string(admissions.CodeValidation)})
		return
	case errors.Is(err, errInvalidJSON):
		s.writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	case errors.Is(err, errInvalidForm):
		s.writeMessage(w, http.StatusBadRequest, "Invalid form body")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case errors.Is(err, auth.ErrInvalidResetToken):
		s.writeMessage(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	case errors.Is(err, auth.ErrPasswordResetsOff):
		s.writeMessage(w, http.StatusServiceUnavailable, "Password reset is not available")
		return
	case errors.Is(err, types.ErrDuplicateEmail):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: "Email already registered", Code: string(admissions.CodeConflict)})
		return
	}

	e := admissions.AsError(err)
	status := statusFor(e.Code)

	body := errorResponse{Error: e.Message, Code: string(e.Code)}
	if e.Payment != nil {
		summary := e.Payment.Summary()
		body.Payment = &summary
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		body.Error = "Internal server error"
		if e.Message != "" && e.Message != "unexpected error" {
			body.Error = e.Message
		}
	}

	s.writeJSON(w, status, body)
}

func statusFor(code admissions.Code) int {
	switch code {
	case admissions.CodeValidation, admissions.CodeInvalidFormat:
		return http.StatusUnprocessableEntity
	case admissions.CodePinNotFound, admissions.CodeNotFound:
		return http.StatusNotFound
	case admissions.CodePinUsed:
		return http.StatusForbidden
	case admissions.CodeConflict:
		return http.StatusConflict
	case admissions.CodePinExpired:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidJSON
	}
	return nil
}
