package admissions

import (
	"context"
	"errors"
	"fmt"

	"admissions/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Analytics struct {
	TotalApplications int64           `json:"total_applications"`
	Submitted         int64           `json:"submitted_applications"`
	Drafts            int64           `json:"draft_applications"`
	PendingInterviews int64           `json:"pending_interviews"`
	TotalPayments     decimal.Decimal `json:"total_payments"`
	ConfirmedPayments int64           `json:"confirmed_payments"`
}

func (s *Service) AllApplications(ctx context.Context) ([]*types.ApplicationListing, error) {
	apps, err := s.applications.AllApplications(ctx)
	if err != nil {
		return nil, s.internal(err, "failed to list applications", nil)
	}
	return apps, nil
}

func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	counts, err := s.applications.ApplicationCounts(ctx)
	if err != nil {
		return nil, s.internal(err, "failed to count applications", nil)
	}
	payments, err := s.payments.ConfirmedPaymentTotal(ctx)
	if err != nil {
		return nil, s.internal(err, "failed to total payments", nil)
	}

	return &Analytics{
		TotalApplications: counts.Total,
		Submitted:         counts.Submitted,
		Drafts:            counts.Drafts,
		PendingInterviews: counts.InterviewScheduled,
		TotalPayments:     payments.Total,
		ConfirmedPayments: payments.Count,
	}, nil
}

// SetApplicationStatus writes a review label such as interview_scheduled.
// The draft and submitted states belong to the applicant flow and are refused.
func (s *Service) SetApplicationStatus(ctx context.Context, actorID, applicationID string, status types.ApplicationStatus) (*types.Application, error) {
	switch status {
	case "":
		return nil, validationError("Missing required field: status")
	case types.ApplicationStatusDraft, types.ApplicationStatusSubmitted:
		return nil, validationError("Status %s is set by the applicant", status)
	}

	fields := logrus.Fields{"application_id": applicationID, "status": status}

	app, err := s.applications.Application(ctx, applicationID)
	if errors.Is(err, types.ErrApplicationNotFound) {
		return nil, newError(CodeNotFound, "Application not found")
	}
	if err != nil {
		return nil, s.internal(err, "failed to load application", fields)
	}
	if app.ApplicationStatus == types.ApplicationStatusDraft {
		return nil, newError(CodeConflict, "Application has not been submitted")
	}

	if err := s.applications.UpdateApplicationStatus(ctx, applicationID, status); err != nil {
		return nil, s.internal(err, "failed to update application status", fields)
	}
	app.ApplicationStatus = status

	s.notify(ctx, app.UserID, types.NotificationApplicationStatus,
		fmt.Sprintf("Your application status has been updated to %s", status))
	s.audit(ctx, actorID, "update_application_status", map[string]any{
		"application_id": applicationID,
		"status":         string(status),
	})
	return app, nil
}

func (s *Service) PinStatistics(ctx context.Context) (*types.PinStatistics, error) {
	validSince := s.now().UTC().AddDate(0, 0, -PinValidityDays)
	stats, err := s.payments.PinStatistics(ctx, validSince)
	if err != nil {
		return nil, s.internal(err, "failed to count application pins", nil)
	}
	return stats, nil
}

// PinAudit pages through PIN audit entries, newest first. A non-positive limit
// means DefaultPinAuditLimit; limits above MaxPinAuditLimit are clamped.
func (s *Service) PinAudit(ctx context.Context, limit, offset int) ([]*types.PinAuditEntry, error) {
	if offset < 0 {
		return nil, validationError("offset must not be negative")
	}
	if limit <= 0 {
		limit = DefaultPinAuditLimit
	}
	limit = min(limit, MaxPinAuditLimit)

	if s.auditTrail == nil {
		return []*types.PinAuditEntry{}, nil
	}

	entries, err := s.auditTrail.PinAudit(ctx, pinAuditActions, limit, offset)
	if err != nil {
		return nil, s.internal(err, "failed to read pin audit", logrus.Fields{"limit": limit, "offset": offset})
	}
	return entries, nil
}
