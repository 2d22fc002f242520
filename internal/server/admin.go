package server

import (
	"net/http"
	"strconv"

	"admissions/internal/admissions"
	"admissions/pkg/types"
)

func (s *Service) handleGetAdminApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.admissions.AllApplications(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if apps == nil {
		apps = []*types.ApplicationListing{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"applications": apps,
	})
}

func (s *Service) handleGetAdminAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := s.admissions.Analytics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"analytics": analytics,
	})
}

func (s *Service) handlePutApplicationStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setApplicationStatus(w, r, r.PathValue("id"), types.ApplicationStatus(body.Status), "Application status updated")
}

func (s *Service) handlePostApproveInterview(w http.ResponseWriter, r *http.Request) {
	s.applyReviewLabel(w, r, types.ApplicationStatusInterviewScheduled, "Interview approved")
}

func (s *Service) handlePostIssueOffer(w http.ResponseWriter, r *http.Request) {
	s.applyReviewLabel(w, r, types.ApplicationStatusOfferIssued, "Offer letter issued")
}

func (s *Service) applyReviewLabel(w http.ResponseWriter, r *http.Request, status types.ApplicationStatus, message string) {
	var body applicationRefBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.ApplicationID == "" {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: "Missing required field: application_id",
			Code:  string(admissions.CodeValidation),
		})
		return
	}

	s.setApplicationStatus(w, r, body.ApplicationID, status, message)
}

func (s *Service) setApplicationStatus(w http.ResponseWriter, r *http.Request, applicationID string, status types.ApplicationStatus, message string) {
	identity, _ := identityFromContext(r.Context())

	app, err := s.admissions.SetApplicationStatus(r.Context(), identity.UserID, applicationID, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     message,
		"application": app,
	})
}

func (s *Service) handleGetPinStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admissions.PinStatistics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"statistics": stats,
	})
}

func (s *Service) handleGetPinAudit(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.queryInt(w, r, "limit", admissions.DefaultPinAuditLimit)
	if !ok {
		return
	}
	offset, ok := s.queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	if limit <= 0 {
		limit = admissions.DefaultPinAuditLimit
	}
	limit = min(limit, admissions.MaxPinAuditLimit)

	entries, err := s.admissions.PinAudit(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*types.PinAuditEntry{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"audit":   entries,
		"pagination": map[string]int{
			"limit":  limit,
			"offset": offset,
		},
	})
}

// queryInt reads an optional integer query parameter. On a malformed value it
// writes a 422 and reports false.
func (s *Service) queryInt(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: name + " must be an integer",
			Code:  string(admissions.CodeValidation),
		})
		return 0, false
	}
	return v, true
}
