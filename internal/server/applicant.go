package server

import (
	"net/http"
	"strings"
	"time"

	"admissions/internal/admissions"
	"admissions/pkg/types"
)

type pinBody struct {
	ApplicationPin string `json:"application_pin"`
}

func (s *Service) readPin(w http.ResponseWriter, r *http.Request) (string, bool) {
	var body pinBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return "", false
	}
	if strings.TrimSpace(body.ApplicationPin) == "" {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: "Application PIN is required",
			Code:  string(admissions.CodeValidation),
		})
		return "", false
	}
	return body.ApplicationPin, true
}

func (s *Service) handlePostValidatePin(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readPin(w, r)
	if !ok {
		return
	}

	pin, err := s.admissions.ValidatePinFormat(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "PIN format is valid",
		"pin":     pin,
	})
}

func (s *Service) handlePostVerifyPin(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	raw, ok := s.readPin(w, r)
	if !ok {
		return
	}

	v, err := s.admissions.VerifyPin(r.Context(), identity.UserID, raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "PIN verified successfully",
		"payment":    v.Payment.Summary(),
		"expires_at": v.ExpiresAt,
	})
}

func (s *Service) handlePostStartApplication(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	raw, ok := s.readPin(w, r)
	if !ok {
		return
	}

	started, err := s.admissions.StartWithPin(r.Context(), identity.UserID, raw)
	if err != nil {
		switch admissions.CodeOf(err) {
		case admissions.CodePinNotFound, admissions.CodePinExpired, admissions.CodeInvalidFormat:
			s.writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: "Invalid or expired PIN",
				Code:  string(admissions.CodeOf(err)),
			})
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "Application started successfully",
		"application_id": started.Application.ID,
		"application":    started.Application,
		"payment_info":   started.Payment,
		"resumed":        started.Resumed,
	})
}

type progressDraft struct {
	FormData       types.FormData      `json:"formData"`
	FilesMetadata  types.FilesMetadata `json:"filesMetadata"`
	CurrentStep    int                 `json:"currentStep"`
	CompletedSteps []int               `json:"completedSteps"`
	UpdatedAt      *time.Time          `json:"updated_at"`
}

func (s *Service) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	progress, err := s.admissions.Progress(r.Context(), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	draft := progressDraft{
		FormData:       progress.FormData,
		FilesMetadata:  progress.FilesMetadata,
		CurrentStep:    progress.CurrentStep,
		CompletedSteps: progress.CompletedSteps,
	}
	if !progress.LastSavedAt.IsZero() {
		draft.UpdatedAt = &progress.LastSavedAt
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"draft":   draft,
	})
}

func (s *Service) handlePostProgress(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	req, err := readDraft(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer req.close()

	saved, err := s.admissions.SaveProgress(r.Context(), identity.UserID, admissions.SaveProgressInput{
		FormData:       req.FormData,
		CurrentStep:    req.CurrentStep,
		CompletedSteps: req.CompletedSteps,
		Uploads:        req.Uploads,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "Progress saved",
		"files_metadata": saved.FilesMetadata,
	})
}

func (s *Service) handlePostUpload(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "No file provided")
		return
	}

	var f uploadForm
	if err := decoder.Decode(&f, r.MultipartForm.Value); err != nil {
		s.writeError(w, r, errInvalidForm)
		return
	}

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		s.writeMessage(w, http.StatusBadRequest, "No file provided")
		return
	}

	upload, file, err := openUpload("file", headers[0])
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "File upload error")
		return
	}
	defer func() { _ = file.Close() }()

	meta, err := s.admissions.UploadFile(r.Context(), identity.UserID, f.QuestionKey, upload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var questionKey *string
	if f.QuestionKey != "" {
		questionKey = &f.QuestionKey
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"file_metadata": meta,
		"question_key":  questionKey,
	})
}

func (s *Service) handlePostCreateApplication(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	if err := parseForm(r); err != nil {
		s.writeError(w, r, errInvalidForm)
		return
	}

	var f catalogForm
	if err := decoder.Decode(&f, r.Form); err != nil {
		s.writeError(w, r, errInvalidForm)
		return
	}

	documents, closer, err := formUploads(r)
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "File upload error")
		return
	}
	defer closer()

	formData := types.FormData{}
	for k, v := range f.FormData {
		formData[k] = v
	}

	app, err := s.admissions.CreateApplication(r.Context(), identity.UserID, admissions.CreateApplicationInput{
		ProgramType: f.ProgramType,
		FormData:    formData,
		Documents:   documents,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success":        true,
		"application_id": app.ID,
	})
}

func (s *Service) handlePostSubmitApplication(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	req, err := readDraft(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer req.close()

	submission, err := s.admissions.Submit(r.Context(), identity.UserID, admissions.SubmitInput{
		FormData: req.FormData,
		Uploads:  req.Uploads,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"message":            "Application submitted successfully",
		"application":        submission.Application,
		"application_id":     submission.Application.ID,
		"application_number": submission.ApplicationNumber,
		"categories":         submission.Categories,
		"resubmission":       submission.Resubmission,
	})
}

type submittedView struct {
	ID                string                        `json:"id"`
	ApplicationNumber string                        `json:"application_number"`
	SubmittedAt       time.Time                     `json:"submitted_at"`
	Categories        []admissions.ResponseCategory `json:"categories"`
}

func (s *Service) handleGetSubmittedApplication(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	submitted, err := s.admissions.SubmittedApplication(r.Context(), identity.UserID)
	if admissions.HasCode(err, admissions.CodeNotFound) {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"application": nil,
		})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view := submittedView{
		ID:                submitted.Application.ID,
		ApplicationNumber: submitted.ApplicationNumber,
		SubmittedAt:       submitted.Application.CreatedAt,
		Categories:        submitted.Categories,
	}
	if submitted.Application.SubmissionDate != nil {
		view.SubmittedAt = *submitted.Application.SubmissionDate
	}
	if view.Categories == nil {
		view.Categories = []admissions.ResponseCategory{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"application": view,
	})
}

func (s *Service) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	apps, err := s.admissions.ApplicationStatus(r.Context(), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if apps == nil {
		apps = []*types.Application{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"applications": apps,
	})
}

func (s *Service) handleGetQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.admissions.Questions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if questions == nil {
		questions = []*types.Question{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"questions": questions,
	})
}

func (s *Service) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	notifications, err := s.notifications.NotificationsByUser(r.Context(), identity.UserID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", identity.UserID).Error("failed to list notifications")
		s.writeMessage(w, http.StatusInternalServerError, "Failed to load notifications")
		return
	}
	if notifications == nil {
		notifications = []*types.Notification{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"notifications": notifications,
	})
}
