package admissions

import (
	"context"
	"errors"

	"admissions/internal/utils"
	"admissions/pkg/types"

	"github.com/sirupsen/logrus"
)

const msgSubmitted = "Your application has been submitted successfully"

type StartedApplication struct {
	Application *types.Application
	Payment     types.PaymentSummary
	Resumed     bool
}

// StartWithPin verifies pin again, marks it used and resumes or creates the caller's draft.
func (s *Service) StartWithPin(ctx context.Context, userID, rawPin string) (*StartedApplication, error) {
	v, err := s.VerifyPin(ctx, userID, rawPin)
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{"user_id": userID, "payment_id": v.Payment.ID}

	if err := s.payments.MarkPinUsed(ctx, v.Payment.ID, s.now().UTC()); err != nil {
		return nil, s.internal(err, "failed to mark pin used", fields)
	}

	now := s.now().UTC()
	draft := &types.Application{
		ID:                utils.NanoID(),
		UserID:            userID,
		ApplicationStatus: types.ApplicationStatusDraft,
		FormData: types.FormData{
			"payment_reference": v.Payment.TransactionReference,
			"payment_pin":       v.Pin,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	app, resumed, err := s.applications.StartDraft(ctx, draft)
	if err != nil {
		return nil, s.internal(err, "Failed to start application", fields)
	}

	s.audit(ctx, userID, ActionStartWithPin, map[string]any{
		"application_id": app.ID,
		"payment_id":     v.Payment.ID,
		"pin":            v.Pin,
		"resumed":        resumed,
	})

	return &StartedApplication{
		Application: app,
		Payment:     v.Payment.Summary(),
		Resumed:     resumed,
	}, nil
}

type SubmitInput struct {
	FormData types.FormData
	Uploads  []Upload
}

type SubmittedApplication struct {
	Application       *types.Application
	ApplicationNumber string
	Categories        []ResponseCategory
}

type Submission struct {
	SubmittedApplication
	Resubmission bool
}

// Submit finalizes the caller's application. A user with a submitted application
// resubmits under the same id and number; otherwise a new submitted row is created.
func (s *Service) Submit(ctx context.Context, userID string, in SubmitInput) (*Submission, error) {
	formData := in.FormData
	if formData == nil {
		formData = types.FormData{}
	}
	fields := logrus.Fields{"user_id": userID}

	filePaths := map[string]string{}
	progress, err := s.progress.Progress(ctx, userID)
	switch {
	case err == nil:
		for key, meta := range progress.FilesMetadata {
			if meta.URL != "" {
				filePaths[key] = meta.URL
			}
		}
	case errors.Is(err, types.ErrProgressNotFound):
	default:
		return nil, s.internal(err, "failed to load progress", fields)
	}
	for key, meta := range s.storeUploads(ctx, userID, in.Uploads) {
		filePaths[key] = meta.URL
	}

	responses := DeriveResponses(formData, filePaths)

	app, resubmission, err := s.applications.SaveSubmission(ctx, userID, formData, responses, s.now().UTC())
	if err != nil {
		return nil, s.internal(err, "Failed to submit application", fields)
	}
	fields["application_id"] = app.ID

	number, err := s.applicationNumber(ctx, app)
	if err != nil {
		// The submission is committed; the number is assigned on the next read.
		s.logger.WithError(err).WithFields(fields).Warn("failed to assign application number")
	}

	categories, err := s.categorizedResponses(ctx, app.ID)
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Warn("failed to load submitted responses")
	}

	if s.metrics != nil {
		s.metrics.Submission(resubmission)
	}

	if err := s.progress.ClearProgress(ctx, userID); err != nil {
		s.logger.WithError(err).WithFields(fields).Warn("failed to clear progress after submission")
	}
	s.sendConfirmation(ctx, userID, app, number, categories)
	s.notify(ctx, userID, types.NotificationApplicationSubmitted, msgSubmitted)
	s.audit(ctx, userID, "submit_application", map[string]any{
		"application_id": app.ID,
		"resubmission":   resubmission,
	})

	return &Submission{
		SubmittedApplication: SubmittedApplication{
			Application:       app,
			ApplicationNumber: number,
			Categories:        categories,
		},
		Resubmission: resubmission,
	}, nil
}

func (s *Service) applicationNumber(ctx context.Context, app *types.Application) (string, error) {
	if app.ApplicationNumber != nil && *app.ApplicationNumber != "" {
		return *app.ApplicationNumber, nil
	}
	number, err := s.applications.AssignApplicationNumber(ctx, app.ID)
	if err != nil {
		return "", err
	}
	app.ApplicationNumber = utils.StringPtr(number)
	return number, nil
}

func (s *Service) categorizedResponses(ctx context.Context, applicationID string) ([]ResponseCategory, error) {
	responses, err := s.responses.ResponsesByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return CategorizeResponses(responses), nil
}

func (s *Service) sendConfirmation(ctx context.Context, userID string, app *types.Application, number string, categories []ResponseCategory) {
	if s.mailer == nil {
		return
	}
	entry := s.logger.WithFields(logrus.Fields{"user_id": userID, "application_id": app.ID})

	user, err := s.users.User(ctx, userID)
	if err != nil {
		entry.WithError(err).Warn("failed to load applicant for confirmation email")
		return
	}

	err = s.mailer.SendApplicationConfirmation(ctx, &ApplicationConfirmation{
		Applicant:         user,
		Application:       app,
		ApplicationNumber: number,
		Categories:        categories,
	})
	if err != nil {
		entry.WithError(err).Warn("failed to send confirmation email")
	}
}

// SubmittedApplication returns the caller's latest submitted application with its
// responses grouped by category.
func (s *Service) SubmittedApplication(ctx context.Context, userID string) (*SubmittedApplication, error) {
	fields := logrus.Fields{"user_id": userID}

	app, err := s.applications.LatestSubmittedByUser(ctx, userID)
	if errors.Is(err, types.ErrApplicationNotFound) {
		return nil, newError(CodeNotFound, "No submitted application found")
	}
	if err != nil {
		return nil, s.internal(err, "failed to load application", fields)
	}
	fields["application_id"] = app.ID

	number, err := s.applicationNumber(ctx, app)
	if err != nil {
		return nil, s.internal(err, "failed to assign application number", fields)
	}

	categories, err := s.categorizedResponses(ctx, app.ID)
	if err != nil {
		return nil, s.internal(err, "failed to load application responses", fields)
	}

	return &SubmittedApplication{
		Application:       app,
		ApplicationNumber: number,
		Categories:        categories,
	}, nil
}

type CreateApplicationInput struct {
	ProgramType string
	FormData    types.FormData
	Documents   []Upload
}

// CreateApplication stores supporting documents and upserts the caller's draft.
// Every document must pass the size and extension checks before any is stored.
func (s *Service) CreateApplication(ctx context.Context, userID string, in CreateApplicationInput) (*types.Application, error) {
	for _, doc := range in.Documents {
		if err := s.checkUpload(doc, true); err != nil {
			return nil, err
		}
	}

	fields := logrus.Fields{"user_id": userID}

	formData := types.FormData{}
	for k, v := range in.FormData {
		formData[k] = v
	}

	if len(in.Documents) > 0 {
		documents := map[string]any{}
		for _, doc := range in.Documents {
			meta, err := s.storeUpload(ctx, doc)
			if err != nil {
				return nil, s.internal(err, "File upload failed", fields)
			}
			documents[doc.Field] = meta.URL
		}
		formData["documents"] = documents
	}

	now := s.now().UTC()
	draft := &types.Application{
		ID:                utils.NanoID(),
		UserID:            userID,
		ApplicationStatus: types.ApplicationStatusDraft,
		FormData:          formData,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.ProgramType != "" {
		draft.ProgramType = utils.StringPtr(in.ProgramType)
	}

	app, err := s.applications.UpsertDraft(ctx, draft)
	if err != nil {
		return nil, s.internal(err, "failed to create application", fields)
	}

	s.audit(ctx, userID, "create_application", map[string]any{"application_id": app.ID})
	return app, nil
}

// ApplicationStatus lists every application the caller owns.
func (s *Service) ApplicationStatus(ctx context.Context, userID string) ([]*types.Application, error) {
	apps, err := s.applications.ApplicationsByUser(ctx, userID)
	if err != nil {
		return nil, s.internal(err, "failed to list applications", logrus.Fields{"user_id": userID})
	}
	return apps, nil
}

func (s *Service) Questions(ctx context.Context) ([]*types.Question, error) {
	questions, err := s.questions.ActiveQuestions(ctx)
	if err != nil {
		return nil, s.internal(err, "failed to load questions", nil)
	}
	return questions, nil
}
