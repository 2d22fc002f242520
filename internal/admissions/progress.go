package admissions

import (
	"context"
	"errors"

	"admissions/pkg/types"

	"github.com/sirupsen/logrus"
)

type SaveProgressInput struct {
	FormData       types.FormData
	CurrentStep    int
	CompletedSteps []int
	Uploads        []Upload
}

// SaveProgress autosaves the applicant's in-flight form. Stored file metadata is
// only ever added to or replaced per key, never dropped.
func (s *Service) SaveProgress(ctx context.Context, userID string, in SaveProgressInput) (*types.ApplicationProgress, error) {
	if _, err := s.users.User(ctx, userID); err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			return nil, validationError("Invalid user")
		}
		return nil, s.internal(err, "failed to load user", logrus.Fields{"user_id": userID})
	}

	formData := in.FormData
	if formData == nil {
		formData = types.FormData{}
	}
	completed := in.CompletedSteps
	if completed == nil {
		completed = []int{}
	}

	progress := &types.ApplicationProgress{
		UserID:         userID,
		FormData:       formData,
		FilesMetadata:  s.storeUploads(ctx, userID, in.Uploads),
		CurrentStep:    in.CurrentStep,
		CompletedSteps: completed,
		LastSavedAt:    s.now().UTC(),
	}

	saved, err := s.progress.SaveProgress(ctx, progress)
	if err != nil {
		return nil, s.internal(err, "failed to save progress", logrus.Fields{"user_id": userID})
	}
	return saved, nil
}

// Progress returns the saved progress, or an empty draft when nothing was saved yet.
func (s *Service) Progress(ctx context.Context, userID string) (*types.ApplicationProgress, error) {
	progress, err := s.progress.Progress(ctx, userID)
	if errors.Is(err, types.ErrProgressNotFound) {
		return &types.ApplicationProgress{
			UserID:         userID,
			FormData:       types.FormData{},
			FilesMetadata:  types.FilesMetadata{},
			CompletedSteps: []int{},
		}, nil
	}
	if err != nil {
		return nil, s.internal(err, "failed to load progress", logrus.Fields{"user_id": userID})
	}
	return progress, nil
}

func (s *Service) ClearProgress(ctx context.Context, userID string) error {
	if err := s.progress.ClearProgress(ctx, userID); err != nil {
		return s.internal(err, "failed to clear progress", logrus.Fields{"user_id": userID})
	}
	return nil
}
