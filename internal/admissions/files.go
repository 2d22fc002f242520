package admissions

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"admissions/internal/utils"
	"admissions/pkg/types"

	"github.com/sirupsen/logrus"
)

// DocumentExtensions are accepted by the catalog document endpoint.
var DocumentExtensions = []string{"pdf", "jpg", "jpeg", "png"}

const storedNameLayout = "2006-01-02_15-04-05"

// Upload is one file posted by the applicant.
type Upload struct {
	// Field is the form key the file was posted under.
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (u Upload) extension() string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(u.Filename), "."))
}

// StoredFileName builds a collision-resistant name: timestamp, random suffix, original extension.
func StoredFileName(at time.Time, original string) string {
	name := at.Format(storedNameLayout) + "_" + utils.NanoIDSize(13)
	ext := strings.TrimPrefix(path.Ext(original), ".")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func (s *Service) checkUpload(u Upload, documentsOnly bool) error {
	if u.Size > s.maxUploadBytes {
		return validationError("File too large. Maximum size is %dMB", s.maxUploadBytes>>20)
	}
	if !documentsOnly {
		return nil
	}
	ext := u.extension()
	for _, allowed := range DocumentExtensions {
		if ext == allowed {
			return nil
		}
	}
	return validationError("Invalid file type. Allowed: %s", strings.Join(DocumentExtensions, ", "))
}

func (s *Service) storeUpload(ctx context.Context, u Upload) (types.FileMetadata, error) {
	if s.files == nil {
		return types.FileMetadata{}, fmt.Errorf("no file storage configured")
	}

	now := s.now()
	name := StoredFileName(now, u.Filename)
	url, err := s.files.Put(ctx, name, u.Body, u.Size, u.ContentType)
	if err != nil {
		return types.FileMetadata{}, fmt.Errorf("failed to store %s: %w", u.Filename, err)
	}

	return types.FileMetadata{
		Filename:     name,
		OriginalName: u.Filename,
		URL:          url,
		Size:         u.Size,
		Type:         u.ContentType,
		UploadedAt:   now.UTC(),
	}, nil
}

// storeUploads keeps going past bad files; each skipped upload is logged.
func (s *Service) storeUploads(ctx context.Context, userID string, uploads []Upload) types.FilesMetadata {
	stored := make(types.FilesMetadata, len(uploads))
	for _, u := range uploads {
		entry := s.logger.WithFields(logrus.Fields{
			"user_id":  userID,
			"field":    u.Field,
			"filename": u.Filename,
		})
		if err := s.checkUpload(u, false); err != nil {
			entry.WithField("size", u.Size).Warn("skipping oversized upload")
			continue
		}
		meta, err := s.storeUpload(ctx, u)
		if err != nil {
			entry.WithError(err).Warn("failed to store upload")
			continue
		}
		stored[u.Field] = meta
	}
	return stored
}

// UploadFile stores a single file. When questionKey is set the file is attached to
// the caller's saved progress right away. No extension check is applied here.
func (s *Service) UploadFile(ctx context.Context, userID, questionKey string, u Upload) (*types.FileMetadata, error) {
	if err := s.checkUpload(u, false); err != nil {
		return nil, err
	}

	meta, err := s.storeUpload(ctx, u)
	if err != nil {
		return nil, s.internal(err, "File upload failed", logrus.Fields{"user_id": userID})
	}

	if questionKey != "" {
		if _, err := s.progress.AttachFile(ctx, userID, questionKey, meta); err != nil {
			return nil, s.internal(err, "failed to attach file to progress", logrus.Fields{
				"user_id":      userID,
				"question_key": questionKey,
			})
		}
	}

	return &meta, nil
}
