package store

import (
	"admissions/internal/utils"
	"admissions/pkg/types"
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const progressTableName = "admissions.application_progress"

var progressColumns = utils.StructTagValues(types.ApplicationProgress{})

type ProgressRepository struct {
	pool *pgxpool.Pool
}

func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

// SaveProgress upserts the user's row. files_metadata is merged key by key so files
// saved by earlier calls survive autosaves that do not repeat them.
func (r *ProgressRepository) SaveProgress(ctx context.Context, progress *types.ApplicationProgress) (*types.ApplicationProgress, error) {
	if progress.FilesMetadata == nil {
		progress.FilesMetadata = types.FilesMetadata{}
	}
	if progress.CreatedAt.IsZero() {
		progress.CreatedAt = progress.LastSavedAt
	}

	query, args, err := psql().
		Insert(progressTableName).
		SetMap(utils.StructToMap(progress)).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			form_data = EXCLUDED.form_data,
			files_metadata = ` + progressTableName + `.files_metadata || EXCLUDED.files_metadata,
			current_step = EXCLUDED.current_step,
			completed_steps = EXCLUDED.completed_steps,
			last_saved_at = EXCLUDED.last_saved_at`).
		Suffix("RETURNING " + columnList(progressColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate save progress query: %w", err)
	}

	var saved = new(types.ApplicationProgress)
	err = pgxscan.Get(ctx, r.pool, saved, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}

	return saved, nil
}

// AttachFile merges a single file into the user's progress and leaves the form state alone.
func (r *ProgressRepository) AttachFile(ctx context.Context, userID, questionKey string, file types.FileMetadata) (*types.ApplicationProgress, error) {
	now := time.Now().UTC()
	progress := &types.ApplicationProgress{
		UserID:         userID,
		FormData:       types.FormData{},
		FilesMetadata:  types.FilesMetadata{questionKey: file},
		CompletedSteps: []int{},
		LastSavedAt:    now,
		CreatedAt:      now,
	}

	query, args, err := psql().
		Insert(progressTableName).
		SetMap(utils.StructToMap(progress)).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			files_metadata = ` + progressTableName + `.files_metadata || EXCLUDED.files_metadata,
			last_saved_at = EXCLUDED.last_saved_at`).
		Suffix("RETURNING " + columnList(progressColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attach file query: %w", err)
	}

	var saved = new(types.ApplicationProgress)
	err = pgxscan.Get(ctx, r.pool, saved, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to attach file to progress: %w", err)
	}

	return saved, nil
}

func (r *ProgressRepository) Progress(ctx context.Context, userID string) (*types.ApplicationProgress, error) {
	query, args, err := psql().
		Select(progressColumns...).
		From(progressTableName).
		Where(sq.Eq{"user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate progress query: %w", err)
	}

	var progress = new(types.ApplicationProgress)
	err = pgxscan.Get(ctx, r.pool, progress, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to fetch progress: %w", err)
	}

	return progress, nil
}

func (r *ProgressRepository) ClearProgress(ctx context.Context, userID string) error {
	query, args, err := psql().Delete(progressTableName).Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate clear progress query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to clear progress")
}
