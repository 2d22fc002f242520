package store

import (
	"admissions/internal/utils"
	"admissions/pkg/types"
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationTableName         = "admissions.applications"
	applicationSequenceTableName = "admissions.application_number_sequences"
	responseTableName            = "admissions.application_responses"
	questionTableName            = "admissions.questions"

	draftConflict = "ON CONFLICT (user_id) WHERE application_status = 'draft'"
)

var (
	applicationColumns = utils.StructTagValues(types.Application{})
	responseColumns    = []string{"id", "application_id", "question_id", "answer", "file_path", "created_at"}
)

type ApplicationRepository struct {
	pool *pgxpool.Pool
}

func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

type draftRow struct {
	types.Application
	Resumed bool `db:"resumed"`
}

func (r *ApplicationRepository) StartDraft(ctx context.Context, app *types.Application) (*types.Application, bool, error) {
	query, args, err := psql().
		Insert(applicationTableName).
		SetMap(utils.StructToMap(app)).
		Suffix(draftConflict + " DO UPDATE SET updated_at = EXCLUDED.updated_at").
		Suffix("RETURNING " + columnList(applicationColumns) + ", (xmax <> 0) AS resumed").
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate start draft query: %w", err)
	}

	var row draftRow
	err = pgxscan.Get(ctx, r.pool, &row, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to start draft: %w", err)
	}

	return &row.Application, row.Resumed, nil
}

func (r *ApplicationRepository) UpsertDraft(ctx context.Context, app *types.Application) (*types.Application, error) {
	query, args, err := psql().
		Insert(applicationTableName).
		SetMap(utils.StructToMap(app)).
		Suffix(draftConflict + " DO UPDATE SET program_type = EXCLUDED.program_type, form_data = EXCLUDED.form_data, updated_at = EXCLUDED.updated_at").
		Suffix("RETURNING " + columnList(applicationColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate upsert draft query: %w", err)
	}

	var stored = new(types.Application)
	err = pgxscan.Get(ctx, r.pool, stored, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert draft: %w", err)
	}

	return stored, nil
}

func latestSubmittedQuery(userID string) sq.SelectBuilder {
	return psql().
		Select(applicationColumns...).
		From(applicationTableName).
		Where(sq.Eq{"user_id": userID, "application_status": types.ApplicationStatusSubmitted}).
		OrderBy("submission_date desc nulls last", "created_at desc").
		Limit(1)
}

func (r *ApplicationRepository) SaveSubmission(ctx context.Context, userID string, formData types.FormData, responses []*types.ApplicationResponse, at time.Time) (*types.Application, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin submission tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serializes concurrent submissions from the same user, including the very first one.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", userID); err != nil {
		return nil, false, fmt.Errorf("failed to lock user submissions: %w", err)
	}

	query, args, err := latestSubmittedQuery(userID).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate latest submitted query: %w", err)
	}

	var app = new(types.Application)
	err = pgxscan.Get(ctx, tx, app, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, false, fmt.Errorf("failed to fetch latest submitted application: %w", err)
	}
	resubmission := err == nil

	if resubmission {
		query, args, err = psql().
			Update(applicationTableName).
			Set("form_data", formData).
			Set("application_status", types.ApplicationStatusSubmitted).
			Set("submission_date", at).
			Set("updated_at", at).
			Where(sq.Eq{"id": app.ID}).
			Suffix("RETURNING " + columnList(applicationColumns)).
			ToSql()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate resubmit query: %w", err)
		}
		if err = pgxscan.Get(ctx, tx, app, query, args...); err != nil {
			return nil, false, fmt.Errorf("failed to resubmit application: %w", err)
		}

		query, args, err = psql().Delete(responseTableName).Where(sq.Eq{"application_id": app.ID}).ToSql()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate delete responses query: %w", err)
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return nil, false, fmt.Errorf("failed to delete previous responses: %w", err)
		}
	} else {
		app = &types.Application{
			ID:                utils.NanoID(),
			UserID:            userID,
			ApplicationStatus: types.ApplicationStatusSubmitted,
			FormData:          formData,
			SubmissionDate:    utils.TimePtr(at),
			CreatedAt:         at,
			UpdatedAt:         at,
		}
		query, args, err = psql().
			Insert(applicationTableName).
			SetMap(utils.StructToMap(app)).
			Suffix("RETURNING " + columnList(applicationColumns)).
			ToSql()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate insert submission query: %w", err)
		}
		if err = pgxscan.Get(ctx, tx, app, query, args...); err != nil {
			return nil, false, fmt.Errorf("failed to insert submitted application: %w", err)
		}
	}

	if len(responses) > 0 {
		insert := psql().Insert(responseTableName).Columns(responseColumns...)
		for _, resp := range responses {
			insert = insert.Values(resp.ID, app.ID, resp.QuestionID, resp.Answer, resp.FilePath, at)
		}
		query, args, err = insert.ToSql()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate insert responses query: %w", err)
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return nil, false, fmt.Errorf("failed to insert responses: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit submission: %w", err)
	}

	return app, resubmission, nil
}

// AssignApplicationNumber takes the next value of the per-year counter for the
// application's creation year. An already numbered application keeps its number.
func (r *ApplicationRepository) AssignApplicationNumber(ctx context.Context, applicationID string) (string, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to begin numbering tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query, args, err := psql().
		Select("application_number", "created_at").
		From(applicationTableName).
		Where(sq.Eq{"id": applicationID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to generate application lock query: %w", err)
	}

	var current struct {
		ApplicationNumber *string   `db:"application_number"`
		CreatedAt         time.Time `db:"created_at"`
	}
	err = pgxscan.Get(ctx, tx, &current, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return "", types.ErrApplicationNotFound
		}
		return "", fmt.Errorf("failed to lock application: %w", err)
	}
	if current.ApplicationNumber != nil {
		return *current.ApplicationNumber, nil
	}

	year := current.CreatedAt.UTC().Year()
	query, args, err = psql().
		Insert(applicationSequenceTableName).
		Columns("year", "last_value").
		Values(year, 1).
		Suffix("ON CONFLICT (year) DO UPDATE SET last_value = " + applicationSequenceTableName + ".last_value + 1 RETURNING last_value").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to generate sequence query: %w", err)
	}

	var sequence int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&sequence); err != nil {
		return "", fmt.Errorf("failed to advance application sequence: %w", err)
	}

	number := types.FormatApplicationNumber(year, sequence)
	query, args, err = psql().
		Update(applicationTableName).
		Set("application_number", number).
		Where(sq.Eq{"id": applicationID, "application_number": nil}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to generate assign number query: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to assign application number: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit application number: %w", err)
	}

	return number, nil
}

func (r *ApplicationRepository) LatestSubmittedByUser(ctx context.Context, userID string) (*types.Application, error) {
	query, args, err := latestSubmittedQuery(userID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate latest submitted query: %w", err)
	}

	var app = new(types.Application)
	err = pgxscan.Get(ctx, r.pool, app, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to fetch latest submitted application: %w", err)
	}

	return app, nil
}

func (r *ApplicationRepository) ApplicationsByUser(ctx context.Context, userID string) ([]*types.Application, error) {
	query, args, err := psql().
		Select(applicationColumns...).
		From(applicationTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate applications by user query: %w", err)
	}

	var apps = make([]*types.Application, 0)
	err = pgxscan.Select(ctx, r.pool, &apps, query, args...)
	return apps, utils.ErrorWrapOrNil(err, "failed to fetch applications by user")
}

func (r *ApplicationRepository) AllApplications(ctx context.Context) ([]*types.ApplicationListing, error) {
	query, args, err := psql().
		Select(utils.PrefixSliceOfStrings("a", applicationColumns)...).
		Column("u.email").
		From(applicationTableName + " a").
		Join(userTableName + " u ON u.id = a.user_id").
		OrderBy("a.created_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate all applications query: %w", err)
	}

	var apps = make([]*types.ApplicationListing, 0)
	err = pgxscan.Select(ctx, r.pool, &apps, query, args...)
	return apps, utils.ErrorWrapOrNil(err, "failed to fetch applications")
}

func (r *ApplicationRepository) Application(ctx context.Context, applicationID string) (*types.Application, error) {
	query, args, err := psql().
		Select(applicationColumns...).
		From(applicationTableName).
		Where(sq.Eq{"id": applicationID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate application query: %w", err)
	}

	var app = new(types.Application)
	err = pgxscan.Get(ctx, r.pool, app, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to fetch application: %w", err)
	}

	return app, nil
}

func (r *ApplicationRepository) UpdateApplicationStatus(ctx context.Context, applicationID string, status types.ApplicationStatus) error {
	query, args, err := psql().
		Update(applicationTableName).
		Set("application_status", status).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": applicationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update application status query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrApplicationNotFound
	}

	return nil
}

func (r *ApplicationRepository) ApplicationCounts(ctx context.Context) (*types.ApplicationCounts, error) {
	query, args, err := psql().
		Select("count(*) AS total").
		Column(sq.Expr("count(*) FILTER (WHERE application_status = ?) AS drafts", types.ApplicationStatusDraft)).
		Column(sq.Expr("count(*) FILTER (WHERE application_status = ?) AS submitted", types.ApplicationStatusSubmitted)).
		Column(sq.Expr("count(*) FILTER (WHERE application_status = ?) AS interview_scheduled", types.ApplicationStatusInterviewScheduled)).
		From(applicationTableName).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate application counts query: %w", err)
	}

	var counts types.ApplicationCounts
	err = pgxscan.Get(ctx, r.pool, &counts, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}

	return &counts, nil
}

// ResponsesByApplication joins each response with its catalog question, ordered
// the way the form presents them. Responses to unknown questions sort last.
func (r *ApplicationRepository) ResponsesByApplication(ctx context.Context, applicationID string) ([]*types.ApplicationResponse, error) {
	query, args, err := psql().
		Select(utils.PrefixSliceOfStrings("r", responseColumns)...).
		Columns("q.question_text", "q.question_type", "q.category", "q.category_order", "q.sort_order").
		From(responseTableName+" r").
		LeftJoin(questionTableName+" q ON q.id = r.question_id").
		Where(sq.Eq{"r.application_id": applicationID}).
		OrderBy("q.category_order nulls last", "q.sort_order nulls last", "r.question_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate responses query: %w", err)
	}

	var responses = make([]*types.ApplicationResponse, 0)
	err = pgxscan.Select(ctx, r.pool, &responses, query, args...)
	return responses, utils.ErrorWrapOrNil(err, "failed to fetch responses")
}
