package store

import (
	"admissions/internal/utils"
	"admissions/pkg/types"
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

var questionColumns = utils.StructTagValues(types.Question{})

type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func (r *QuestionRepository) ActiveQuestions(ctx context.Context) ([]*types.Question, error) {
	query, args, err := psql().
		Select(questionColumns...).
		From(questionTableName).
		Where(sq.Eq{"is_active": true}).
		OrderBy("category_order", "sort_order", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions query: %w", err)
	}

	var questions = make([]*types.Question, 0)
	err = pgxscan.Select(ctx, r.pool, &questions, query, args...)
	return questions, utils.ErrorWrapOrNil(err, "failed to fetch questions")
}

// UpsertQuestion writes a catalog entry keyed by its id.
func (r *QuestionRepository) UpsertQuestion(ctx context.Context, question *types.Question) error {
	query, args, err := psql().
		Insert(questionTableName).
		SetMap(utils.StructToMap(question)).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			category_order = EXCLUDED.category_order,
			section = EXCLUDED.section,
			question_text = EXCLUDED.question_text,
			question_type = EXCLUDED.question_type,
			options = EXCLUDED.options,
			is_required = EXCLUDED.is_required,
			sort_order = EXCLUDED.sort_order,
			is_active = EXCLUDED.is_active`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate upsert question query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to upsert question")
}
