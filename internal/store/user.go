package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"admissions/internal/utils"
	"admissions/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	userTableName          = "admissions.users"
	passwordResetTableName = "admissions.password_resets"
)

var userColumns = utils.StructTagValues(types.User{})

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) User(ctx context.Context, userID string) (*types.User, error) {
	query, args, err := psql().
		Select(userColumns...).
		From(userTableName).
		Where(sq.Eq{"id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user query: %w", err)
	}

	var user types.User
	err = pgxscan.Get(ctx, r.pool, &user, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) UserByEmail(ctx context.Context, email string) (*types.User, error) {
	query, args, err := psql().
		Select(userColumns...).
		From(userTableName).
		Where(sq.Expr("lower(email) = ?", strings.ToLower(strings.TrimSpace(email)))).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user-by-email query: %w", err)
	}

	var user types.User
	err = pgxscan.Get(ctx, r.pool, &user, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user by email: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *types.User) error {
	query, args, err := psql().
		Insert(userTableName).
		SetMap(utils.StructToMap(user)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate create user query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if uniqueConstraint(err) != "" {
		return types.ErrDuplicateEmail
	}

	return utils.ErrorWrapOrNil(err, "failed to create user")
}

func (r *UserRepository) CreatePasswordReset(ctx context.Context, reset *types.PasswordReset) error {
	query, args, err := psql().
		Insert(passwordResetTableName).
		SetMap(utils.StructToMap(reset)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate create password reset query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create password reset")
}

// ResetPassword consumes the unexpired, unused reset with tokenHash, sets the
// owner's password hash and retires the owner's other outstanding resets, all
// in one transaction. It returns the owner's user id.
func (r *UserRepository) ResetPassword(ctx context.Context, tokenHash, passwordHash string, at time.Time) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin reset transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query, args, err := psql().
		Update(passwordResetTableName).
		Set("used_at", at).
		Where(sq.Eq{"token_hash": tokenHash, "used_at": nil}).
		Where(sq.Gt{"expires_at": at}).
		Suffix("RETURNING user_id").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to generate consume reset query: %w", err)
	}

	var userID string
	err = pgxscan.Get(ctx, tx, &userID, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return "", types.ErrResetTokenInvalid
		}
		return "", fmt.Errorf("failed to consume password reset: %w", err)
	}

	query, args, err = psql().
		Update(userTableName).
		Set("password_hash", passwordHash).
		Set("updated_at", at).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to generate update password query: %w", err)
	}
	if _, err = tx.Exec(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to update password: %w", err)
	}

	query, args, err = psql().
		Update(passwordResetTableName).
		Set("used_at", at).
		Where(sq.Eq{"user_id": userID, "used_at": nil}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to generate retire resets query: %w", err)
	}
	if _, err = tx.Exec(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to retire password resets: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit password reset: %w", err)
	}

	return userID, nil
}
