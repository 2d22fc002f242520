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
	"github.com/shopspring/decimal"
)

const (
	paymentTableName = "admissions.payments"

	confirmedPinIndex         = "payments_confirmed_pin_key"
	transactionReferenceIndex = "payments_transaction_reference_key"
)

var paymentColumns = utils.StructTagValues(types.Payment{})

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func paymentWriteError(err error) error {
	switch uniqueConstraint(err) {
	case "":
		return err
	case confirmedPinIndex:
		return types.ErrDuplicatePin
	case transactionReferenceIndex:
		return types.ErrDuplicateTransactionReference
	}
	return err
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, payment *types.Payment) error {
	query, args, err := psql().
		Insert(paymentTableName).
		SetMap(utils.StructToMap(payment)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert payment query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		if mapped := paymentWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *PaymentRepository) PinIssued(ctx context.Context, pin string) (bool, error) {
	query, args, err := psql().
		Select("1").
		Prefix("SELECT EXISTS (").
		From(paymentTableName).
		Where(sq.Eq{"application_fee_pin": pin, "payment_status": types.PaymentStatusConfirmed}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate pin issued query: %w", err)
	}

	var exists bool
	err = r.pool.QueryRow(ctx, query, args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pin: %w", err)
	}

	return exists, nil
}

func (r *PaymentRepository) getPayment(ctx context.Context, where sq.Sqlizer) (*types.Payment, error) {
	query, args, err := psql().
		Select(paymentColumns...).
		From(paymentTableName).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment query: %w", err)
	}

	var payment = new(types.Payment)
	err = pgxscan.Get(ctx, r.pool, payment, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}

	return payment, nil
}

func (r *PaymentRepository) ConfirmedPaymentByPin(ctx context.Context, pin string) (*types.Payment, error) {
	return r.getPayment(ctx, sq.Eq{
		"application_fee_pin": pin,
		"payment_status":      types.PaymentStatusConfirmed,
	})
}

func (r *PaymentRepository) Payment(ctx context.Context, paymentID string) (*types.Payment, error) {
	return r.getPayment(ctx, sq.Eq{"id": paymentID})
}

func (r *PaymentRepository) ClaimPin(ctx context.Context, paymentID, userID string, at time.Time) (bool, error) {
	query, args, err := psql().
		Update(paymentTableName).
		SetMap(map[string]any{
			"pin_used_by_user_id": userID,
			"pin_used":            true,
			"pin_used_at":         at,
			"updated_at":          at,
		}).
		Where(sq.Eq{
			"id":                  paymentID,
			"pin_used_by_user_id": nil,
			"payment_status":      types.PaymentStatusConfirmed,
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate claim pin query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to claim pin: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepository) MarkPinUsed(ctx context.Context, paymentID string, at time.Time) error {
	query, args, err := psql().
		Update(paymentTableName).
		Set("pin_used", true).
		Set("pin_used_at", sq.Expr("COALESCE(pin_used_at, ?)", at)).
		Set("updated_at", at).
		Where(sq.Eq{"id": paymentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate mark pin used query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark pin used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrPaymentNotFound
	}

	return nil
}

func (r *PaymentRepository) listPayments(ctx context.Context, where sq.Sqlizer) ([]*types.Payment, error) {
	builder := psql().
		Select(paymentColumns...).
		From(paymentTableName).
		OrderBy("payment_date desc", "created_at desc")
	if where != nil {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payments query: %w", err)
	}

	var payments = make([]*types.Payment, 0)
	err = pgxscan.Select(ctx, r.pool, &payments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payments: %w", err)
	}

	return payments, nil
}

func (r *PaymentRepository) PaymentsByStatus(ctx context.Context, status types.PaymentStatus) ([]*types.Payment, error) {
	return r.listPayments(ctx, sq.Eq{"payment_status": status})
}

func (r *PaymentRepository) PaymentsByBankUser(ctx context.Context, bankUserID string) ([]*types.Payment, error) {
	return r.listPayments(ctx, sq.Eq{"bank_user_id": bankUserID})
}

func (r *PaymentRepository) AllPayments(ctx context.Context) ([]*types.Payment, error) {
	return r.listPayments(ctx, nil)
}

func (r *PaymentRepository) UpdatePaymentStatus(ctx context.Context, paymentID string, status types.PaymentStatus) error {
	query, args, err := psql().
		Update(paymentTableName).
		Set("payment_status", status).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": paymentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update payment status query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if mapped := paymentWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrPaymentNotFound
	}

	return nil
}

func (r *PaymentRepository) ExpirePin(ctx context.Context, pin string) (*types.Payment, error) {
	query, args, err := psql().
		Update(paymentTableName).
		Set("payment_status", types.PaymentStatusExpired).
		Set("updated_at", time.Now()).
		Where(sq.Expr("id = (SELECT id FROM "+paymentTableName+" WHERE application_fee_pin = ? AND payment_status <> ? ORDER BY payment_date DESC LIMIT 1)", pin, types.PaymentStatusExpired)).
		Suffix("RETURNING " + columnList(paymentColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate expire pin query: %w", err)
	}

	var payment = new(types.Payment)
	err = pgxscan.Get(ctx, r.pool, payment, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to expire pin: %w", err)
	}

	return payment, nil
}

func (r *PaymentRepository) ExpireStalePins(ctx context.Context, paidBefore time.Time) (int64, error) {
	query, args, err := psql().
		Update(paymentTableName).
		Set("payment_status", types.PaymentStatusExpired).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"payment_status": types.PaymentStatusConfirmed}).
		Where(sq.Lt{"payment_date": paidBefore}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate expire stale pins query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale pins: %w", err)
	}

	return tag.RowsAffected(), nil
}

type paymentStatisticsRow struct {
	ConfirmedCount int64           `db:"confirmed_count"`
	ConfirmedTotal decimal.Decimal `db:"confirmed_total"`
	PendingCount   int64           `db:"pending_count"`
	PendingTotal   decimal.Decimal `db:"pending_total"`
	TodayCount     int64           `db:"today_count"`
	TodayTotal     decimal.Decimal `db:"today_total"`
	WeekCount      int64           `db:"week_count"`
	WeekTotal      decimal.Decimal `db:"week_total"`
}

func (r *PaymentRepository) PaymentStatistics(ctx context.Context, dayStart, weekStart time.Time) (*types.PaymentStatistics, error) {
	query, args, err := psql().
		Select().
		Column(sq.Expr("count(*) FILTER (WHERE payment_status = ?) AS confirmed_count", types.PaymentStatusConfirmed)).
		Column(sq.Expr("COALESCE(sum(amount) FILTER (WHERE payment_status = ?), 0) AS confirmed_total", types.PaymentStatusConfirmed)).
		Column(sq.Expr("count(*) FILTER (WHERE payment_status = ?) AS pending_count", types.PaymentStatusPending)).
		Column(sq.Expr("COALESCE(sum(amount) FILTER (WHERE payment_status = ?), 0) AS pending_total", types.PaymentStatusPending)).
		Column(sq.Expr("count(*) FILTER (WHERE payment_date >= ?) AS today_count", dayStart)).
		Column(sq.Expr("COALESCE(sum(amount) FILTER (WHERE payment_date >= ?), 0) AS today_total", dayStart)).
		Column(sq.Expr("count(*) FILTER (WHERE payment_date >= ?) AS week_count", weekStart)).
		Column(sq.Expr("COALESCE(sum(amount) FILTER (WHERE payment_date >= ?), 0) AS week_total", weekStart)).
		From(paymentTableName).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment statistics query: %w", err)
	}

	var row paymentStatisticsRow
	err = pgxscan.Get(ctx, r.pool, &row, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment statistics: %w", err)
	}

	return &types.PaymentStatistics{
		Confirmed: types.PaymentWindow{Count: row.ConfirmedCount, Total: row.ConfirmedTotal},
		Pending:   types.PaymentWindow{Count: row.PendingCount, Total: row.PendingTotal},
		Today:     types.PaymentWindow{Count: row.TodayCount, Total: row.TodayTotal},
		Week:      types.PaymentWindow{Count: row.WeekCount, Total: row.WeekTotal},
	}, nil
}

func (r *PaymentRepository) ConfirmedPaymentTotal(ctx context.Context) (types.PaymentWindow, error) {
	query, args, err := psql().
		Select("count(*) AS count", "COALESCE(sum(amount), 0) AS total").
		From(paymentTableName).
		Where(sq.Eq{"payment_status": types.PaymentStatusConfirmed}).
		ToSql()
	if err != nil {
		return types.PaymentWindow{}, fmt.Errorf("failed to generate payment total query: %w", err)
	}

	var window types.PaymentWindow
	err = pgxscan.Get(ctx, r.pool, &window, query, args...)
	if err != nil {
		return types.PaymentWindow{}, fmt.Errorf("failed to fetch payment total: %w", err)
	}

	return window, nil
}

// PinStatistics counts PINs by state. Unclaimed confirmed PINs paid before
// validSince count as expired.
func (r *PaymentRepository) PinStatistics(ctx context.Context, validSince time.Time) (*types.PinStatistics, error) {
	confirmed, expired := types.PaymentStatusConfirmed, types.PaymentStatusExpired

	query, args, err := psql().
		Select().
		Column("count(*) AS issued").
		Column("count(*) FILTER (WHERE pin_used_by_user_id IS NOT NULL) AS used").
		Column(sq.Expr(
			"count(*) FILTER (WHERE payment_status = ? AND pin_used_by_user_id IS NULL AND payment_date >= ?) AS unused",
			confirmed, validSince,
		)).
		Column(sq.Expr(
			"count(*) FILTER (WHERE payment_status = ? OR (payment_status = ? AND pin_used_by_user_id IS NULL AND payment_date < ?)) AS expired",
			expired, confirmed, validSince,
		)).
		From(paymentTableName).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pin statistics query: %w", err)
	}

	var stats types.PinStatistics
	err = pgxscan.Get(ctx, r.pool, &stats, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pin statistics: %w", err)
	}

	return &stats, nil
}
