package store

import (
	"context"
	"fmt"
	"time"

	"admissions/internal/utils"
	"admissions/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	notificationTableName = "admissions.notifications"
	auditTableName        = "admissions.audit_logs"
)

var (
	notificationColumns = utils.StructTagValues(types.Notification{})
	auditColumns        = utils.StructTagValues(types.AuditEntry{})
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Notify(ctx context.Context, userID, kind, message string) error {
	notification := &types.Notification{
		ID:      utils.NanoID(),
		UserID:  userID,
		Type:    kind,
		Message: message,
		SentAt:  time.Now(),
	}

	query, args, err := psql().
		Insert(notificationTableName).
		SetMap(utils.StructToMap(notification)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert notification query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create notification")
}

func (r *NotificationRepository) NotificationsByUser(ctx context.Context, userID string) ([]*types.Notification, error) {
	query, args, err := psql().
		Select(notificationColumns...).
		From(notificationTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("sent_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate notifications query: %w", err)
	}

	var notifications = make([]*types.Notification, 0)
	err = pgxscan.Select(ctx, r.pool, &notifications, query, args...)
	return notifications, utils.ErrorWrapOrNil(err, "failed to fetch notifications")
}

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Record(ctx context.Context, userID, action string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	entry := &types.AuditEntry{
		ID:        utils.NanoID(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now(),
	}

	query, args, err := psql().
		Insert(auditTableName).
		SetMap(utils.StructToMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert audit query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to write audit entry")
}

// PinAudit pages through entries for actions, newest first, joined with the
// payment named by details.payment_id and the acting user's email.
func (r *AuditRepository) PinAudit(ctx context.Context, actions []string, limit, offset int) ([]*types.PinAuditEntry, error) {
	columns := append(
		utils.PrefixSliceOfStrings("a", auditColumns),
		"p.id AS payment_id",
		"p.transaction_reference",
		"p.depositor_name",
		"u.email",
	)

	query, args, err := psql().
		Select(columns...).
		From(auditTableName+" a").
		LeftJoin(paymentTableName+" p ON p.id = a.details->>'payment_id'").
		LeftJoin(userTableName+" u ON u.id = a.user_id").
		Where(sq.Eq{"a.action": actions}).
		OrderBy("a.created_at desc", "a.id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pin audit query: %w", err)
	}

	var entries = make([]*types.PinAuditEntry, 0)
	err = pgxscan.Select(ctx, r.pool, &entries, query, args...)
	return entries, utils.ErrorWrapOrNil(err, "failed to fetch pin audit")
}
