package postgres

import (
	"context"
	"database/sql"
	"time"

	"talentflow/internal/common"
	"talentflow/internal/domain/notification"
)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, item notification.Notification) error {
	if item.ID == "" {
		item.ID = common.NewUUID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO notifications (id, target_user_id, message, category, source_application_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		item.ID, item.TargetUserID, item.Message, item.Category, item.SourceApplicationID, item.CreatedAt)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to store notification", err)
	}
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID common.UUID, limit int) ([]notification.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, target_user_id, message, category, source_application_id, created_at
		FROM notifications WHERE target_user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list notifications", err)
	}
	defer rows.Close()
	var items []notification.Notification
	for rows.Next() {
		var item notification.Notification
		if err := rows.Scan(&item.ID, &item.TargetUserID, &item.Message, &item.Category, &item.SourceApplicationID, &item.CreatedAt); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan notification", err)
		}
		items = append(items, item)
	}
	return items, nil
}
