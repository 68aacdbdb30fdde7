package repository

import (
	"context"
	"database/sql"

	"consult-booking/core/database"
	"consult-booking/core/logger"
	"consult-booking/modules/notification/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const notificationColumns = `id, recipient_id, booking_id, type, message, metadata, is_read, created_at, updated_at`

type NotificationRepository interface {
	WithTx(tx database.IDatabase) NotificationRepository
	Create(ctx context.Context, notification *entity.Notification) error
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int, unreadOnly bool) (*entity.PaginatedNotificationEntity, error)
	// MarkAsRead returns nil, nil when the notification does not belong to the recipient.
	MarkAsRead(ctx context.Context, recipientID, id uuid.UUID) (*entity.Notification, error)
	MarkManyAsRead(ctx context.Context, recipientID uuid.UUID, ids []string) error
	MarkAllAsRead(ctx context.Context, recipientID uuid.UUID) error
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error)
}

type notificationRepository struct {
	db database.IDatabase
}

func NewNotificationRepository(db database.IDatabase) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) WithTx(tx database.IDatabase) NotificationRepository {
	return &notificationRepository{db: tx}
}

func (r *notificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	query := `
		INSERT INTO notifications (recipient_id, booking_id, type, message, metadata, is_read)
		VALUES (:recipient_id, :booking_id, :type, :message, :metadata, :is_read)
		RETURNING id, created_at, updated_at
	`
	rows, err := r.db.NamedQueryContext(ctx, query, notification)
	if err != nil {
		logger.Error("NotificationRepository:Create:Error", "recipient_id", notification.RecipientID, "error", err)
		return err
	}
	defer rows.Close()

	if rows.Next() {
		return rows.Scan(&notification.ID, &notification.CreatedAt, &notification.UpdatedAt)
	}
	return rows.Err()
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int, unreadOnly bool) (*entity.PaginatedNotificationEntity, error) {
	baseQuery := `FROM notifications WHERE recipient_id = $1`
	if unreadOnly {
		baseQuery += ` AND is_read = false`
	}

	var totalItems int
	if err := r.db.GetContext(ctx, &totalItems, "SELECT COUNT(*) "+baseQuery, recipientID); err != nil {
		logger.Error("NotificationRepository:ListByRecipient:Count:Error", "error", err)
		return nil, err
	}

	query := `SELECT ` + notificationColumns + ` ` + baseQuery + `
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	notifications := []entity.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, recipientID, limit, offset); err != nil {
		logger.Error("NotificationRepository:ListByRecipient:Select:Error", "error", err)
		return nil, err
	}

	return &entity.PaginatedNotificationEntity{
		Items:      notifications,
		TotalItems: totalItems,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, recipientID, id uuid.UUID) (*entity.Notification, error) {
	query := `
		UPDATE notifications
		SET is_read = true, updated_at = CASE WHEN is_read THEN updated_at ELSE now() END
		WHERE id = $1 AND recipient_id = $2
		RETURNING ` + notificationColumns

	var notification entity.Notification
	if err := r.db.GetContext(ctx, &notification, query, id, recipientID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("NotificationRepository:MarkAsRead:Error", "notification_id", id, "error", err)
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) MarkManyAsRead(ctx context.Context, recipientID uuid.UUID, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`UPDATE notifications SET is_read = true, updated_at = now() WHERE recipient_id = ? AND is_read = false AND id IN (?)`, recipientID, ids)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		logger.Error("NotificationRepository:MarkManyAsRead:Error", "error", err)
		return err
	}
	return nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, recipientID uuid.UUID) error {
	query := `UPDATE notifications SET is_read = true, updated_at = now() WHERE recipient_id = $1 AND is_read = false`
	if _, err := r.db.ExecContext(ctx, query, recipientID); err != nil {
		logger.Error("NotificationRepository:MarkAllAsRead:Error", "error", err)
		return err
	}
	return nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = false`
	if err := r.db.GetContext(ctx, &count, query, recipientID); err != nil {
		logger.Error("NotificationRepository:CountUnread:Error", "error", err)
		return 0, err
	}
	return count, nil
}
