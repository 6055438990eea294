package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/database"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

// PgNotificationRepository stores in-app notifications.
type PgNotificationRepository struct {
	db database.Querier
}

// NewNotificationRepository creates a new PgNotificationRepository.
func NewNotificationRepository(db database.Querier) *PgNotificationRepository {
	return &PgNotificationRepository{db: db}
}

// CreateBatch inserts all notifications in one round trip.
func (r *PgNotificationRepository) CreateBatch(ctx context.Context, notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	query := `
		INSERT INTO notifications
		    (id, user_id, service_order_id, type, title, message, action_url, action_text, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	batch := &pgx.Batch{}
	for _, n := range notifications {
		batch.Queue(query,
			n.ID, n.UserID, n.ServiceOrderID, n.Type, n.Title, n.Message,
			n.ActionURL, n.ActionText, n.Read, n.CreatedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range notifications {
		if _, err := br.Exec(); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create notification")
		}
	}
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (r *PgNotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT id, user_id, service_order_id, type, title, message, action_url, action_text, read, created_at
		FROM notifications
		WHERE user_id = $1`
	if unreadOnly {
		query += ` AND NOT read`
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list notifications")
	}
	defer rows.Close()

	out := make([]*domain.Notification, 0)
	for rows.Next() {
		n := &domain.Notification{}
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.ServiceOrderID, &n.Type, &n.Title, &n.Message,
			&n.ActionURL, &n.ActionText, &n.Read, &n.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan notification")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags one of the user's notifications as read.
func (r *PgNotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to mark notification read")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("notification", id)
	}
	return nil
}
