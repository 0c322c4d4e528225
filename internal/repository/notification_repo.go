package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"freelancehub/internal/model"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert stores n unless a notification for the same event and user exists.
// It reports whether a row was written.
func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) (bool, error) {
	query := `
        INSERT INTO notifications (user_id, event_id, type, message, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT ON CONSTRAINT notifications_event_user DO NOTHING
    `
	tag, err := r.db.Exec(ctx, query, n.UserID, n.EventID, n.Type, n.Message)
	if err != nil {
		return false, mapError(err, "insert notification for user %d", n.UserID)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns the newest notifications of a user first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, user_id, event_id, type, message, is_read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, mapError(err, "list notifications of user %d", userID)
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.EventID, &n.Type, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, mapError(err, "scan notification")
		}
		out = append(out, n)
	}
	return out, mapError(rows.Err(), "list notifications of user %d", userID)
}

// MarkRead flags one of the user's notifications as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapError(err, "mark notification %d read", id)
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "notification %d", id)
	}
	return nil
}
