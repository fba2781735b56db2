package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

type notificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создаёт PostgreSQL-реализацию NotificationRepository.
func NewNotificationRepository(store *Store) domain.NotificationRepository {
	return &notificationRepository{db: store.DB()}
}

func (r *notificationRepository) Create(n domain.Notification) (domain.Notification, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, user_id, type, title, message, order_id, action_required, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.OrderID, n.ActionRequired, n.CreatedAt,
	)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("insert notification: %w", err)
	}

	return n, nil
}

func (r *notificationRepository) ListByUser(userID string, limit int) ([]domain.Notification, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, message, order_id, action_required, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.OrderID, &n.ActionRequired, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return result, nil
}

func (r *notificationRepository) ExistsForOrder(orderID, notificationType string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id
		FROM notifications
		WHERE order_id = $1
		  AND type = $2
		LIMIT 1
	`, orderID, notificationType).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check notification exists: %w", err)
}

var _ domain.NotificationRepository = (*notificationRepository)(nil)
