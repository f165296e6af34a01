package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

const notificationColumns = `id, user_id, title, message, severity, status,
	attempts, last_attempt, created_at`

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, e *domain.NotificationEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notification_events (id, user_id, title, message, severity, status, attempts, last_attempt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.UserID, e.Title, e.Message, e.Severity, e.Status, e.Attempts, e.LastAttempt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetPending(ctx context.Context, limit int) ([]domain.NotificationEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notification_events
		WHERE status = $1 ORDER BY created_at LIMIT $2 FOR UPDATE SKIP LOCKED`,
		domain.NotificationStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetPending: %w", err)
	}
	defer rows.Close()

	var events []domain.NotificationEvent
	for rows.Next() {
		var e domain.NotificationEvent
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Title, &e.Message, &e.Severity, &e.Status,
			&e.Attempts, &e.LastAttempt, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("GetPending: scan: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetPending: rows: %w", err)
	}
	return events, nil
}

func (r *NotificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notification_events SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}
