package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

const gatewayPaymentColumns = `id, user_id, wallet_id, type, amount, currency,
	reference, status, provider, provider_ref, failure_reason, created_at, updated_at`

type GatewayPaymentRepository struct {
	db *sql.DB
}

func NewGatewayPaymentRepository(db *sql.DB) *GatewayPaymentRepository {
	return &GatewayPaymentRepository{db: db}
}

func (r *GatewayPaymentRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.GatewayPayment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO gateway_payments (
			id, user_id, wallet_id, type, amount, currency,
			reference, status, provider, provider_ref, failure_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.UserID, p.WalletID, p.Type, p.Amount, p.Currency,
		p.Reference, p.Status, p.Provider, p.ProviderRef, p.FailureReason, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateReference)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *GatewayPaymentRepository) GetByReference(ctx context.Context, reference string) (*domain.GatewayPayment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gatewayPaymentColumns+` FROM gateway_payments WHERE reference = $1`, reference,
	)
	p, err := scanGatewayPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByReference: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	return p, nil
}

// GetForUpdateByReference locks the payment row. Reconciliation re-checks
// terminal status under this lock, which is what makes replayed webhook
// deliveries no-ops.
func (r *GatewayPaymentRepository) GetForUpdateByReference(ctx context.Context, tx *sql.Tx, reference string) (*domain.GatewayPayment, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+gatewayPaymentColumns+` FROM gateway_payments WHERE reference = $1 FOR UPDATE`, reference,
	)
	p, err := scanGatewayPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdateByReference: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdateByReference: %w", err)
	}
	return p, nil
}

func (r *GatewayPaymentRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.GatewayPaymentStatus, providerRef, failureReason *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE gateway_payments
		SET status = $1, provider_ref = COALESCE($2, provider_ref), failure_reason = $3, updated_at = now()
		WHERE id = $4`,
		status, providerRef, failureReason, id,
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

func scanGatewayPayment(s scanner) (*domain.GatewayPayment, error) {
	var p domain.GatewayPayment
	err := s.Scan(
		&p.ID, &p.UserID, &p.WalletID, &p.Type, &p.Amount, &p.Currency,
		&p.Reference, &p.Status, &p.Provider, &p.ProviderRef, &p.FailureReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const gatewayEventColumns = `id, event_id, reference, outcome, payload, status,
	attempts, last_attempt, created_at`

type GatewayEventRepository struct {
	db *sql.DB
}

func NewGatewayEventRepository(db *sql.DB) *GatewayEventRepository {
	return &GatewayEventRepository{db: db}
}

func (r *GatewayEventRepository) Create(ctx context.Context, e *domain.GatewayEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO gateway_events (id, event_id, reference, outcome, payload, status, attempts, last_attempt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.EventID, e.Reference, e.Outcome, e.Payload, e.Status, e.Attempts, e.LastAttempt, e.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateReference)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *GatewayEventRepository) GetPending(ctx context.Context, limit int) ([]domain.GatewayEvent, error) {
	// FOR UPDATE SKIP LOCKED keeps concurrent processors off the same event.
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gatewayEventColumns+` FROM gateway_events
		WHERE status = $1 ORDER BY created_at LIMIT $2 FOR UPDATE SKIP LOCKED`,
		domain.GatewayEventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetPending: %w", err)
	}
	defer rows.Close()

	var events []domain.GatewayEvent
	for rows.Next() {
		e, err := scanGatewayEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("GetPending: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetPending: rows: %w", err)
	}
	return events, nil
}

func (r *GatewayEventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.GatewayEventStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE gateway_events SET status = $1, attempts = attempts + 1, last_attempt = now()
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

func scanGatewayEvent(s scanner) (*domain.GatewayEvent, error) {
	var e domain.GatewayEvent
	err := s.Scan(
		&e.ID, &e.EventID, &e.Reference, &e.Outcome, &e.Payload, &e.Status,
		&e.Attempts, &e.LastAttempt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
