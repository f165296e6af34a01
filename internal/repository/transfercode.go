package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

const transferCodeColumns = `id, user_id, category, code, active, verified,
	issued_by, created_at, verified_at`

type TransferCodeRepository struct {
	db *sql.DB
}

func NewTransferCodeRepository(db *sql.DB) *TransferCodeRepository {
	return &TransferCodeRepository{db: db}
}

// Upsert replaces any previous code for the (user, category) pair. Issuing a
// new code resets verification.
func (r *TransferCodeRepository) Upsert(ctx context.Context, c *domain.TransferCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transfer_codes (id, user_id, category, code, active, verified, issued_by, created_at, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, category) DO UPDATE
		SET code = EXCLUDED.code, active = EXCLUDED.active, verified = false,
			issued_by = EXCLUDED.issued_by, created_at = EXCLUDED.created_at, verified_at = NULL`,
		c.ID, c.UserID, c.Category, c.Code, c.Active, c.Verified, c.IssuedBy, c.CreatedAt, c.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

func (r *TransferCodeRepository) GetByUserAndCategory(ctx context.Context, userID uuid.UUID, category domain.TransferCodeCategory) (*domain.TransferCode, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transferCodeColumns+` FROM transfer_codes
		WHERE user_id = $1 AND category = $2`,
		userID, category,
	)
	c, err := scanTransferCode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUserAndCategory: %w", domain.ErrTransferCodeNotIssued)
		}
		return nil, fmt.Errorf("GetByUserAndCategory: %w", err)
	}
	return c, nil
}

func (r *TransferCodeRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.TransferCode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transferCodeColumns+` FROM transfer_codes WHERE user_id = $1 ORDER BY category`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	defer rows.Close()

	var codes []domain.TransferCode
	for rows.Next() {
		c, err := scanTransferCode(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByUserID: scan: %w", err)
		}
		codes = append(codes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByUserID: rows: %w", err)
	}
	return codes, nil
}

// MarkVerified flips the verified flag, guarded on the row still being
// active and unverified so a concurrent verify attempt loses.
func (r *TransferCodeRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transfer_codes SET verified = true, verified_at = now()
		WHERE id = $1 AND active = true AND verified = false`,
		id,
	)
	if err != nil {
		return fmt.Errorf("MarkVerified: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkVerified: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkVerified: %w", domain.ErrCodeAlreadyVerified)
	}
	return nil
}

func (r *TransferCodeRepository) CountActiveVerified(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transfer_codes
		WHERE user_id = $1 AND active = true AND verified = true`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountActiveVerified: %w", err)
	}
	return n, nil
}

func scanTransferCode(s scanner) (*domain.TransferCode, error) {
	var c domain.TransferCode
	err := s.Scan(
		&c.ID, &c.UserID, &c.Category, &c.Code, &c.Active, &c.Verified,
		&c.IssuedBy, &c.CreatedAt, &c.VerifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
