package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

const loanOfferColumns = `id, loan_id, proposed_principal, proposed_rate_pct,
	proposed_duration, status, created_by, created_at, decided_at`

type LoanOfferRepository struct {
	db *sql.DB
}

func NewLoanOfferRepository(db *sql.DB) *LoanOfferRepository {
	return &LoanOfferRepository{db: db}
}

func (r *LoanOfferRepository) Create(ctx context.Context, o *domain.LoanOffer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO loan_offers (
			id, loan_id, proposed_principal, proposed_rate_pct,
			proposed_duration, status, created_by, created_at, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.LoanID, o.ProposedPrincipal, o.ProposedRatePct,
		o.ProposedDuration, o.Status, o.CreatedBy, o.CreatedAt, o.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LoanOfferRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.LoanOffer, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+loanOfferColumns+` FROM loan_offers WHERE id = $1 FOR UPDATE`, id,
	)
	o, err := scanLoanOffer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return o, nil
}

func (r *LoanOfferRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]domain.LoanOffer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanOfferColumns+` FROM loan_offers WHERE loan_id = $1 ORDER BY created_at DESC`, loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByLoanID: %w", err)
	}
	defer rows.Close()

	var offers []domain.LoanOffer
	for rows.Next() {
		o, err := scanLoanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByLoanID: scan: %w", err)
		}
		offers = append(offers, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByLoanID: rows: %w", err)
	}
	return offers, nil
}

func (r *LoanOfferRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.LoanOfferStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE loan_offers SET status = $1, decided_at = now()
		WHERE id = $2 AND status = $3`,
		status, id, domain.LoanOfferStatusProposed,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrOfferNotOpen)
	}
	return nil
}

func scanLoanOffer(s scanner) (*domain.LoanOffer, error) {
	var o domain.LoanOffer
	err := s.Scan(
		&o.ID, &o.LoanID, &o.ProposedPrincipal, &o.ProposedRatePct,
		&o.ProposedDuration, &o.Status, &o.CreatedBy, &o.CreatedAt, &o.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
