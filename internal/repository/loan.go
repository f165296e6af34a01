package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

const loanColumns = `id, user_id, wallet_id, principal, currency, duration_months,
	annual_rate_pct, monthly_payment, status, total_repaid, next_payment_due,
	fee_amount, fee_instructions, fee_proof_ref, purpose, disbursed_at,
	created_at, updated_at`

type LoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) Create(ctx context.Context, l *domain.Loan) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO loans (
			id, user_id, wallet_id, principal, currency, duration_months,
			annual_rate_pct, monthly_payment, status, total_repaid, next_payment_due,
			fee_amount, fee_instructions, fee_proof_ref, purpose, disbursed_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		l.ID, l.UserID, l.WalletID, l.Principal, l.Currency, l.DurationMonths,
		l.AnnualRatePct, l.MonthlyPayment, l.Status, l.TotalRepaid, l.NextPaymentDue,
		l.FeeAmount, l.FeeInstructions, l.FeeProofRef, l.Purpose, l.DisbursedAt,
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, id,
	)
	l, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrLoanNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return l, nil
}

func (r *LoanRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Loan, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id,
	)
	l, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrLoanNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return l, nil
}

func (r *LoanRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByUserID: scan: %w", err)
		}
		loans = append(loans, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByUserID: rows: %w", err)
	}
	return loans, nil
}

// UpdateStatus transitions the loan inside tx, guarded by the expected
// current status so a concurrent transition loses cleanly.
func (r *LoanRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.LoanStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE loans SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrAlreadyProcessed)
	}
	return nil
}

func (r *LoanRepository) SetFeeRequest(ctx context.Context, tx *sql.Tx, id uuid.UUID, amount decimal.Decimal, instructions string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE loans SET fee_amount = $1, fee_instructions = $2, updated_at = now() WHERE id = $3`,
		amount, instructions, id,
	)
	if err != nil {
		return fmt.Errorf("SetFeeRequest: %w", err)
	}
	return nil
}

func (r *LoanRepository) SetFeeProof(ctx context.Context, tx *sql.Tx, id uuid.UUID, proofRef string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE loans SET fee_proof_ref = $1, updated_at = now() WHERE id = $2`,
		proofRef, id,
	)
	if err != nil {
		return fmt.Errorf("SetFeeProof: %w", err)
	}
	return nil
}

func (r *LoanRepository) SetSchedule(ctx context.Context, tx *sql.Tx, id uuid.UUID, monthlyPayment decimal.Decimal, nextDue, disbursedAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE loans SET monthly_payment = $1, next_payment_due = $2, disbursed_at = $3, updated_at = now()
		WHERE id = $4`,
		monthlyPayment, nextDue, disbursedAt, id,
	)
	if err != nil {
		return fmt.Errorf("SetSchedule: %w", err)
	}
	return nil
}

func (r *LoanRepository) UpdateRepayment(ctx context.Context, tx *sql.Tx, id uuid.UUID, totalRepaid decimal.Decimal, nextDue *time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE loans SET total_repaid = $1, next_payment_due = $2, updated_at = now() WHERE id = $3`,
		totalRepaid, nextDue, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateRepayment: %w", err)
	}
	return nil
}

// UpdateTerms rewrites principal, rate and duration after an offer is
// accepted. Only legal while the application is still pending.
func (r *LoanRepository) UpdateTerms(ctx context.Context, tx *sql.Tx, id uuid.UUID, principal, ratePct decimal.Decimal, durationMonths int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE loans SET principal = $1, annual_rate_pct = $2, duration_months = $3, updated_at = now()
		WHERE id = $4 AND status = $5`,
		principal, ratePct, durationMonths, id, domain.LoanStatusPending,
	)
	if err != nil {
		return fmt.Errorf("UpdateTerms: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateTerms: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateTerms: %w", domain.ErrAlreadyProcessed)
	}
	return nil
}

func scanLoan(s scanner) (*domain.Loan, error) {
	var l domain.Loan
	var monthlyPayment, feeAmount decimal.NullDecimal

	err := s.Scan(
		&l.ID, &l.UserID, &l.WalletID, &l.Principal, &l.Currency, &l.DurationMonths,
		&l.AnnualRatePct, &monthlyPayment, &l.Status, &l.TotalRepaid, &l.NextPaymentDue,
		&feeAmount, &l.FeeInstructions, &l.FeeProofRef, &l.Purpose, &l.DisbursedAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if monthlyPayment.Valid {
		l.MonthlyPayment = &monthlyPayment.Decimal
	}
	if feeAmount.Valid {
		l.FeeAmount = &feeAmount.Decimal
	}

	return &l, nil
}
