package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

const transferColumns = `id, sender_wallet_id, receiver_wallet_id, type, status,
	amount, fee, currency, reference, narration,
	beneficiary_name, beneficiary_account_number, beneficiary_bank_name,
	beneficiary_swift_code, beneficiary_iban, beneficiary_country,
	failure_reason, approved_by, created_at, updated_at, completed_at`

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error {
	var b domain.Beneficiary
	if t.Beneficiary != nil {
		b = *t.Beneficiary
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO transfers (
			id, sender_wallet_id, receiver_wallet_id, type, status,
			amount, fee, currency, reference, narration,
			beneficiary_name, beneficiary_account_number, beneficiary_bank_name,
			beneficiary_swift_code, beneficiary_iban, beneficiary_country,
			failure_reason, approved_by, created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`,
		t.ID, t.SenderWalletID, t.ReceiverWalletID, t.Type, t.Status,
		t.Amount, t.Fee, t.Currency, t.Reference, t.Narration,
		b.Name, b.AccountNumber, b.BankName, b.SwiftCode, b.IBAN, b.Country,
		t.FailureReason, t.ApprovedBy, t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateReference)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id,
	)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrTransferNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// GetForUpdate locks the transfer row for the duration of tx. The approval
// and rejection paths re-check status under this lock, so of two concurrent
// admins the second observes the first's terminal status.
func (r *TransferRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transfer, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id,
	)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrTransferNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return t, nil
}

func (r *TransferRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransferStatus, approvedBy *uuid.UUID, failureReason *string, completedAt *time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transfers
		SET status = $1, approved_by = $2, failure_reason = $3, completed_at = $4, updated_at = now()
		WHERE id = $5`,
		status, approvedBy, failureReason, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrTransferNotFound)
	}
	return nil
}

func (r *TransferRepository) GetBySenderWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transfer, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transfers WHERE sender_wallet_id = $1`, walletID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("GetBySenderWallet: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers
		WHERE sender_wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		walletID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("GetBySenderWallet: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("GetBySenderWallet: scan: %w", err)
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("GetBySenderWallet: rows: %w", err)
	}
	return transfers, total, nil
}

func (r *TransferRepository) GetPending(ctx context.Context, limit, offset int) ([]domain.Transfer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers
		WHERE status = $1 ORDER BY created_at LIMIT $2 OFFSET $3`,
		domain.TransferStatusPending, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("GetPending: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("GetPending: scan: %w", err)
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetPending: rows: %w", err)
	}
	return transfers, nil
}

func scanTransfer(s scanner) (*domain.Transfer, error) {
	var t domain.Transfer
	var receiverWalletID, approvedBy uuid.NullUUID
	var b domain.Beneficiary

	err := s.Scan(
		&t.ID, &t.SenderWalletID, &receiverWalletID, &t.Type, &t.Status,
		&t.Amount, &t.Fee, &t.Currency, &t.Reference, &t.Narration,
		&b.Name, &b.AccountNumber, &b.BankName, &b.SwiftCode, &b.IBAN, &b.Country,
		&t.FailureReason, &approvedBy, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if receiverWalletID.Valid {
		t.ReceiverWalletID = &receiverWalletID.UUID
	}
	if approvedBy.Valid {
		t.ApprovedBy = &approvedBy.UUID
	}
	if b.Name != "" || b.AccountNumber != "" {
		t.Beneficiary = &b
	}

	return &t, nil
}
