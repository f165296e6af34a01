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

const transactionColumns = `id, wallet_id, user_id, kind, direction, status,
	amount, balance_before, balance_after, description, reference,
	transfer_id, loan_id, metadata, created_at, updated_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
			id, wallet_id, user_id, kind, direction, status,
			amount, balance_before, balance_after, description, reference,
			transfer_id, loan_id, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		t.ID, t.WalletID, t.UserID, t.Kind, t.Direction, t.Status,
		t.Amount, t.BalanceBefore, t.BalanceAfter, t.Description, t.Reference,
		t.TransferID, t.LoanID, t.Metadata, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateReference)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByReference: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	return t, nil
}

// GetPendingForUpdate locks a pending entry by reference inside tx. Used by
// the settlement path so an approval retry observes the already-settled row.
func (r *TransactionRepository) GetPendingForUpdate(ctx context.Context, tx *sql.Tx, reference string) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE reference = $1 AND status = $2 FOR UPDATE`,
		reference, domain.TxnStatusPending,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetPendingForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetPendingForUpdate: %w", err)
	}
	return t, nil
}

// Settle moves a pending entry to a terminal status, filling in the real
// amount and balance snapshots. Amount fields never change after this. The
// entry is re-stamped with the settlement time: balance snapshots are taken
// when the money moves, so the chain of completed entries must order by
// settlement, not by when the request was queued.
func (r *TransactionRepository) Settle(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransactionStatus, amount, balanceBefore, balanceAfter decimal.Decimal, settledAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions
		SET status = $1, amount = $2, balance_before = $3, balance_after = $4, created_at = $5, updated_at = $5
		WHERE id = $6 AND status = $7`,
		status, amount, balanceBefore, balanceAfter, settledAt, id, domain.TxnStatusPending,
	)
	if err != nil {
		return fmt.Errorf("Settle: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Settle: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Settle: %w", domain.ErrAlreadyProcessed)
	}
	return nil
}

func (r *TransactionRepository) GetByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE wallet_id = $1`, walletID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByWalletID: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		walletID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByWalletID: %w", err)
	}
	defer rows.Close()

	var entries []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("GetByWalletID: scan: %w", err)
		}
		entries = append(entries, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("GetByWalletID: rows: %w", err)
	}
	return entries, total, nil
}

func (r *TransactionRepository) GetByTransferID(ctx context.Context, transferID uuid.UUID) ([]domain.Transaction, error) {
	return r.getByLink(ctx, `transfer_id`, transferID)
}

func (r *TransactionRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]domain.Transaction, error) {
	return r.getByLink(ctx, `loan_id`, loanID)
}

func (r *TransactionRepository) getByLink(ctx context.Context, column string, id uuid.UUID) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE `+column+` = $1 ORDER BY created_at`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getByLink: %w", err)
	}
	defer rows.Close()

	var entries []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("getByLink: scan: %w", err)
		}
		entries = append(entries, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getByLink: rows: %w", err)
	}
	return entries, nil
}

// SumCompletedTransferDebits totals the sender side of completed transfers
// for a wallet since the given instant. Feeds the daily and monthly limit
// checks.
func (r *TransactionRepository) SumCompletedTransferDebits(ctx context.Context, walletID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	return sumCompletedTransferDebits(ctx, r.db, walletID, since)
}

// SumCompletedTransferDebitsTx is the same total read inside tx, after the
// wallet row lock is held, so the result cannot go stale before the
// settlement commits.
func (r *TransactionRepository) SumCompletedTransferDebitsTx(ctx context.Context, tx *sql.Tx, walletID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	return sumCompletedTransferDebits(ctx, tx, walletID, since)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sumCompletedTransferDebits(ctx context.Context, q rowQuerier, walletID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE wallet_id = $1 AND kind = $2 AND direction = $3 AND status = $4 AND created_at >= $5`,
		walletID, domain.TxnKindTransfer, domain.TxnDirectionDebit, domain.TxnStatusCompleted, since,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sumCompletedTransferDebits: %w", err)
	}
	return sum, nil
}

// DeleteTerminal removes a terminal entry owned by the user. Pending or
// processing entries are never deleted.
func (r *TransactionRepository) DeleteTerminal(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions
		WHERE id = $1 AND user_id = $2 AND status IN ($3, $4)`,
		id, userID, domain.TxnStatusCompleted, domain.TxnStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("DeleteTerminal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteTerminal: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("DeleteTerminal: %w", domain.ErrEntryNotPrunable)
	}
	return nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var transferID, loanID uuid.NullUUID
	var metadata *[]byte

	err := s.Scan(
		&t.ID, &t.WalletID, &t.UserID, &t.Kind, &t.Direction, &t.Status,
		&t.Amount, &t.BalanceBefore, &t.BalanceAfter, &t.Description, &t.Reference,
		&transferID, &loanID, &metadata, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if transferID.Valid {
		t.TransferID = &transferID.UUID
	}
	if loanID.Valid {
		t.LoanID = &loanID.UUID
	}
	if metadata != nil {
		t.Metadata = *metadata
	}

	return &t, nil
}
