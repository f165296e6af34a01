// Package ledger is the single commit path for money. Every balance change
// in the system, whatever triggered it, goes through Store.Apply inside a
// database transaction that also appends the matching ledger entry, so the
// wallet balance and its entry chain can never diverge.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

type walletRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance decimal.Decimal, newVersion int64) error
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	GetPendingForUpdate(ctx context.Context, tx *sql.Tx, reference string) (*domain.Transaction, error)
	Settle(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransactionStatus, amount, balanceBefore, balanceAfter decimal.Decimal, settledAt time.Time) error
}

type Store struct {
	wallets walletRepo
	txns    transactionRepo
	db      *sql.DB
}

func NewStore(wallets walletRepo, txns transactionRepo, db *sql.DB) *Store {
	return &Store{wallets: wallets, txns: txns, db: db}
}

// Delta describes one balance change. Amount is signed: negative debits the
// wallet, positive credits it.
type Delta struct {
	WalletID    uuid.UUID
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Kind        domain.TransactionKind
	Reference   string
	Description string
	TransferID  *uuid.UUID
	LoanID      *uuid.UUID
	Metadata    json.RawMessage

	// AllowNegative permits the balance to go below zero. Reserved for
	// administrative adjustments; normal callers leave it false.
	AllowNegative bool
}

// Apply executes one balance change inside the caller's transaction: lock
// the wallet, recompute the balance from the locked row, persist it, and
// record the ledger entry. If a pending entry already exists under the same
// reference it is settled in place rather than duplicated, which makes
// approval retries idempotent.
func (s *Store) Apply(ctx context.Context, tx *sql.Tx, d Delta) (*domain.Transaction, error) {
	if d.Amount.IsZero() {
		return nil, fmt.Errorf("Apply: %w", domain.ErrInvalidAmount)
	}

	w, err := s.wallets.GetForUpdate(ctx, tx, d.WalletID)
	if err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}

	newBalance := w.Balance.Add(d.Amount)
	if newBalance.IsNegative() && !d.AllowNegative {
		return nil, fmt.Errorf("Apply: %w", domain.ErrInsufficientFunds)
	}

	direction := domain.TxnDirectionCredit
	if d.Amount.IsNegative() {
		direction = domain.TxnDirectionDebit
	}

	now := time.Now().UTC()
	entry := &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      w.ID,
		UserID:        w.UserID,
		Kind:          d.Kind,
		Direction:     direction,
		Status:        domain.TxnStatusCompleted,
		Amount:        d.Amount.Abs(),
		BalanceBefore: w.Balance,
		BalanceAfter:  newBalance,
		Description:   d.Description,
		Reference:     d.Reference,
		TransferID:    d.TransferID,
		LoanID:        d.LoanID,
		Metadata:      d.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	pending, err := s.txns.GetPendingForUpdate(ctx, tx, d.Reference)
	switch {
	case err == nil:
		// The entry takes the settlement timestamp, not its enqueue time:
		// other entries may have completed in between, and the balance
		// chain orders by when each balance snapshot was taken.
		if err := s.txns.Settle(ctx, tx, pending.ID, domain.TxnStatusCompleted, entry.Amount, entry.BalanceBefore, entry.BalanceAfter, now); err != nil {
			return nil, fmt.Errorf("Apply: settle: %w", err)
		}
		entry.ID = pending.ID
	case errors.Is(err, domain.ErrNotFound):
		if err := s.txns.Create(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("Apply: %w", err)
		}
	default:
		return nil, fmt.Errorf("Apply: %w", err)
	}

	if err := s.wallets.UpdateBalance(ctx, tx, w.ID, newBalance, w.Version+1); err != nil {
		return nil, fmt.Errorf("Apply: update balance: %w", err)
	}

	return entry, nil
}

// ApplyStandalone wraps a single delta in its own transaction. Multi-wallet
// operations must share one transaction and call Apply directly.
func (s *Store) ApplyStandalone(ctx context.Context, d Delta) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ApplyStandalone: begin tx: %w", err)
	}
	defer tx.Rollback()

	entry, err := s.Apply(ctx, tx, d)
	if err != nil {
		return nil, fmt.Errorf("ApplyStandalone: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ApplyStandalone: commit: %w", err)
	}
	return entry, nil
}

// LogPending records an entry for a request that has not settled yet. No
// balance changes; the snapshots are equal until Apply or Fail settles it.
func (s *Store) LogPending(ctx context.Context, tx *sql.Tx, d Delta) (*domain.Transaction, error) {
	w, err := s.wallets.GetForUpdate(ctx, tx, d.WalletID)
	if err != nil {
		return nil, fmt.Errorf("LogPending: %w", err)
	}

	direction := domain.TxnDirectionCredit
	if d.Amount.IsNegative() {
		direction = domain.TxnDirectionDebit
	}

	now := time.Now().UTC()
	entry := &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      w.ID,
		UserID:        w.UserID,
		Kind:          d.Kind,
		Direction:     direction,
		Status:        domain.TxnStatusPending,
		Amount:        d.Amount.Abs(),
		BalanceBefore: w.Balance,
		BalanceAfter:  w.Balance,
		Description:   d.Description,
		Reference:     d.Reference,
		TransferID:    d.TransferID,
		LoanID:        d.LoanID,
		Metadata:      d.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.txns.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("LogPending: %w", err)
	}
	return entry, nil
}

// Fail settles a pending entry to failed without touching the balance. A
// missing pending entry is not an error: the instant path never logs one.
func (s *Store) Fail(ctx context.Context, tx *sql.Tx, reference string) error {
	pending, err := s.txns.GetPendingForUpdate(ctx, tx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("Fail: %w", err)
	}

	if err := s.txns.Settle(ctx, tx, pending.ID, domain.TxnStatusFailed, pending.Amount, pending.BalanceBefore, pending.BalanceAfter, time.Now().UTC()); err != nil {
		return fmt.Errorf("Fail: %w", err)
	}
	return nil
}
