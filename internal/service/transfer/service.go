// Package transfer orchestrates peer, domestic and international transfers.
// Internal transfers settle instantly when no approval is required; the rest
// queue as pending and settle only through an admin decision.
package transfer

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/kyc"
	"github.com/demilade-ak/vaultbank/internal/ledger"
)

// InternalApprovalFlag queues internal transfers for admin review instead of
// settling them at request time.
const InternalApprovalFlag = "internal_transfers_require_approval"

type transferRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transfer, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransferStatus, approvedBy *uuid.UUID, failureReason *string, completedAt *time.Time) error
	GetBySenderWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transfer, int, error)
	GetPending(ctx context.Context, limit, offset int) ([]domain.Transfer, error)
}

type walletRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Wallet, error)
}

type ledgerStore interface {
	Apply(ctx context.Context, tx *sql.Tx, d ledger.Delta) (*domain.Transaction, error)
	LogPending(ctx context.Context, tx *sql.Tx, d ledger.Delta) (*domain.Transaction, error)
	Fail(ctx context.Context, tx *sql.Tx, reference string) error
}

type feeSchedule interface {
	Fee(amount decimal.Decimal, transferType domain.TransferType) decimal.Decimal
}

type limitChecker interface {
	Check(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error
	CheckTx(ctx context.Context, tx *sql.Tx, walletID uuid.UUID, amount decimal.Decimal) error
}

type codeGate interface {
	RequirementMet(ctx context.Context, userID uuid.UUID, walletOverride bool) (bool, error)
}

type settingsRepo interface {
	GetBool(ctx context.Context, key string) (bool, error)
}

type notifier interface {
	Enqueue(ctx context.Context, userID uuid.UUID, title, message string, severity domain.NotificationSeverity)
}

type Service struct {
	transfers transferRepo
	wallets   walletRepo
	ledger    ledgerStore
	fees      feeSchedule
	limits    limitChecker
	codes     codeGate
	settings  settingsRepo
	verifier  kyc.Verifier
	notify    notifier
	db        *sql.DB
}

func NewService(
	transfers transferRepo,
	wallets walletRepo,
	ledgerStore ledgerStore,
	fees feeSchedule,
	limits limitChecker,
	codes codeGate,
	settings settingsRepo,
	verifier kyc.Verifier,
	notify notifier,
	db *sql.DB,
) *Service {
	return &Service{
		transfers: transfers,
		wallets:   wallets,
		ledger:    ledgerStore,
		fees:      fees,
		limits:    limits,
		codes:     codes,
		settings:  settings,
		verifier:  verifier,
		notify:    notify,
		db:        db,
	}
}

func (s *Service) GetForUser(ctx context.Context, transferID, userID uuid.UUID) (*domain.Transfer, error) {
	t, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("GetForUser: %w", err)
	}

	w, err := s.wallets.GetByID(ctx, t.SenderWalletID)
	if err != nil {
		return nil, fmt.Errorf("GetForUser: %w", err)
	}
	if w.UserID != userID {
		return nil, fmt.Errorf("GetForUser: %w", domain.ErrTransferNotFound)
	}
	return t, nil
}

func (s *Service) ListForWallet(ctx context.Context, walletID, userID uuid.UUID, limit, offset int) ([]domain.Transfer, int, error) {
	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, 0, fmt.Errorf("ListForWallet: %w", err)
	}
	if w.UserID != userID {
		return nil, 0, fmt.Errorf("ListForWallet: %w", domain.ErrWalletNotFound)
	}

	transfers, total, err := s.transfers.GetBySenderWallet(ctx, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListForWallet: %w", err)
	}
	return transfers, total, nil
}

func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]domain.Transfer, error) {
	transfers, err := s.transfers.GetPending(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	return transfers, nil
}

// lockWalletsInOrder acquires row locks in a deterministic order so two
// transfers touching the same wallets in opposite directions cannot
// deadlock.
func lockWalletsInOrder(ctx context.Context, tx *sql.Tx, wallets walletRepo, ids ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	result := make(map[uuid.UUID]*domain.Wallet, len(ids))
	for _, id := range sorted {
		w, err := wallets.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("lockWalletsInOrder: %w", err)
		}
		result[id] = w
	}
	return result, nil
}

func verifyWalletActive(w *domain.Wallet, role string) error {
	if w.Status == domain.WalletStatusFrozen {
		return fmt.Errorf("%s: %w", role, domain.ErrWalletFrozen)
	}
	if w.Status != domain.WalletStatusActive {
		return fmt.Errorf("%s: %w", role, domain.ErrWalletClosed)
	}
	return nil
}
