// Package reconcile owns the gateway leg of deposits and withdrawals: it
// initiates payments with the provider and settles them when webhook events
// arrive. Withdrawals pre-deduct the wallet at request time; a failure event
// refunds the pre-deducted amount.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/gateway"
	"github.com/demilade-ak/vaultbank/internal/kyc"
	"github.com/demilade-ak/vaultbank/internal/ledger"
	"github.com/demilade-ak/vaultbank/internal/logging"
)

type paymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.GatewayPayment) error
	GetByReference(ctx context.Context, reference string) (*domain.GatewayPayment, error)
	GetForUpdateByReference(ctx context.Context, tx *sql.Tx, reference string) (*domain.GatewayPayment, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.GatewayPaymentStatus, providerRef, failureReason *string) error
}

type walletRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Wallet, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type ledgerStore interface {
	Apply(ctx context.Context, tx *sql.Tx, d ledger.Delta) (*domain.Transaction, error)
}

type providerClient interface {
	InitializeCharge(ctx context.Context, req gateway.ChargeRequest) (providerRef, checkoutURL string, err error)
	InitiatePayout(ctx context.Context, req gateway.PayoutRequest) (providerRef string, err error)
}

type notifier interface {
	Enqueue(ctx context.Context, userID uuid.UUID, title, message string, severity domain.NotificationSeverity)
}

type Service struct {
	payments paymentRepo
	wallets  walletRepo
	users    userRepo
	ledger   ledgerStore
	provider providerClient
	verifier kyc.Verifier
	notify   notifier
	name     string
	db       *sql.DB
}

func NewService(
	payments paymentRepo,
	wallets walletRepo,
	users userRepo,
	ledgerStore ledgerStore,
	provider providerClient,
	verifier kyc.Verifier,
	notify notifier,
	providerName string,
	db *sql.DB,
) *Service {
	return &Service{
		payments: payments,
		wallets:  wallets,
		users:    users,
		ledger:   ledgerStore,
		provider: provider,
		verifier: verifier,
		notify:   notify,
		name:     providerName,
		db:       db,
	}
}

type DepositResult struct {
	Payment     *domain.GatewayPayment
	CheckoutURL string
}

// Deposit books a pending gateway payment and asks the provider to collect.
// The wallet is only credited when the success webhook lands.
func (s *Service) Deposit(ctx context.Context, userID, walletID uuid.UUID, amount decimal.Decimal) (*DepositResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("Deposit: %w", domain.ErrInvalidAmount)
	}

	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	if w.UserID != userID {
		return nil, fmt.Errorf("Deposit: %w", domain.ErrWalletNotFound)
	}
	if w.Status != domain.WalletStatusActive {
		return nil, fmt.Errorf("Deposit: %w", domain.ErrWalletClosed)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	p := &domain.GatewayPayment{
		ID:        uuid.New(),
		UserID:    userID,
		WalletID:  w.ID,
		Type:      domain.GatewayPaymentTypeDeposit,
		Amount:    amount,
		Currency:  w.Currency,
		Reference: "DEP-" + uuid.NewString(),
		Status:    domain.GatewayPaymentStatusPending,
		Provider:  s.name,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Deposit: begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Deposit: commit: %w", err)
	}

	providerRef, checkoutURL, err := s.provider.InitializeCharge(ctx, gateway.ChargeRequest{
		Reference: p.Reference,
		Amount:    amount,
		Currency:  w.Currency,
		Email:     u.Email,
	})
	if err != nil {
		// The charge never reached the provider, so no webhook will ever
		// settle this payment; fail it now instead of leaving it pending.
		if ferr := s.failAndRefund(ctx, p, "charge initiation failed"); ferr != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "deposit failure after init error",
				"reference", p.Reference, "error", ferr)
		}
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	p.ProviderRef = &providerRef

	logging.FromContext(ctx).InfoContext(ctx, "deposit initiated",
		"reference", p.Reference, "amount", amount, "currency", w.Currency)
	return &DepositResult{Payment: p, CheckoutURL: checkoutURL}, nil
}

// Withdraw pre-deducts the wallet and asks the provider to pay out. The
// deduction is refunded if the gateway later reports failure.
func (s *Service) Withdraw(ctx context.Context, userID, walletID uuid.UUID, amount decimal.Decimal, accountNumber, bankName string) (*domain.GatewayPayment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("Withdraw: %w", domain.ErrInvalidAmount)
	}
	if accountNumber == "" {
		return nil, fmt.Errorf("Withdraw: %w", domain.ErrInvalidRequest)
	}

	if err := kyc.RequireApproved(ctx, s.verifier, userID); err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}

	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}
	if w.UserID != userID {
		return nil, fmt.Errorf("Withdraw: %w", domain.ErrWalletNotFound)
	}
	if w.Status != domain.WalletStatusActive {
		return nil, fmt.Errorf("Withdraw: %w", domain.ErrWalletClosed)
	}

	p := &domain.GatewayPayment{
		ID:        uuid.New(),
		UserID:    userID,
		WalletID:  w.ID,
		Type:      domain.GatewayPaymentTypeWithdrawal,
		Amount:    amount,
		Currency:  w.Currency,
		Reference: "WDR-" + uuid.NewString(),
		Status:    domain.GatewayPaymentStatusPending,
		Provider:  s.name,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Withdraw: begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}

	if _, err := s.ledger.Apply(ctx, tx, ledger.Delta{
		WalletID:    w.ID,
		UserID:      userID,
		Amount:      amount.Neg(),
		Kind:        domain.TxnKindWithdrawal,
		Reference:   p.Reference + "/debit",
		Description: "withdrawal to " + bankName,
	}); err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Withdraw: commit: %w", err)
	}

	providerRef, err := s.provider.InitiatePayout(ctx, gateway.PayoutRequest{
		Reference:     p.Reference,
		Amount:        amount,
		Currency:      w.Currency,
		AccountNumber: accountNumber,
		BankName:      bankName,
	})
	if err != nil {
		// The payout never reached the provider; fail the payment and put
		// the money back immediately rather than waiting for a webhook.
		if ferr := s.failAndRefund(ctx, p, "payout initiation failed"); ferr != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "withdrawal refund after init failure",
				"reference", p.Reference, "error", ferr)
		}
		return nil, fmt.Errorf("Withdraw: %w", err)
	}
	p.ProviderRef = &providerRef

	logging.FromContext(ctx).InfoContext(ctx, "withdrawal initiated",
		"reference", p.Reference, "amount", amount, "currency", w.Currency)
	return p, nil
}

func (s *Service) GetByReference(ctx context.Context, reference string, userID uuid.UUID) (*domain.GatewayPayment, error) {
	p, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("GetByReference: %w", domain.ErrNotFound)
	}
	return p, nil
}
