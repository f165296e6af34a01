// Package loan implements the application, approval, disbursement and
// repayment lifecycle. Every balance change flows through the ledger store
// inside the same transaction as the status move it belongs to.
package loan

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/kyc"
	"github.com/demilade-ak/vaultbank/internal/ledger"
)

type loanRepo interface {
	Create(ctx context.Context, l *domain.Loan) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Loan, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.LoanStatus) error
	SetFeeRequest(ctx context.Context, tx *sql.Tx, id uuid.UUID, amount decimal.Decimal, instructions string) error
	SetFeeProof(ctx context.Context, tx *sql.Tx, id uuid.UUID, proofRef string) error
	SetSchedule(ctx context.Context, tx *sql.Tx, id uuid.UUID, monthlyPayment decimal.Decimal, nextDue, disbursedAt time.Time) error
	UpdateRepayment(ctx context.Context, tx *sql.Tx, id uuid.UUID, totalRepaid decimal.Decimal, nextDue *time.Time) error
	UpdateTerms(ctx context.Context, tx *sql.Tx, id uuid.UUID, principal, ratePct decimal.Decimal, durationMonths int) error
}

type offerRepo interface {
	Create(ctx context.Context, o *domain.LoanOffer) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.LoanOffer, error)
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]domain.LoanOffer, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.LoanOfferStatus) error
}

type walletRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
}

type ledgerStore interface {
	Apply(ctx context.Context, tx *sql.Tx, d ledger.Delta) (*domain.Transaction, error)
}

type notifier interface {
	Enqueue(ctx context.Context, userID uuid.UUID, title, message string, severity domain.NotificationSeverity)
}

type Service struct {
	loans        loanRepo
	offers       offerRepo
	wallets      walletRepo
	ledger       ledgerStore
	verifier     kyc.Verifier
	notify       notifier
	minRepayment decimal.Decimal
	db           *sql.DB
}

func NewService(
	loans loanRepo,
	offers offerRepo,
	wallets walletRepo,
	ledgerStore ledgerStore,
	verifier kyc.Verifier,
	notify notifier,
	minRepayment decimal.Decimal,
	db *sql.DB,
) *Service {
	return &Service{
		loans:        loans,
		offers:       offers,
		wallets:      wallets,
		ledger:       ledgerStore,
		verifier:     verifier,
		notify:       notify,
		minRepayment: minRepayment,
		db:           db,
	}
}

func (s *Service) GetForUser(ctx context.Context, loanID, userID uuid.UUID) (*domain.Loan, error) {
	l, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("GetForUser: %w", err)
	}
	if l.UserID != userID {
		return nil, fmt.Errorf("GetForUser: %w", domain.ErrLoanNotFound)
	}
	return l, nil
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error) {
	loans, err := s.loans.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListForUser: %w", err)
	}
	return loans, nil
}

// Summary augments a loan with derived figures: outstanding principal, the
// total repayable over the term, and interest accrued linearly from
// disbursement to now.
type Summary struct {
	Loan            *domain.Loan
	Outstanding     decimal.Decimal
	TotalRepayable  decimal.Decimal
	AccruedInterest decimal.Decimal
}

func (s *Service) Summarize(ctx context.Context, loanID, userID uuid.UUID) (*Summary, error) {
	l, err := s.GetForUser(ctx, loanID, userID)
	if err != nil {
		return nil, fmt.Errorf("Summarize: %w", err)
	}

	rate := MonthlyRate(l.AnnualRatePct)
	sum := &Summary{
		Loan:           l,
		Outstanding:    l.Outstanding(),
		TotalRepayable: TotalRepayable(l.Principal, rate, l.DurationMonths),
	}
	sum.AccruedInterest = accruedInterest(l, sum.TotalRepayable, time.Now().UTC())
	return sum, nil
}

// accruedInterest pro-rates the loan's total interest linearly over its term,
// clipped to the full term once the loan matures. Loans that were never
// disbursed accrue nothing.
func accruedInterest(l *domain.Loan, totalRepayable decimal.Decimal, now time.Time) decimal.Decimal {
	if l.DisbursedAt == nil {
		return decimal.Zero
	}
	totalInterest := totalRepayable.Sub(l.Principal)
	if !totalInterest.IsPositive() {
		return decimal.Zero
	}

	termDays := decimal.NewFromInt(int64(l.DurationMonths) * 30)
	elapsed := decimal.NewFromFloat(now.Sub(*l.DisbursedAt).Hours() / 24)
	if elapsed.IsNegative() {
		return decimal.Zero
	}
	if elapsed.GreaterThan(termDays) {
		elapsed = termDays
	}
	return totalInterest.Mul(elapsed).Div(termDays).Round(2)
}
