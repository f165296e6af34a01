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
	"github.com/demilade-ak/vaultbank/internal/logging"
)

type ApplyRequest struct {
	UserID         uuid.UUID
	WalletID       uuid.UUID
	Principal      decimal.Decimal
	DurationMonths int
	AnnualRatePct  decimal.Decimal
	Purpose        string
}

// Apply files a new loan application in pending status. Nothing is disbursed
// until an admin walks it through the pipeline.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*domain.Loan, error) {
	if req.Principal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("Apply: %w", domain.ErrInvalidAmount)
	}
	if req.DurationMonths <= 0 || req.AnnualRatePct.IsNegative() {
		return nil, fmt.Errorf("Apply: %w", domain.ErrInvalidRequest)
	}

	if err := kyc.RequireApproved(ctx, s.verifier, req.UserID); err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}

	w, err := s.wallets.GetByID(ctx, req.WalletID)
	if err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}
	if w.UserID != req.UserID {
		return nil, fmt.Errorf("Apply: %w", domain.ErrWalletNotFound)
	}
	if w.Status != domain.WalletStatusActive {
		return nil, fmt.Errorf("Apply: %w", domain.ErrWalletClosed)
	}

	l := &domain.Loan{
		ID:             uuid.New(),
		UserID:         req.UserID,
		WalletID:       w.ID,
		Principal:      req.Principal,
		Currency:       w.Currency,
		DurationMonths: req.DurationMonths,
		AnnualRatePct:  req.AnnualRatePct,
		Status:         domain.LoanStatusPending,
		TotalRepaid:    decimal.Zero,
		Purpose:        req.Purpose,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.loans.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}

	logging.FromContext(ctx).InfoContext(ctx, "loan application filed",
		"loan_id", l.ID, "user_id", l.UserID, "principal", l.Principal)
	return l, nil
}

// transition moves a loan between statuses under a row lock, optionally
// running extra work inside the same transaction.
func (s *Service) transition(ctx context.Context, loanID uuid.UUID, to domain.LoanStatus, within func(ctx context.Context, tx *sql.Tx, l *domain.Loan) error) (*domain.Loan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transition: begin: %w", err)
	}
	defer tx.Rollback()

	l, err := s.loans.GetForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}
	if !l.Status.CanTransitionTo(to) {
		if l.Status.IsTerminal() || l.Status == to {
			return nil, fmt.Errorf("transition: %w", domain.ErrAlreadyProcessed)
		}
		return nil, fmt.Errorf("transition %s -> %s: %w", l.Status, to, domain.ErrInvalidTransition)
	}

	if within != nil {
		if err := within(ctx, tx, l); err != nil {
			return nil, err
		}
	}

	if err := s.loans.UpdateStatus(ctx, tx, l.ID, l.Status, to); err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("transition: commit: %w", err)
	}
	l.Status = to
	return l, nil
}

// RequestFee moves a pending application to fee_pending with off-platform
// payment instructions attached.
func (s *Service) RequestFee(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal, instructions string) (*domain.Loan, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("RequestFee: %w", domain.ErrInvalidAmount)
	}

	l, err := s.transition(ctx, loanID, domain.LoanStatusFeePending, func(ctx context.Context, tx *sql.Tx, l *domain.Loan) error {
		return s.loans.SetFeeRequest(ctx, tx, l.ID, amount, instructions)
	})
	if err != nil {
		return nil, fmt.Errorf("RequestFee: %w", err)
	}

	l.FeeAmount = &amount
	l.FeeInstructions = &instructions
	s.notify.Enqueue(ctx, l.UserID, "Loan processing fee",
		fmt.Sprintf("A processing fee of %s %s is required for your loan application.", amount, l.Currency),
		domain.NotificationSeverityInfo)
	return l, nil
}

// SubmitFeeProof records the user's payment evidence and moves the
// application to fee_paid for admin verification.
func (s *Service) SubmitFeeProof(ctx context.Context, loanID, userID uuid.UUID, proofRef string) (*domain.Loan, error) {
	if proofRef == "" {
		return nil, fmt.Errorf("SubmitFeeProof: %w", domain.ErrInvalidRequest)
	}

	l, err := s.transition(ctx, loanID, domain.LoanStatusFeePaid, func(ctx context.Context, tx *sql.Tx, l *domain.Loan) error {
		if l.UserID != userID {
			return fmt.Errorf("SubmitFeeProof: %w", domain.ErrLoanNotFound)
		}
		return s.loans.SetFeeProof(ctx, tx, l.ID, proofRef)
	})
	if err != nil {
		return nil, fmt.Errorf("SubmitFeeProof: %w", err)
	}
	l.FeeProofRef = &proofRef
	return l, nil
}

// Approve accepts the application, either directly from pending or after the
// fee leg.
func (s *Service) Approve(ctx context.Context, loanID, adminID uuid.UUID) (*domain.Loan, error) {
	l, err := s.transition(ctx, loanID, domain.LoanStatusApproved, nil)
	if err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}

	logging.FromContext(ctx).InfoContext(ctx, "loan approved", "loan_id", l.ID, "admin_id", adminID)
	s.notify.Enqueue(ctx, l.UserID, "Loan approved",
		fmt.Sprintf("Your loan of %s %s has been approved.", l.Principal, l.Currency),
		domain.NotificationSeverityInfo)
	return l, nil
}

// Reject declines a pending application. Applications past pending cannot be
// rejected.
func (s *Service) Reject(ctx context.Context, loanID, adminID uuid.UUID, reason string) (*domain.Loan, error) {
	l, err := s.transition(ctx, loanID, domain.LoanStatusRejected, nil)
	if err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}

	logging.FromContext(ctx).InfoContext(ctx, "loan rejected",
		"loan_id", l.ID, "admin_id", adminID, "reason", reason)
	s.notify.Enqueue(ctx, l.UserID, "Loan application declined",
		fmt.Sprintf("Your loan application was declined: %s", reason),
		domain.NotificationSeverityWarning)
	return l, nil
}

// Disburse credits the principal to the borrower's wallet, computes the
// amortized installment and activates the loan, all in one transaction.
func (s *Service) Disburse(ctx context.Context, loanID, adminID uuid.UUID) (*domain.Loan, error) {
	now := time.Now().UTC()
	payment := decimal.Zero
	nextDue := now.AddDate(0, 1, 0)

	l, err := s.transition(ctx, loanID, domain.LoanStatusActive, func(ctx context.Context, tx *sql.Tx, l *domain.Loan) error {
		w, err := s.wallets.GetByID(ctx, l.WalletID)
		if err != nil {
			return fmt.Errorf("Disburse: %w", err)
		}

		if _, err := s.ledger.Apply(ctx, tx, ledger.Delta{
			WalletID:    w.ID,
			UserID:      l.UserID,
			Amount:      l.Principal,
			Kind:        domain.TxnKindLoanDisbursement,
			Reference:   "LN-" + l.ID.String() + "/disburse",
			Description: "loan disbursement",
			LoanID:      &l.ID,
		}); err != nil {
			return fmt.Errorf("Disburse: %w", err)
		}

		payment = AmortizedPayment(l.Principal, MonthlyRate(l.AnnualRatePct), l.DurationMonths)
		return s.loans.SetSchedule(ctx, tx, l.ID, payment, nextDue, now)
	})
	if err != nil {
		return nil, err
	}

	l.MonthlyPayment = &payment
	l.NextPaymentDue = &nextDue
	l.DisbursedAt = &now

	logging.FromContext(ctx).InfoContext(ctx, "loan disbursed",
		"loan_id", l.ID, "admin_id", adminID, "principal", l.Principal, "monthly_payment", payment)
	s.notify.Enqueue(ctx, l.UserID, "Loan disbursed",
		fmt.Sprintf("%s %s has been credited to your wallet. Monthly payment: %s.", l.Principal, l.Currency, payment),
		domain.NotificationSeverityInfo)
	return l, nil
}
