package loan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/ledger"
	"github.com/demilade-ak/vaultbank/internal/logging"
)

// Repay applies a payment against an active loan. The amount is clipped to
// the remaining principal so the wallet is never debited beyond what is
// owed; reaching the full principal completes the loan.
func (s *Service) Repay(ctx context.Context, loanID, userID uuid.UUID, amount decimal.Decimal) (*domain.Loan, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("Repay: %w", domain.ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Repay: begin: %w", err)
	}
	defer tx.Rollback()

	l, err := s.loans.GetForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, fmt.Errorf("Repay: %w", err)
	}
	if l.UserID != userID {
		return nil, fmt.Errorf("Repay: %w", domain.ErrLoanNotFound)
	}
	if l.Status != domain.LoanStatusActive {
		if l.Status == domain.LoanStatusCompleted {
			return nil, fmt.Errorf("Repay: %w", domain.ErrLoanAlreadyRepaid)
		}
		return nil, fmt.Errorf("Repay: %w", domain.ErrLoanNotActive)
	}

	remaining := l.Outstanding()
	if remaining.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("Repay: %w", domain.ErrLoanAlreadyRepaid)
	}
	if s.minRepayment.IsPositive() && remaining.GreaterThan(s.minRepayment) && amount.LessThan(s.minRepayment) {
		return nil, fmt.Errorf("Repay: %w", domain.ErrBelowMinimumPayment)
	}

	applied := amount
	if applied.GreaterThan(remaining) {
		applied = remaining
	}

	if _, err := s.ledger.Apply(ctx, tx, ledger.Delta{
		WalletID:    l.WalletID,
		UserID:      l.UserID,
		Amount:      applied.Neg(),
		Kind:        domain.TxnKindLoanRepayment,
		Reference:   fmt.Sprintf("LN-%s/repay/%s", l.ID, uuid.NewString()),
		Description: "loan repayment",
		LoanID:      &l.ID,
	}); err != nil {
		return nil, fmt.Errorf("Repay: %w", err)
	}

	totalRepaid := l.TotalRepaid.Add(applied)
	settled := totalRepaid.GreaterThanOrEqual(l.Principal)

	var nextDue *time.Time
	if !settled && l.NextPaymentDue != nil {
		due := l.NextPaymentDue.AddDate(0, 1, 0)
		nextDue = &due
	}
	if err := s.loans.UpdateRepayment(ctx, tx, l.ID, totalRepaid, nextDue); err != nil {
		return nil, fmt.Errorf("Repay: %w", err)
	}
	if settled {
		if err := s.loans.UpdateStatus(ctx, tx, l.ID, domain.LoanStatusActive, domain.LoanStatusCompleted); err != nil {
			return nil, fmt.Errorf("Repay: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Repay: commit: %w", err)
	}

	l.TotalRepaid = totalRepaid
	l.NextPaymentDue = nextDue
	if settled {
		l.Status = domain.LoanStatusCompleted
	}

	logging.FromContext(ctx).InfoContext(ctx, "loan repayment applied",
		"loan_id", l.ID, "applied", applied, "total_repaid", totalRepaid, "settled", settled)
	if settled {
		s.notify.Enqueue(ctx, l.UserID, "Loan repaid",
			"Your loan has been fully repaid. Congratulations!", domain.NotificationSeverityInfo)
	}
	return l, nil
}
