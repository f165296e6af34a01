package loan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/logging"
)

// ProposeOffer records an admin counter-proposal against a pending
// application. The application itself is untouched until the user accepts.
func (s *Service) ProposeOffer(ctx context.Context, loanID, adminID uuid.UUID, principal, ratePct decimal.Decimal, durationMonths int) (*domain.LoanOffer, error) {
	if principal.LessThanOrEqual(decimal.Zero) || durationMonths <= 0 || ratePct.IsNegative() {
		return nil, fmt.Errorf("ProposeOffer: %w", domain.ErrInvalidRequest)
	}

	l, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("ProposeOffer: %w", err)
	}
	if l.Status != domain.LoanStatusPending {
		return nil, fmt.Errorf("ProposeOffer: %w", domain.ErrInvalidTransition)
	}

	o := &domain.LoanOffer{
		ID:                uuid.New(),
		LoanID:            l.ID,
		ProposedPrincipal: principal,
		ProposedRatePct:   ratePct,
		ProposedDuration:  durationMonths,
		Status:            domain.LoanOfferStatusProposed,
		CreatedBy:         adminID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.offers.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("ProposeOffer: %w", err)
	}

	logging.FromContext(ctx).InfoContext(ctx, "loan offer proposed",
		"loan_id", l.ID, "offer_id", o.ID, "principal", principal, "rate_pct", ratePct)
	s.notify.Enqueue(ctx, l.UserID, "Loan counter-offer",
		fmt.Sprintf("We can offer %s %s over %d months at %s%% per annum.", principal, l.Currency, durationMonths, ratePct),
		domain.NotificationSeverityInfo)
	return o, nil
}

// AcceptOffer rewrites the pending application's terms from the offer. The
// offer row is decided and the loan stays pending for normal approval.
func (s *Service) AcceptOffer(ctx context.Context, offerID, userID uuid.UUID) (*domain.Loan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("AcceptOffer: begin: %w", err)
	}
	defer tx.Rollback()

	o, err := s.offers.GetForUpdate(ctx, tx, offerID)
	if err != nil {
		return nil, fmt.Errorf("AcceptOffer: %w", err)
	}
	if o.Status != domain.LoanOfferStatusProposed {
		return nil, fmt.Errorf("AcceptOffer: %w", domain.ErrOfferNotOpen)
	}

	l, err := s.loans.GetForUpdate(ctx, tx, o.LoanID)
	if err != nil {
		return nil, fmt.Errorf("AcceptOffer: %w", err)
	}
	if l.UserID != userID {
		return nil, fmt.Errorf("AcceptOffer: %w", domain.ErrLoanNotFound)
	}

	if err := s.loans.UpdateTerms(ctx, tx, l.ID, o.ProposedPrincipal, o.ProposedRatePct, o.ProposedDuration); err != nil {
		return nil, fmt.Errorf("AcceptOffer: %w", err)
	}
	if err := s.offers.UpdateStatus(ctx, tx, o.ID, domain.LoanOfferStatusAccepted); err != nil {
		return nil, fmt.Errorf("AcceptOffer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("AcceptOffer: commit: %w", err)
	}

	l.Principal = o.ProposedPrincipal
	l.AnnualRatePct = o.ProposedRatePct
	l.DurationMonths = o.ProposedDuration

	logging.FromContext(ctx).InfoContext(ctx, "loan offer accepted",
		"loan_id", l.ID, "offer_id", o.ID)
	return l, nil
}

// DeclineOffer closes the offer and leaves the application's original terms
// in place.
func (s *Service) DeclineOffer(ctx context.Context, offerID, userID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("DeclineOffer: begin: %w", err)
	}
	defer tx.Rollback()

	o, err := s.offers.GetForUpdate(ctx, tx, offerID)
	if err != nil {
		return fmt.Errorf("DeclineOffer: %w", err)
	}
	if o.Status != domain.LoanOfferStatusProposed {
		return fmt.Errorf("DeclineOffer: %w", domain.ErrOfferNotOpen)
	}

	l, err := s.loans.GetForUpdate(ctx, tx, o.LoanID)
	if err != nil {
		return fmt.Errorf("DeclineOffer: %w", err)
	}
	if l.UserID != userID {
		return fmt.Errorf("DeclineOffer: %w", domain.ErrLoanNotFound)
	}

	if err := s.offers.UpdateStatus(ctx, tx, o.ID, domain.LoanOfferStatusDeclined); err != nil {
		return fmt.Errorf("DeclineOffer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("DeclineOffer: commit: %w", err)
	}

	logging.FromContext(ctx).InfoContext(ctx, "loan offer declined",
		"loan_id", o.LoanID, "offer_id", o.ID)
	return nil
}

// ListOffers returns all offers made against a loan the user owns.
func (s *Service) ListOffers(ctx context.Context, loanID, userID uuid.UUID) ([]domain.LoanOffer, error) {
	if _, err := s.GetForUser(ctx, loanID, userID); err != nil {
		return nil, fmt.Errorf("ListOffers: %w", err)
	}
	offers, err := s.offers.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("ListOffers: %w", err)
	}
	return offers, nil
}
