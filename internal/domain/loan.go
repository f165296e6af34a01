package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusPending    LoanStatus = "pending"
	LoanStatusFeePending LoanStatus = "fee_pending"
	LoanStatusFeePaid    LoanStatus = "fee_paid"
	LoanStatusApproved   LoanStatus = "approved"
	LoanStatusRejected   LoanStatus = "rejected"
	LoanStatusActive     LoanStatus = "active"
	LoanStatusCompleted  LoanStatus = "completed"
)

// loanTransitions encodes the approval pipeline. Rejection is only reachable
// from pending; the fee leg is optional.
var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending:    {LoanStatusFeePending, LoanStatusApproved, LoanStatusRejected},
	LoanStatusFeePending: {LoanStatusFeePaid},
	LoanStatusFeePaid:    {LoanStatusApproved},
	LoanStatusApproved:   {LoanStatusActive},
	LoanStatusActive:     {LoanStatusCompleted},
	LoanStatusRejected:   {},
	LoanStatusCompleted:  {},
}

func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, allowed := range loanTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s LoanStatus) IsTerminal() bool {
	return len(loanTransitions[s]) == 0
}

type Loan struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	WalletID        uuid.UUID
	Principal       decimal.Decimal
	Currency        Currency
	DurationMonths  int
	AnnualRatePct   decimal.Decimal
	MonthlyPayment  *decimal.Decimal
	Status          LoanStatus
	TotalRepaid     decimal.Decimal
	NextPaymentDue  *time.Time
	FeeAmount       *decimal.Decimal
	FeeInstructions *string
	FeeProofRef     *string
	Purpose         string
	DisbursedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Outstanding is the principal not yet repaid. Repayments are clipped so this
// never goes negative.
func (l *Loan) Outstanding() decimal.Decimal {
	return l.Principal.Sub(l.TotalRepaid)
}

type LoanOfferStatus string

const (
	LoanOfferStatusProposed LoanOfferStatus = "proposed"
	LoanOfferStatusAccepted LoanOfferStatus = "accepted"
	LoanOfferStatusDeclined LoanOfferStatus = "declined"
)

// LoanOffer is an admin counter-proposal on a pending application. Accepting
// one rewrites the application's principal, rate and duration.
type LoanOffer struct {
	ID                uuid.UUID
	LoanID            uuid.UUID
	ProposedPrincipal decimal.Decimal
	ProposedRatePct   decimal.Decimal
	ProposedDuration  int
	Status            LoanOfferStatus
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
	DecidedAt         *time.Time
}
