package policy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

type transferSummer interface {
	SumCompletedTransferDebits(ctx context.Context, walletID uuid.UUID, since time.Time) (decimal.Decimal, error)
	SumCompletedTransferDebitsTx(ctx context.Context, tx *sql.Tx, walletID uuid.UUID, since time.Time) (decimal.Decimal, error)
}

// LimitChecker enforces per-transaction, daily and monthly transfer
// ceilings. Windows are UTC calendar day and calendar month; only completed
// transfer debits count against them.
type LimitChecker struct {
	sums    transferSummer
	single  decimal.Decimal
	daily   decimal.Decimal
	monthly decimal.Decimal
}

func NewLimitChecker(sums transferSummer, single, daily, monthly decimal.Decimal) *LimitChecker {
	return &LimitChecker{sums: sums, single: single, daily: daily, monthly: monthly}
}

// Check must run before any balance mutation for the candidate transfer.
func (c *LimitChecker) Check(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error {
	return c.check(amount, func(since time.Time) (decimal.Decimal, error) {
		return c.sums.SumCompletedTransferDebits(ctx, walletID, since)
	})
}

// CheckTx re-evaluates the windows inside the settling transaction, after
// the wallet row lock is held. The request-time Check can go stale between
// two concurrent transfers that each fit alone; this one cannot.
func (c *LimitChecker) CheckTx(ctx context.Context, tx *sql.Tx, walletID uuid.UUID, amount decimal.Decimal) error {
	return c.check(amount, func(since time.Time) (decimal.Decimal, error) {
		return c.sums.SumCompletedTransferDebitsTx(ctx, tx, walletID, since)
	})
}

func (c *LimitChecker) check(amount decimal.Decimal, sum func(since time.Time) (decimal.Decimal, error)) error {
	if amount.GreaterThan(c.single) {
		return fmt.Errorf("Check: %w", domain.ErrSingleTransferLimitExceeded)
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	monthUsed, err := sum(monthStart)
	if err != nil {
		return fmt.Errorf("Check: %w", err)
	}
	if monthUsed.Add(amount).GreaterThan(c.monthly) {
		return fmt.Errorf("Check: %w", domain.ErrMonthlyLimitExceeded)
	}

	dayUsed, err := sum(dayStart)
	if err != nil {
		return fmt.Errorf("Check: %w", err)
	}
	if dayUsed.Add(amount).GreaterThan(c.daily) {
		return fmt.Errorf("Check: %w", domain.ErrDailyLimitExceeded)
	}

	return nil
}
