package policy

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

type stubSummer struct {
	dayUsed   decimal.Decimal
	monthUsed decimal.Decimal
	calls     int
}

// The checker queries the month window first, then the day window.
func (s *stubSummer) SumCompletedTransferDebits(_ context.Context, _ uuid.UUID, _ time.Time) (decimal.Decimal, error) {
	s.calls++
	if s.calls == 1 {
		return s.monthUsed, nil
	}
	return s.dayUsed, nil
}

func (s *stubSummer) SumCompletedTransferDebitsTx(ctx context.Context, _ *sql.Tx, walletID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	return s.SumCompletedTransferDebits(ctx, walletID, since)
}

func TestLimitCheck(t *testing.T) {
	ctx := context.Background()
	walletID := uuid.New()

	newChecker := func(dayUsed, monthUsed string) *LimitChecker {
		return NewLimitChecker(
			&stubSummer{
				dayUsed:   decimal.RequireFromString(dayUsed),
				monthUsed: decimal.RequireFromString(monthUsed),
			},
			decimal.RequireFromString("500000"),
			decimal.RequireFromString("1000000"),
			decimal.RequireFromString("5000000"),
		)
	}

	tests := []struct {
		name      string
		checker   *LimitChecker
		amount    string
		wantErrIs error
	}{
		{
			name:    "within all limits",
			checker: newChecker("0", "0"),
			amount:  "50000",
		},
		{
			name:      "single transfer ceiling",
			checker:   newChecker("0", "0"),
			amount:    "500001",
			wantErrIs: domain.ErrSingleTransferLimitExceeded,
		},
		{
			name:      "daily ceiling counts prior debits",
			checker:   newChecker("900000", "900000"),
			amount:    "200000",
			wantErrIs: domain.ErrDailyLimitExceeded,
		},
		{
			name:    "daily headroom remains",
			checker: newChecker("900000", "900000"),
			amount:  "50000",
		},
		{
			name:      "monthly ceiling",
			checker:   newChecker("0", "4900000"),
			amount:    "200000",
			wantErrIs: domain.ErrMonthlyLimitExceeded,
		},
		{
			name:    "exactly at the single limit passes",
			checker: newChecker("0", "0"),
			amount:  "500000",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.checker.Check(ctx, walletID, decimal.RequireFromString(tc.amount))
			if tc.wantErrIs != nil {
				require.ErrorIs(t, err, tc.wantErrIs)
				return
			}
			require.NoError(t, err)
		})
	}

	t.Run("tx-scoped check applies the same ceilings", func(t *testing.T) {
		err := newChecker("900000", "900000").CheckTx(ctx, nil, walletID, decimal.RequireFromString("200000"))
		require.ErrorIs(t, err, domain.ErrDailyLimitExceeded)
	})
}
