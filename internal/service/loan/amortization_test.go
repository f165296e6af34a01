package loan

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMonthlyRate(t *testing.T) {
	got := MonthlyRate(d("12"))
	assert.True(t, got.Equal(d("0.01")), "got %s", got)

	assert.True(t, MonthlyRate(decimal.Zero).IsZero())
}

func TestAmortizedPayment(t *testing.T) {
	t.Run("zero rate splits principal evenly", func(t *testing.T) {
		got := AmortizedPayment(d("12000"), decimal.Zero, 12)
		assert.True(t, got.Equal(d("1000")), "got %s", got)
	})

	t.Run("single installment is principal plus one period of interest", func(t *testing.T) {
		// n=1 collapses the annuity formula to P*(1+r).
		got := AmortizedPayment(d("10000"), d("0.01"), 1)
		assert.True(t, got.Equal(d("10100")), "got %s", got)
	})

	t.Run("two installments at 1 percent", func(t *testing.T) {
		// 1000 * 0.01 * 1.0201 / 0.0201 = 507.512437... -> 507.51
		got := AmortizedPayment(d("1000"), d("0.01"), 2)
		assert.True(t, got.Equal(d("507.51")), "got %s", got)
	})

	t.Run("payment exceeds the even split when rate is positive", func(t *testing.T) {
		principal := d("100000")
		rate := MonthlyRate(d("5.5"))
		payment := AmortizedPayment(principal, rate, 12)

		evenSplit := principal.Div(decimal.NewFromInt(12))
		assert.True(t, payment.GreaterThan(evenSplit),
			"payment %s should exceed even split %s", payment, evenSplit)

		// Total interest over a year at 5.5% is a few percent of principal,
		// not more.
		total := TotalRepayable(principal, rate, 12)
		assert.True(t, total.GreaterThan(principal))
		assert.True(t, total.LessThan(principal.Mul(d("1.06"))),
			"total %s implausibly high", total)
	})
}

func TestAccruedInterest(t *testing.T) {
	disbursed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	baseLoan := func() *domain.Loan {
		return &domain.Loan{
			ID:             uuid.New(),
			Principal:      d("100000"),
			DurationMonths: 12,
			DisbursedAt:    &disbursed,
		}
	}

	t.Run("nothing accrues before disbursement", func(t *testing.T) {
		l := baseLoan()
		l.DisbursedAt = nil
		got := accruedInterest(l, d("112000"), disbursed.AddDate(0, 6, 0))
		assert.True(t, got.IsZero(), "got %s", got)
	})

	t.Run("linear pro-rate over the term", func(t *testing.T) {
		// 12000 total interest over 360 days; 36 days elapsed -> 1200.
		got := accruedInterest(baseLoan(), d("112000"), disbursed.Add(36*24*time.Hour))
		assert.True(t, got.Equal(d("1200")), "got %s", got)
	})

	t.Run("clipped at maturity", func(t *testing.T) {
		got := accruedInterest(baseLoan(), d("112000"), disbursed.AddDate(3, 0, 0))
		assert.True(t, got.Equal(d("12000")), "got %s", got)
	})

	t.Run("zero interest loan accrues nothing", func(t *testing.T) {
		got := accruedInterest(baseLoan(), d("100000"), disbursed.AddDate(0, 6, 0))
		assert.True(t, got.IsZero(), "got %s", got)
	})
}
