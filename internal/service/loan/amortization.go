package loan

import "github.com/shopspring/decimal"

var (
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// MonthlyRate converts an annual percentage rate to a monthly fraction.
func MonthlyRate(annualRatePct decimal.Decimal) decimal.Decimal {
	return annualRatePct.Div(hundred).Div(twelve)
}

// AmortizedPayment computes the fixed monthly installment for a loan using
// the standard annuity formula P*r*(1+r)^n / ((1+r)^n - 1). A zero rate
// degenerates to equal principal splits.
func AmortizedPayment(principal, monthlyRate decimal.Decimal, months int) decimal.Decimal {
	n := decimal.NewFromInt(int64(months))
	if monthlyRate.IsZero() {
		return principal.Div(n).Round(2)
	}

	growth := monthlyRate.Add(decimal.NewFromInt(1)).Pow(n)
	payment := principal.Mul(monthlyRate).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))
	return payment.Round(2)
}

// TotalRepayable is the installment times the term, i.e. principal plus all
// interest over the life of the loan.
func TotalRepayable(principal, monthlyRate decimal.Decimal, months int) decimal.Decimal {
	return AmortizedPayment(principal, monthlyRate, months).Mul(decimal.NewFromInt(int64(months)))
}
