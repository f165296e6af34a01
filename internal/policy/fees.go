package policy

import (
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

// FeeSchedule computes transfer fees. Pure and deterministic: same inputs,
// same fee, no lookups.
type FeeSchedule struct {
	DomesticRate      decimal.Decimal
	InternationalRate decimal.Decimal
	MinFee            decimal.Decimal
}

func NewFeeSchedule(domesticRate, internationalRate, minFee decimal.Decimal) *FeeSchedule {
	return &FeeSchedule{
		DomesticRate:      domesticRate,
		InternationalRate: internationalRate,
		MinFee:            minFee,
	}
}

// Fee is zero for internal transfers. External transfers pay the greater of
// the proportional fee and the flat minimum.
func (f *FeeSchedule) Fee(amount decimal.Decimal, transferType domain.TransferType) decimal.Decimal {
	var rate decimal.Decimal
	switch transferType {
	case domain.TransferTypeDomestic:
		rate = f.DomesticRate
	case domain.TransferTypeInternational:
		rate = f.InternationalRate
	default:
		return decimal.Zero
	}

	fee := amount.Mul(rate)
	if fee.LessThan(f.MinFee) {
		return f.MinFee
	}
	return fee
}
