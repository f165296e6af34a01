package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

func TestFee(t *testing.T) {
	schedule := NewFeeSchedule(
		decimal.RequireFromString("0.005"),
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("10"),
	)

	tests := []struct {
		name         string
		amount       string
		transferType domain.TransferType
		want         string
	}{
		{
			name:         "internal transfers are free",
			amount:       "50000",
			transferType: domain.TransferTypeInternal,
			want:         "0",
		},
		{
			name:         "domestic below minimum pays the flat fee",
			amount:       "1000",
			transferType: domain.TransferTypeDomestic,
			want:         "10",
		},
		{
			name:         "domestic above minimum pays proportional",
			amount:       "10000",
			transferType: domain.TransferTypeDomestic,
			want:         "50",
		},
		{
			name:         "international at the minimum boundary",
			amount:       "1000",
			transferType: domain.TransferTypeInternational,
			want:         "10",
		},
		{
			name:         "international proportional",
			amount:       "250000",
			transferType: domain.TransferTypeInternational,
			want:         "2500",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := schedule.Fee(decimal.RequireFromString(tc.amount), tc.transferType)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
				"fee: got %s, want %s", got, tc.want)
		})
	}
}
