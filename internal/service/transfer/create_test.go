package transfer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

func TestCreateRequestValidate(t *testing.T) {
	receiver := uuid.New()
	beneficiary := &domain.Beneficiary{
		Name:          "Jane Doe",
		AccountNumber: "0123456789",
		BankName:      "First Bank",
	}

	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{
			name: "valid internal",
			req: CreateRequest{
				Type:             domain.TransferTypeInternal,
				Amount:           decimal.RequireFromString("100"),
				ReceiverWalletID: &receiver,
			},
		},
		{
			name: "valid domestic",
			req: CreateRequest{
				Type:        domain.TransferTypeDomestic,
				Amount:      decimal.RequireFromString("100"),
				Beneficiary: beneficiary,
			},
		},
		{
			name: "unknown type",
			req: CreateRequest{
				Type:   domain.TransferType("wire"),
				Amount: decimal.RequireFromString("100"),
			},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name: "zero amount",
			req: CreateRequest{
				Type:             domain.TransferTypeInternal,
				Amount:           decimal.Zero,
				ReceiverWalletID: &receiver,
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "negative amount",
			req: CreateRequest{
				Type:             domain.TransferTypeInternal,
				Amount:           decimal.RequireFromString("-5"),
				ReceiverWalletID: &receiver,
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "internal without receiver wallet",
			req: CreateRequest{
				Type:   domain.TransferTypeInternal,
				Amount: decimal.RequireFromString("100"),
			},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name: "domestic without beneficiary",
			req: CreateRequest{
				Type:   domain.TransferTypeDomestic,
				Amount: decimal.RequireFromString("100"),
			},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name: "international with empty account number",
			req: CreateRequest{
				Type:        domain.TransferTypeInternational,
				Amount:      decimal.RequireFromString("100"),
				Beneficiary: &domain.Beneficiary{Name: "Jane Doe"},
			},
			wantErr: domain.ErrInvalidRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.validate()
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
