package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyNGN, CurrencyUSD, CurrencyEUR, CurrencyGBP:
		return true
	default:
		return false
	}
}

type WalletStatus string

const (
	WalletStatusActive WalletStatus = "active"
	WalletStatusFrozen WalletStatus = "frozen"
	WalletStatusClosed WalletStatus = "closed"
)

// Wallet is the single balance record for an account. The balance is only
// ever mutated through the ledger store, inside a transaction that also
// appends the matching ledger entry.
type Wallet struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	Currency             Currency
	Balance              decimal.Decimal
	Version              int64
	Status               WalletStatus
	RequireTransferCodes bool
	CreatedAt            time.Time
}
