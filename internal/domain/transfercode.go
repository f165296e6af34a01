package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransferCodeCategory string

const (
	TransferCodeCOT TransferCodeCategory = "cot"
	TransferCodeIMF TransferCodeCategory = "imf"
	TransferCodeTax TransferCodeCategory = "tax"
)

func TransferCodeCategories() []TransferCodeCategory {
	return []TransferCodeCategory{TransferCodeCOT, TransferCodeIMF, TransferCodeTax}
}

func (c TransferCodeCategory) IsValid() bool {
	switch c {
	case TransferCodeCOT, TransferCodeIMF, TransferCodeTax:
		return true
	default:
		return false
	}
}

// TransferCode gates international transfers. Admins issue a code per
// category; the user must echo it back before the corresponding category
// counts as verified.
type TransferCode struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Category   TransferCodeCategory
	Code       string
	Active     bool
	Verified   bool
	IssuedBy   uuid.UUID
	CreatedAt  time.Time
	VerifiedAt *time.Time
}
