package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferType string

const (
	TransferTypeInternal      TransferType = "internal"
	TransferTypeDomestic      TransferType = "domestic"
	TransferTypeInternational TransferType = "international"
)

func (t TransferType) IsValid() bool {
	switch t {
	case TransferTypeInternal, TransferTypeDomestic, TransferTypeInternational:
		return true
	default:
		return false
	}
}

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
)

// transferTransitions is the full set of legal status moves. Completed and
// failed are terminal.
var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferStatusPending:   {TransferStatusCompleted, TransferStatusFailed},
	TransferStatusCompleted: {},
	TransferStatusFailed:    {},
}

func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	for _, allowed := range transferTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s TransferStatus) IsTerminal() bool {
	return len(transferTransitions[s]) == 0
}

// Beneficiary holds the external destination for domestic and international
// transfers. Internal transfers carry a receiver wallet instead.
type Beneficiary struct {
	Name          string
	AccountNumber string
	BankName      string
	SwiftCode     string
	IBAN          string
	Country       string
}

type Transfer struct {
	ID               uuid.UUID
	SenderWalletID   uuid.UUID
	ReceiverWalletID *uuid.UUID
	Type             TransferType
	Status           TransferStatus
	Amount           decimal.Decimal
	Fee              decimal.Decimal
	Currency         Currency
	Reference        string
	Narration        string
	Beneficiary      *Beneficiary
	FailureReason    *string
	ApprovedBy       *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// TotalDebit is what the sender pays: the transfer amount plus the fee. The
// receiver is always credited the amount alone.
func (t *Transfer) TotalDebit() decimal.Decimal {
	return t.Amount.Add(t.Fee)
}
