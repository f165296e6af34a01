package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GatewayPaymentType string

const (
	GatewayPaymentTypeDeposit    GatewayPaymentType = "deposit"
	GatewayPaymentTypeWithdrawal GatewayPaymentType = "withdrawal"
)

type GatewayPaymentStatus string

const (
	GatewayPaymentStatusPending   GatewayPaymentStatus = "pending"
	GatewayPaymentStatusCompleted GatewayPaymentStatus = "completed"
	GatewayPaymentStatusFailed    GatewayPaymentStatus = "failed"
)

func (s GatewayPaymentStatus) IsTerminal() bool {
	return s == GatewayPaymentStatusCompleted || s == GatewayPaymentStatusFailed
}

// GatewayPayment tracks money moving through the external payment gateway.
// Withdrawals pre-deduct the wallet at request time and are refunded if the
// gateway later reports failure.
type GatewayPayment struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	WalletID      uuid.UUID
	Type          GatewayPaymentType
	Amount        decimal.Decimal
	Currency      Currency
	Reference     string
	Status        GatewayPaymentStatus
	Provider      string
	ProviderRef   *string
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type GatewayEventStatus string

const (
	GatewayEventStatusPending    GatewayEventStatus = "pending"
	GatewayEventStatusDispatched GatewayEventStatus = "dispatched"
	GatewayEventStatusFailed     GatewayEventStatus = "failed"
)

// GatewayEvent is a raw webhook delivery from the payment gateway, stored
// before processing so intake stays cheap and replays are detectable.
type GatewayEvent struct {
	ID          uuid.UUID
	EventID     string
	Reference   string
	Outcome     string
	Payload     json.RawMessage
	Status      GatewayEventStatus
	Attempts    int
	LastAttempt *time.Time
	CreatedAt   time.Time
}
