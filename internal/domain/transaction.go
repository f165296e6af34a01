package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TxnKindDeposit          TransactionKind = "deposit"
	TxnKindWithdrawal       TransactionKind = "withdrawal"
	TxnKindTransfer         TransactionKind = "transfer"
	TxnKindFee              TransactionKind = "fee"
	TxnKindAdjustment       TransactionKind = "adjustment"
	TxnKindLoanDisbursement TransactionKind = "loan_disbursement"
	TxnKindLoanRepayment    TransactionKind = "loan_repayment"
	TxnKindCard             TransactionKind = "card"
	TxnKindRefund           TransactionKind = "refund"
)

type TransactionDirection string

const (
	TxnDirectionDebit  TransactionDirection = "debit"
	TxnDirectionCredit TransactionDirection = "credit"
)

type TransactionStatus string

const (
	TxnStatusPending   TransactionStatus = "pending"
	TxnStatusCompleted TransactionStatus = "completed"
	TxnStatusFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == TxnStatusCompleted || s == TxnStatusFailed
}

// Transaction is one immutable ledger entry. For a completed entry,
// BalanceAfter = BalanceBefore - Amount for debits and + Amount for credits,
// and consecutive completed entries on a wallet form an unbroken chain.
type Transaction struct {
	ID            uuid.UUID
	WalletID      uuid.UUID
	UserID        uuid.UUID
	Kind          TransactionKind
	Direction     TransactionDirection
	Status        TransactionStatus
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	Reference     string
	TransferID    *uuid.UUID
	LoanID        *uuid.UUID
	Metadata      json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SignedAmount is negative for debits, positive for credits.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == TxnDirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
