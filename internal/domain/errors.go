package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrTransferNotFound = errors.New("transfer not found")
	ErrLoanNotFound     = errors.New("loan not found")

	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInvalidCurrency   = errors.New("invalid currency")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrSelfTransfer      = errors.New("cannot transfer to same wallet")
	ErrWalletFrozen      = errors.New("wallet frozen")
	ErrWalletClosed      = errors.New("wallet closed")

	ErrSingleTransferLimitExceeded = errors.New("single transfer limit exceeded")
	ErrDailyLimitExceeded          = errors.New("daily transfer limit exceeded")
	ErrMonthlyLimitExceeded        = errors.New("monthly transfer limit exceeded")

	ErrVerificationRequired = errors.New("identity verification required")

	ErrTransferCodeRequired  = errors.New("transfer codes not verified")
	ErrTransferCodeNotIssued = errors.New("transfer code not issued")
	ErrInvalidTransferCode   = errors.New("invalid transfer code")
	ErrCodeAlreadyVerified   = errors.New("transfer code already verified")

	ErrAlreadyProcessed   = errors.New("already processed")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrVersionConflict    = errors.New("optimistic lock conflict")
	ErrDuplicateReference = errors.New("duplicate reference")

	ErrLoanNotActive       = errors.New("loan not active")
	ErrLoanAlreadyRepaid   = errors.New("loan already fully repaid")
	ErrBelowMinimumPayment = errors.New("repayment below minimum installment")
	ErrOfferNotOpen        = errors.New("loan offer no longer open")

	ErrEntryNotPrunable = errors.New("only terminal entries can be pruned")

	ErrInvalidRequest = errors.New("invalid request")
)
