package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"}
	ErrForbidden          = &AppError{http.StatusForbidden, "FORBIDDEN", "You do not have access to this resource"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInsufficientFunds  = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrWalletFrozen       = &AppError{http.StatusUnprocessableEntity, "WALLET_FROZEN", "Wallet is frozen"}
	ErrWalletClosed       = &AppError{http.StatusUnprocessableEntity, "WALLET_CLOSED", "Wallet is closed"}
	ErrWalletNotFound     = &AppError{http.StatusUnprocessableEntity, "WALLET_NOT_FOUND", "Wallet not found"}
	ErrSelfTransfer       = &AppError{http.StatusUnprocessableEntity, "SELF_TRANSFER_NOT_ALLOWED", "Cannot transfer to the same wallet"}
	ErrInvalidCurrency    = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Invalid currency"}
	ErrCurrencyMismatch   = &AppError{http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", "Currency mismatch"}
	ErrInvalidAmount      = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrDuplicateReference = &AppError{http.StatusConflict, "DUPLICATE_REFERENCE", "Reference already used"}
	ErrVersionConflict    = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrAlreadyProcessed   = &AppError{http.StatusConflict, "ALREADY_PROCESSED", "This item has already been decided"}
	ErrInvalidTransition  = &AppError{http.StatusConflict, "INVALID_TRANSITION", "Requested status change is not allowed"}

	ErrSingleTransferLimit = &AppError{http.StatusUnprocessableEntity, "SINGLE_TRANSFER_LIMIT_EXCEEDED", "Amount exceeds the per-transfer limit"}
	ErrDailyLimit          = &AppError{http.StatusUnprocessableEntity, "DAILY_LIMIT_EXCEEDED", "Daily transfer limit exceeded"}
	ErrMonthlyLimit        = &AppError{http.StatusUnprocessableEntity, "MONTHLY_LIMIT_EXCEEDED", "Monthly transfer limit exceeded"}

	ErrVerificationRequired  = &AppError{http.StatusForbidden, "VERIFICATION_REQUIRED", "Identity verification must be approved first"}
	ErrTransferCodeRequired  = &AppError{http.StatusForbidden, "TRANSFER_CODE_REQUIRED", "All transfer codes must be verified first"}
	ErrTransferCodeNotIssued = &AppError{http.StatusUnprocessableEntity, "TRANSFER_CODE_NOT_ISSUED", "No active code for this category"}
	ErrInvalidTransferCode   = &AppError{http.StatusUnprocessableEntity, "INVALID_TRANSFER_CODE", "Submitted code does not match"}
	ErrCodeAlreadyVerified   = &AppError{http.StatusConflict, "CODE_ALREADY_VERIFIED", "Code has already been verified"}

	ErrLoanNotActive       = &AppError{http.StatusUnprocessableEntity, "LOAN_NOT_ACTIVE", "Loan is not active"}
	ErrLoanAlreadyRepaid   = &AppError{http.StatusUnprocessableEntity, "LOAN_ALREADY_REPAID", "Loan has already been fully repaid"}
	ErrBelowMinimumPayment = &AppError{http.StatusUnprocessableEntity, "BELOW_MINIMUM_PAYMENT", "Payment is below the minimum installment"}
	ErrOfferNotOpen        = &AppError{http.StatusConflict, "OFFER_NOT_OPEN", "Offer has already been decided"}
	ErrEntryNotPrunable    = &AppError{http.StatusUnprocessableEntity, "ENTRY_NOT_PRUNABLE", "Only settled entries can be removed"}
)
