package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/demilade-ak/vaultbank/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	var appErr *AppError

	switch {
	case errors.Is(err, domain.ErrWalletNotFound):
		appErr = ErrWalletNotFound
	case errors.Is(err, domain.ErrTransferNotFound),
		errors.Is(err, domain.ErrLoanNotFound),
		errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		appErr = ErrInsufficientFunds
	case errors.Is(err, domain.ErrWalletFrozen):
		appErr = ErrWalletFrozen
	case errors.Is(err, domain.ErrWalletClosed):
		appErr = ErrWalletClosed
	case errors.Is(err, domain.ErrSelfTransfer):
		appErr = ErrSelfTransfer
	case errors.Is(err, domain.ErrInvalidCurrency):
		appErr = ErrInvalidCurrency
	case errors.Is(err, domain.ErrCurrencyMismatch):
		appErr = ErrCurrencyMismatch
	case errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrInvalidAmount
	case errors.Is(err, domain.ErrDuplicateReference):
		appErr = ErrDuplicateReference
	case errors.Is(err, domain.ErrVersionConflict):
		appErr = ErrVersionConflict
	case errors.Is(err, domain.ErrAlreadyProcessed):
		appErr = ErrAlreadyProcessed
	case errors.Is(err, domain.ErrInvalidTransition):
		appErr = ErrInvalidTransition
	case errors.Is(err, domain.ErrSingleTransferLimitExceeded):
		appErr = ErrSingleTransferLimit
	case errors.Is(err, domain.ErrDailyLimitExceeded):
		appErr = ErrDailyLimit
	case errors.Is(err, domain.ErrMonthlyLimitExceeded):
		appErr = ErrMonthlyLimit
	case errors.Is(err, domain.ErrVerificationRequired):
		appErr = ErrVerificationRequired
	case errors.Is(err, domain.ErrTransferCodeRequired):
		appErr = ErrTransferCodeRequired
	case errors.Is(err, domain.ErrTransferCodeNotIssued):
		appErr = ErrTransferCodeNotIssued
	case errors.Is(err, domain.ErrInvalidTransferCode):
		appErr = ErrInvalidTransferCode
	case errors.Is(err, domain.ErrCodeAlreadyVerified):
		appErr = ErrCodeAlreadyVerified
	case errors.Is(err, domain.ErrLoanNotActive):
		appErr = ErrLoanNotActive
	case errors.Is(err, domain.ErrLoanAlreadyRepaid):
		appErr = ErrLoanAlreadyRepaid
	case errors.Is(err, domain.ErrBelowMinimumPayment):
		appErr = ErrBelowMinimumPayment
	case errors.Is(err, domain.ErrOfferNotOpen):
		appErr = ErrOfferNotOpen
	case errors.Is(err, domain.ErrEntryNotPrunable):
		appErr = ErrEntryNotPrunable
	case errors.Is(err, domain.ErrInvalidRequest):
		appErr = ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}
