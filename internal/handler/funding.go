package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/logging"
	"github.com/demilade-ak/vaultbank/internal/service/reconcile"
)

type fundingService interface {
	Deposit(ctx context.Context, userID, walletID uuid.UUID, amount decimal.Decimal) (*reconcile.DepositResult, error)
	Withdraw(ctx context.Context, userID, walletID uuid.UUID, amount decimal.Decimal, accountNumber, bankName string) (*domain.GatewayPayment, error)
	GetByReference(ctx context.Context, reference string, userID uuid.UUID) (*domain.GatewayPayment, error)
}

type FundingHandler struct {
	funding fundingService
}

func NewFundingHandler(funding fundingService) *FundingHandler {
	return &FundingHandler{funding: funding}
}

type gatewayPaymentDTO struct {
	Reference     string          `json:"reference"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toGatewayPaymentDTO(p *domain.GatewayPayment) gatewayPaymentDTO {
	return gatewayPaymentDTO{
		Reference:     p.Reference,
		Type:          string(p.Type),
		Status:        string(p.Status),
		Amount:        p.Amount,
		Currency:      string(p.Currency),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
	}
}

type depositRequest struct {
	WalletID string          `json:"wallet_id"`
	Amount   decimal.Decimal `json:"amount"`
}

func (h *FundingHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "wallet_id", Message: "must be a valid UUID"}})
		return
	}
	if !req.Amount.IsPositive() {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "must be greater than zero"}})
		return
	}

	result, err := h.funding.Deposit(r.Context(), userID, walletID, req.Amount)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to initiate deposit", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusAccepted, map[string]any{
		"payment":      toGatewayPaymentDTO(result.Payment),
		"checkout_url": result.CheckoutURL,
	})
}

type withdrawRequest struct {
	WalletID      string          `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	AccountNumber string          `json:"account_number"`
	BankName      string          `json:"bank_name"`
}

func (h *FundingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "wallet_id", Message: "must be a valid UUID"}})
		return
	}
	if !req.Amount.IsPositive() {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "must be greater than zero"}})
		return
	}
	if req.AccountNumber == "" {
		RespondValidationError(w, []FieldError{{Field: "account_number", Message: "required"}})
		return
	}

	p, err := h.funding.Withdraw(r.Context(), userID, walletID, req.Amount, req.AccountNumber, req.BankName)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to initiate withdrawal", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusAccepted, toGatewayPaymentDTO(p))
}

func (h *FundingHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	p, err := h.funding.GetByReference(r.Context(), reference, userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toGatewayPaymentDTO(p))
}
