package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/logging"
	"github.com/demilade-ak/vaultbank/internal/service/transfer"
)

type transferService interface {
	Create(ctx context.Context, req transfer.CreateRequest) (*domain.Transfer, error)
	Approve(ctx context.Context, transferID, adminID uuid.UUID) (*domain.Transfer, error)
	Reject(ctx context.Context, transferID, adminID uuid.UUID, reason string) (*domain.Transfer, error)
	GetForUser(ctx context.Context, transferID, userID uuid.UUID) (*domain.Transfer, error)
	ListForWallet(ctx context.Context, walletID, userID uuid.UUID, limit, offset int) ([]domain.Transfer, int, error)
	ListPending(ctx context.Context, limit, offset int) ([]domain.Transfer, error)
}

type TransferHandler struct {
	transfers transferService
}

func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type beneficiaryRequest struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	SwiftCode     string `json:"swift_code"`
	IBAN          string `json:"iban"`
	Country       string `json:"country"`
}

type createTransferRequest struct {
	SenderWalletID   string              `json:"sender_wallet_id"`
	ReceiverWalletID string              `json:"receiver_wallet_id"`
	Type             string              `json:"type"`
	Amount           decimal.Decimal     `json:"amount"`
	Narration        string              `json:"narration"`
	Beneficiary      *beneficiaryRequest `json:"beneficiary"`
}

func (r createTransferRequest) Validate() []FieldError {
	var errs []FieldError

	if r.SenderWalletID == "" {
		errs = append(errs, FieldError{Field: "sender_wallet_id", Message: "required"})
	} else if _, err := uuid.Parse(r.SenderWalletID); err != nil {
		errs = append(errs, FieldError{Field: "sender_wallet_id", Message: "must be a valid UUID"})
	}

	switch domain.TransferType(r.Type) {
	case domain.TransferTypeInternal:
		if r.ReceiverWalletID == "" {
			errs = append(errs, FieldError{Field: "receiver_wallet_id", Message: "required for internal transfers"})
		} else if _, err := uuid.Parse(r.ReceiverWalletID); err != nil {
			errs = append(errs, FieldError{Field: "receiver_wallet_id", Message: "must be a valid UUID"})
		}
	case domain.TransferTypeDomestic, domain.TransferTypeInternational:
		if r.Beneficiary == nil || r.Beneficiary.AccountNumber == "" {
			errs = append(errs, FieldError{Field: "beneficiary", Message: "account_number required for external transfers"})
		}
	default:
		errs = append(errs, FieldError{Field: "type", Message: "must be internal, domestic, or international"})
	}

	if !r.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than zero"})
	}

	return errs
}

type transferDTO struct {
	ID               uuid.UUID       `json:"id"`
	Reference        string          `json:"reference"`
	SenderWalletID   uuid.UUID       `json:"sender_wallet_id"`
	ReceiverWalletID *uuid.UUID      `json:"receiver_wallet_id,omitempty"`
	Type             string          `json:"type"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Fee              decimal.Decimal `json:"fee"`
	Currency         string          `json:"currency"`
	Narration        string          `json:"narration,omitempty"`
	FailureReason    *string         `json:"failure_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

func toTransferDTO(t *domain.Transfer) transferDTO {
	return transferDTO{
		ID:               t.ID,
		Reference:        t.Reference,
		SenderWalletID:   t.SenderWalletID,
		ReceiverWalletID: t.ReceiverWalletID,
		Type:             string(t.Type),
		Status:           string(t.Status),
		Amount:           t.Amount,
		Fee:              t.Fee,
		Currency:         string(t.Currency),
		Narration:        t.Narration,
		FailureReason:    t.FailureReason,
		CreatedAt:        t.CreatedAt,
		CompletedAt:      t.CompletedAt,
	}
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	createReq := transfer.CreateRequest{
		SenderUserID:   userID,
		SenderWalletID: uuid.MustParse(req.SenderWalletID),
		Type:           domain.TransferType(req.Type),
		Amount:         req.Amount,
		Narration:      req.Narration,
	}
	if req.ReceiverWalletID != "" {
		id := uuid.MustParse(req.ReceiverWalletID)
		createReq.ReceiverWalletID = &id
	}
	if req.Beneficiary != nil {
		createReq.Beneficiary = &domain.Beneficiary{
			Name:          req.Beneficiary.Name,
			AccountNumber: req.Beneficiary.AccountNumber,
			BankName:      req.Beneficiary.BankName,
			SwiftCode:     req.Beneficiary.SwiftCode,
			IBAN:          req.Beneficiary.IBAN,
			Country:       req.Beneficiary.Country,
		}
	}

	t, err := h.transfers.Create(r.Context(), createReq)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to create transfer", "error", err)
		RespondDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if t.Status == domain.TransferStatusPending {
		status = http.StatusAccepted
	}
	RespondSuccess(w, status, toTransferDTO(t))
}

func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	transferID, appErr := uuidParam(r, "transferID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	t, err := h.transfers.GetForUser(r.Context(), transferID, userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransferDTO(t))
}

func (h *TransferHandler) ListForWallet(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	walletID, appErr := uuidParam(r, "walletID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, offset := pagination(r)
	transfers, total, err := h.transfers.ListForWallet(r.Context(), walletID, userID, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transferDTO, len(transfers))
	for i := range transfers {
		dtos[i] = toTransferDTO(&transfers[i])
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"transfers": dtos,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (h *TransferHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	transfers, err := h.transfers.ListPending(r.Context(), limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transferDTO, len(transfers))
	for i := range transfers {
		dtos[i] = toTransferDTO(&transfers[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *TransferHandler) Approve(w http.ResponseWriter, r *http.Request) {
	adminID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	transferID, appErr := uuidParam(r, "transferID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	t, err := h.transfers.Approve(r.Context(), transferID, adminID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to approve transfer", "transfer_id", transferID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransferDTO(t))
}

type rejectTransferRequest struct {
	Reason string `json:"reason"`
}

func (h *TransferHandler) Reject(w http.ResponseWriter, r *http.Request) {
	adminID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	transferID, appErr := uuidParam(r, "transferID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req rejectTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Reason == "" {
		RespondValidationError(w, []FieldError{{Field: "reason", Message: "required"}})
		return
	}

	t, err := h.transfers.Reject(r.Context(), transferID, adminID, req.Reason)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to reject transfer", "transfer_id", transferID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransferDTO(t))
}
