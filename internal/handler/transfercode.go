package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/logging"
)

type transferCodeService interface {
	Issue(ctx context.Context, userID uuid.UUID, category domain.TransferCodeCategory, adminID uuid.UUID) (*domain.TransferCode, error)
	Verify(ctx context.Context, userID uuid.UUID, category domain.TransferCodeCategory, submitted string) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.TransferCode, error)
}

type TransferCodeHandler struct {
	codes transferCodeService
}

func NewTransferCodeHandler(codes transferCodeService) *TransferCodeHandler {
	return &TransferCodeHandler{codes: codes}
}

type transferCodeDTO struct {
	Category   string     `json:"category"`
	Active     bool       `json:"active"`
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// The code itself is never echoed back on list; users receive it out of band.
func toTransferCodeDTO(c *domain.TransferCode) transferCodeDTO {
	return transferCodeDTO{
		Category:   string(c.Category),
		Active:     c.Active,
		Verified:   c.Verified,
		VerifiedAt: c.VerifiedAt,
	}
}

type issueCodeRequest struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
}

func (r issueCodeRequest) Validate() []FieldError {
	var errs []FieldError
	if r.UserID == "" {
		errs = append(errs, FieldError{Field: "user_id", Message: "required"})
	} else if _, err := uuid.Parse(r.UserID); err != nil {
		errs = append(errs, FieldError{Field: "user_id", Message: "must be a valid UUID"})
	}
	if !domain.TransferCodeCategory(r.Category).IsValid() {
		errs = append(errs, FieldError{Field: "category", Message: "must be cot, imf, or tax"})
	}
	return errs
}

func (h *TransferCodeHandler) Issue(w http.ResponseWriter, r *http.Request) {
	adminID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req issueCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	code, err := h.codes.Issue(r.Context(), uuid.MustParse(req.UserID), domain.TransferCodeCategory(req.Category), adminID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to issue transfer code", "error", err)
		RespondDomainError(w, err)
		return
	}

	// The issuing admin sees the code once so it can be relayed to the user.
	RespondSuccess(w, http.StatusCreated, map[string]any{
		"category": string(code.Category),
		"code":     code.Code,
	})
}

type verifyCodeRequest struct {
	Category string `json:"category"`
	Code     string `json:"code"`
}

func (h *TransferCodeHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if !domain.TransferCodeCategory(req.Category).IsValid() {
		RespondValidationError(w, []FieldError{{Field: "category", Message: "must be cot, imf, or tax"}})
		return
	}
	if req.Code == "" {
		RespondValidationError(w, []FieldError{{Field: "code", Message: "required"}})
		return
	}

	if err := h.codes.Verify(r.Context(), userID, domain.TransferCodeCategory(req.Category), req.Code); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (h *TransferCodeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	codes, err := h.codes.ListForUser(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transferCodeDTO, len(codes))
	for i := range codes {
		dtos[i] = toTransferCodeDTO(&codes[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}
