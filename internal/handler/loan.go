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
	"github.com/demilade-ak/vaultbank/internal/service/loan"
)

type loanService interface {
	Apply(ctx context.Context, req loan.ApplyRequest) (*domain.Loan, error)
	GetForUser(ctx context.Context, loanID, userID uuid.UUID) (*domain.Loan, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error)
	Summarize(ctx context.Context, loanID, userID uuid.UUID) (*loan.Summary, error)
	RequestFee(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal, instructions string) (*domain.Loan, error)
	SubmitFeeProof(ctx context.Context, loanID, userID uuid.UUID, proofRef string) (*domain.Loan, error)
	Approve(ctx context.Context, loanID, adminID uuid.UUID) (*domain.Loan, error)
	Reject(ctx context.Context, loanID, adminID uuid.UUID, reason string) (*domain.Loan, error)
	Disburse(ctx context.Context, loanID, adminID uuid.UUID) (*domain.Loan, error)
	Repay(ctx context.Context, loanID, userID uuid.UUID, amount decimal.Decimal) (*domain.Loan, error)
	ProposeOffer(ctx context.Context, loanID, adminID uuid.UUID, principal, ratePct decimal.Decimal, durationMonths int) (*domain.LoanOffer, error)
	AcceptOffer(ctx context.Context, offerID, userID uuid.UUID) (*domain.Loan, error)
	DeclineOffer(ctx context.Context, offerID, userID uuid.UUID) error
	ListOffers(ctx context.Context, loanID, userID uuid.UUID) ([]domain.LoanOffer, error)
}

type LoanHandler struct {
	loans loanService
}

func NewLoanHandler(loans loanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

type loanDTO struct {
	ID             uuid.UUID        `json:"id"`
	WalletID       uuid.UUID        `json:"wallet_id"`
	Principal      decimal.Decimal  `json:"principal"`
	Currency       string           `json:"currency"`
	DurationMonths int              `json:"duration_months"`
	AnnualRatePct  decimal.Decimal  `json:"annual_rate_pct"`
	MonthlyPayment *decimal.Decimal `json:"monthly_payment,omitempty"`
	Status         string           `json:"status"`
	TotalRepaid    decimal.Decimal  `json:"total_repaid"`
	NextPaymentDue *time.Time       `json:"next_payment_due,omitempty"`
	FeeAmount      *decimal.Decimal `json:"fee_amount,omitempty"`
	Purpose        string           `json:"purpose,omitempty"`
	DisbursedAt    *time.Time       `json:"disbursed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

func toLoanDTO(l *domain.Loan) loanDTO {
	return loanDTO{
		ID:             l.ID,
		WalletID:       l.WalletID,
		Principal:      l.Principal,
		Currency:       string(l.Currency),
		DurationMonths: l.DurationMonths,
		AnnualRatePct:  l.AnnualRatePct,
		MonthlyPayment: l.MonthlyPayment,
		Status:         string(l.Status),
		TotalRepaid:    l.TotalRepaid,
		NextPaymentDue: l.NextPaymentDue,
		FeeAmount:      l.FeeAmount,
		Purpose:        l.Purpose,
		DisbursedAt:    l.DisbursedAt,
		CreatedAt:      l.CreatedAt,
	}
}

type offerDTO struct {
	ID                uuid.UUID       `json:"id"`
	LoanID            uuid.UUID       `json:"loan_id"`
	ProposedPrincipal decimal.Decimal `json:"proposed_principal"`
	ProposedRatePct   decimal.Decimal `json:"proposed_rate_pct"`
	ProposedDuration  int             `json:"proposed_duration_months"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

func toOfferDTO(o *domain.LoanOffer) offerDTO {
	return offerDTO{
		ID:                o.ID,
		LoanID:            o.LoanID,
		ProposedPrincipal: o.ProposedPrincipal,
		ProposedRatePct:   o.ProposedRatePct,
		ProposedDuration:  o.ProposedDuration,
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt,
	}
}

type applyLoanRequest struct {
	WalletID       string          `json:"wallet_id"`
	Principal      decimal.Decimal `json:"principal"`
	DurationMonths int             `json:"duration_months"`
	AnnualRatePct  decimal.Decimal `json:"annual_rate_pct"`
	Purpose        string          `json:"purpose"`
}

func (r applyLoanRequest) Validate() []FieldError {
	var errs []FieldError
	if r.WalletID == "" {
		errs = append(errs, FieldError{Field: "wallet_id", Message: "required"})
	} else if _, err := uuid.Parse(r.WalletID); err != nil {
		errs = append(errs, FieldError{Field: "wallet_id", Message: "must be a valid UUID"})
	}
	if !r.Principal.IsPositive() {
		errs = append(errs, FieldError{Field: "principal", Message: "must be greater than zero"})
	}
	if r.DurationMonths <= 0 {
		errs = append(errs, FieldError{Field: "duration_months", Message: "must be greater than zero"})
	}
	if r.AnnualRatePct.IsNegative() {
		errs = append(errs, FieldError{Field: "annual_rate_pct", Message: "must not be negative"})
	}
	return errs
}

func (h *LoanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req applyLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	l, err := h.loans.Apply(r.Context(), loan.ApplyRequest{
		UserID:         userID,
		WalletID:       uuid.MustParse(req.WalletID),
		Principal:      req.Principal,
		DurationMonths: req.DurationMonths,
		AnnualRatePct:  req.AnnualRatePct,
		Purpose:        req.Purpose,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to file loan application", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toLoanDTO(l))
}

func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	loans, err := h.loans.ListForUser(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]loanDTO, len(loans))
	for i := range loans {
		dtos[i] = toLoanDTO(&loans[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *LoanHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	loanID, appErr := uuidParam(r, "loanID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	sum, err := h.loans.Summarize(r.Context(), loanID, userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"loan":             toLoanDTO(sum.Loan),
		"outstanding":      sum.Outstanding,
		"total_repayable":  sum.TotalRepayable,
		"accrued_interest": sum.AccruedInterest,
	})
}

type repayLoanRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *LoanHandler) Repay(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	loanID, appErr := uuidParam(r, "loanID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req repayLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if !req.Amount.IsPositive() {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "must be greater than zero"}})
		return
	}

	l, err := h.loans.Repay(r.Context(), loanID, userID, req.Amount)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to apply repayment", "loan_id", loanID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLoanDTO(l))
}

type feeProofRequest struct {
	ProofRef string `json:"proof_ref"`
}

func (h *LoanHandler) SubmitFeeProof(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	loanID, appErr := uuidParam(r, "loanID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req feeProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.ProofRef == "" {
		RespondValidationError(w, []FieldError{{Field: "proof_ref", Message: "required"}})
		return
	}

	l, err := h.loans.SubmitFeeProof(r.Context(), loanID, userID, req.ProofRef)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLoanDTO(l))
}

func (h *LoanHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	loanID, appErr := uuidParam(r, "loanID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	offers, err := h.loans.ListOffers(r.Context(), loanID, userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]offerDTO, len(offers))
	for i := range offers {
		dtos[i] = toOfferDTO(&offers[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *LoanHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	offerID, appErr := uuidParam(r, "offerID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	l, err := h.loans.AcceptOffer(r.Context(), offerID, userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLoanDTO(l))
}

func (h *LoanHandler) DeclineOffer(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	offerID, appErr := uuidParam(r, "offerID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	if err := h.loans.DeclineOffer(r.Context(), offerID, userID); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "declined"})
}

type requestFeeRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	Instructions string          `json:"instructions"`
}

func (h *LoanHandler) RequestFee(w http.ResponseWriter, r *http.Request) {
	loanID, appErr := uuidParam(r, "loanID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req requestFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if !req.Amount.IsPositive() {
		RespondValidationError(w, []FieldError{{Field: "amount", Message: "must be greater than zero"}})
		return
	}

	l, err := h.loans.RequestFee(r.Context(), loanID, req.Amount, req.Instructions)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLoanDTO(l))
}

func (h *LoanHandler) Approve(w http.ResponseWriter, r *http.Request) {
	adminID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	loanID, appErr := uuidParam(r, "loanID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	l, err := h.loans.Approve(r.Context(), loanID, adminID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to approve loan", "loan_id", loanID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLoanDTO(l))
}

type rejectLoanRequest struct {
	Reason string `json:"reason"`
}

func (h *LoanHandler) Reject(w http.ResponseWriter, r *http.Request) {
	adminID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	loanID, appErr := uuidParam(r, "loanID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req rejectLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	l, err := h.loans.Reject(r.Context(), loanID, adminID, req.Reason)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLoanDTO(l))
}

func (h *LoanHandler) Disburse(w http.ResponseWriter, r *http.Request) {
	adminID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	loanID, appErr := uuidParam(r, "loanID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	l, err := h.loans.Disburse(r.Context(), loanID, adminID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to disburse loan", "loan_id", loanID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLoanDTO(l))
}

type proposeOfferRequest struct {
	Principal      decimal.Decimal `json:"principal"`
	AnnualRatePct  decimal.Decimal `json:"annual_rate_pct"`
	DurationMonths int             `json:"duration_months"`
}

func (h *LoanHandler) ProposeOffer(w http.ResponseWriter, r *http.Request) {
	adminID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	loanID, appErr := uuidParam(r, "loanID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req proposeOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if !req.Principal.IsPositive() || req.DurationMonths <= 0 {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	o, err := h.loans.ProposeOffer(r.Context(), loanID, adminID, req.Principal, req.AnnualRatePct, req.DurationMonths)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toOfferDTO(o))
}
