package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/logging"
)

type walletRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error)
}

type transactionRepository interface {
	GetByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error)
	DeleteTerminal(ctx context.Context, id, userID uuid.UUID) error
}

type WalletHandler struct {
	wallets walletRepository
	txns    transactionRepository
}

func NewWalletHandler(wallets walletRepository, txns transactionRepository) *WalletHandler {
	return &WalletHandler{wallets: wallets, txns: txns}
}

type walletDTO struct {
	ID        uuid.UUID       `json:"id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

func toWalletDTO(w *domain.Wallet) walletDTO {
	return walletDTO{
		ID:        w.ID,
		Currency:  string(w.Currency),
		Balance:   w.Balance,
		Status:    string(w.Status),
		CreatedAt: w.CreatedAt,
	}
}

type transactionDTO struct {
	ID            uuid.UUID       `json:"id"`
	Kind          string          `json:"kind"`
	Direction     string          `json:"direction"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description"`
	Reference     string          `json:"reference"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:            t.ID,
		Kind:          string(t.Kind),
		Direction:     string(t.Direction),
		Status:        string(t.Status),
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		Description:   t.Description,
		Reference:     t.Reference,
		CreatedAt:     t.CreatedAt,
	}
}

func (h *WalletHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	wallets, err := h.wallets.GetByUserID(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list wallets", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]walletDTO, len(wallets))
	for i := range wallets {
		dtos[i] = toWalletDTO(&wallets[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	wallet, err := h.ownedWallet(r.Context(), walletID, userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toWalletDTO(wallet))
}

// History returns the wallet's ledger entries, newest first.
func (h *WalletHandler) History(w http.ResponseWriter, r *http.Request) {
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

	if _, err := h.ownedWallet(r.Context(), walletID, userID); err != nil {
		RespondDomainError(w, err)
		return
	}

	limit, offset := pagination(r)
	txns, total, err := h.txns.GetByWalletID(r.Context(), walletID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to fetch transaction history", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transactionDTO, len(txns))
	for i := range txns {
		dtos[i] = toTransactionDTO(&txns[i])
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"transactions": dtos,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

// PruneEntry removes a settled entry from the user's visible history. Pending
// entries cannot be removed.
func (h *WalletHandler) PruneEntry(w http.ResponseWriter, r *http.Request) {
	userID, appErr := requireUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	entryID, appErr := uuidParam(r, "entryID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	if err := h.txns.DeleteTerminal(r.Context(), entryID, userID); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *WalletHandler) ownedWallet(ctx context.Context, walletID, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := h.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if wallet.UserID != userID {
		return nil, domain.ErrWalletNotFound
	}
	return wallet, nil
}
