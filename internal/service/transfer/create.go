package transfer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/kyc"
	"github.com/demilade-ak/vaultbank/internal/ledger"
	"github.com/demilade-ak/vaultbank/internal/logging"
)

type CreateRequest struct {
	SenderUserID     uuid.UUID
	SenderWalletID   uuid.UUID
	ReceiverWalletID *uuid.UUID
	Type             domain.TransferType
	Amount           decimal.Decimal
	Narration        string
	Beneficiary      *domain.Beneficiary
}

func (r CreateRequest) validate() error {
	if !r.Type.IsValid() {
		return domain.ErrInvalidRequest
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrInvalidAmount
	}
	switch r.Type {
	case domain.TransferTypeInternal:
		if r.ReceiverWalletID == nil {
			return domain.ErrInvalidRequest
		}
	default:
		if r.Beneficiary == nil || r.Beneficiary.AccountNumber == "" {
			return domain.ErrInvalidRequest
		}
	}
	return nil
}

// Create runs the full request-time gauntlet: KYC, wallet state, limits and
// the transfer-code gate. Internal transfers settle immediately unless the
// approval flag is on; everything else waits for an admin.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Transfer, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	if err := kyc.RequireApproved(ctx, s.verifier, req.SenderUserID); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	sender, err := s.wallets.GetByID(ctx, req.SenderWalletID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if sender.UserID != req.SenderUserID {
		return nil, fmt.Errorf("Create: %w", domain.ErrWalletNotFound)
	}
	if err := verifyWalletActive(sender, "Create: sender"); err != nil {
		return nil, err
	}

	fee := s.fees.Fee(req.Amount, req.Type)
	total := req.Amount.Add(fee)

	if sender.Balance.LessThan(total) {
		return nil, fmt.Errorf("Create: %w", domain.ErrInsufficientFunds)
	}

	if err := s.limits.Check(ctx, sender.ID, req.Amount); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	if req.Type == domain.TransferTypeInternational {
		met, err := s.codes.RequirementMet(ctx, req.SenderUserID, sender.RequireTransferCodes)
		if err != nil {
			return nil, fmt.Errorf("Create: %w", err)
		}
		if !met {
			return nil, fmt.Errorf("Create: %w", domain.ErrTransferCodeRequired)
		}
	}

	t := &domain.Transfer{
		ID:             uuid.New(),
		Reference:      "TRF-" + uuid.NewString(),
		SenderWalletID: sender.ID,
		Type:           req.Type,
		Amount:         req.Amount,
		Fee:            fee,
		Currency:       sender.Currency,
		Status:         domain.TransferStatusPending,
		Narration:      req.Narration,
		Beneficiary:    req.Beneficiary,
		CreatedAt:      time.Now().UTC(),
	}

	if req.Type == domain.TransferTypeInternal {
		receiver, err := s.wallets.GetByID(ctx, *req.ReceiverWalletID)
		if err != nil {
			return nil, fmt.Errorf("Create: receiver: %w", err)
		}
		if receiver.ID == sender.ID {
			return nil, fmt.Errorf("Create: %w", domain.ErrSelfTransfer)
		}
		if receiver.Currency != sender.Currency {
			return nil, fmt.Errorf("Create: %w", domain.ErrCurrencyMismatch)
		}
		if err := verifyWalletActive(receiver, "Create: receiver"); err != nil {
			return nil, err
		}
		t.ReceiverWalletID = &receiver.ID

		queued, err := s.settings.GetBool(ctx, InternalApprovalFlag)
		if err != nil {
			return nil, fmt.Errorf("Create: %w", err)
		}
		if !queued {
			return s.settleInstant(ctx, t, sender, receiver)
		}
	}

	if err := s.enqueue(ctx, t); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).InfoContext(ctx, "transfer queued",
		"transfer_id", t.ID, "type", t.Type, "amount", t.Amount, "fee", t.Fee)
	s.notify.Enqueue(ctx, req.SenderUserID, "Transfer queued",
		fmt.Sprintf("Your %s transfer of %s %s is awaiting approval.", t.Type, t.Amount, t.Currency),
		domain.NotificationSeverityInfo)

	return t, nil
}

// settleInstant books the transfer and moves money inside a single
// transaction. Wallets are re-locked in sorted order before any balance
// changes.
func (s *Service) settleInstant(ctx context.Context, t *domain.Transfer, sender, receiver *domain.Wallet) (*domain.Transfer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settleInstant: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockWalletsInOrder(ctx, tx, s.wallets, sender.ID, receiver.ID); err != nil {
		return nil, fmt.Errorf("settleInstant: %w", err)
	}

	// Re-check the limits now that the sender row is locked: a concurrent
	// transfer may have completed since the request-time check.
	if err := s.limits.CheckTx(ctx, tx, t.SenderWalletID, t.Amount); err != nil {
		return nil, fmt.Errorf("settleInstant: %w", err)
	}

	if err := s.transfers.Create(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("settleInstant: %w", err)
	}

	if err := s.applyMovements(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("settleInstant: %w", err)
	}

	now := time.Now().UTC()
	if err := s.transfers.UpdateStatus(ctx, tx, t.ID, domain.TransferStatusCompleted, nil, nil, &now); err != nil {
		return nil, fmt.Errorf("settleInstant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("settleInstant: commit: %w", err)
	}

	t.Status = domain.TransferStatusCompleted
	t.CompletedAt = &now

	logging.FromContext(ctx).InfoContext(ctx, "transfer settled",
		"transfer_id", t.ID, "amount", t.Amount, "fee", t.Fee)
	s.notify.Enqueue(ctx, sender.UserID, "Transfer sent",
		fmt.Sprintf("You sent %s %s.", t.Amount, t.Currency), domain.NotificationSeverityInfo)
	s.notify.Enqueue(ctx, receiver.UserID, "Transfer received",
		fmt.Sprintf("You received %s %s.", t.Amount, t.Currency), domain.NotificationSeverityInfo)

	return t, nil
}

// enqueue books the transfer as pending and records a pending debit entry on
// the sender's ledger so the in-flight amount is visible in history.
func (s *Service) enqueue(ctx context.Context, t *domain.Transfer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("enqueue: begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.transfers.Create(ctx, tx, t); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	sender, err := s.wallets.GetForUpdate(ctx, tx, t.SenderWalletID)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	if _, err := s.ledger.LogPending(ctx, tx, ledger.Delta{
		WalletID:    sender.ID,
		UserID:      sender.UserID,
		Amount:      t.Amount.Neg(),
		Kind:        domain.TxnKindTransfer,
		Reference:   t.Reference + "/debit",
		Description: t.Narration,
		TransferID:  &t.ID,
	}); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("enqueue: commit: %w", err)
	}
	return nil
}

// applyMovements performs the ledger writes for a settling transfer: sender
// debit, fee debit when a fee applies, and the receiver credit for internal
// transfers.
func (s *Service) applyMovements(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error {
	sender, err := s.wallets.GetForUpdate(ctx, tx, t.SenderWalletID)
	if err != nil {
		return err
	}

	if _, err := s.ledger.Apply(ctx, tx, ledger.Delta{
		WalletID:    sender.ID,
		UserID:      sender.UserID,
		Amount:      t.Amount.Neg(),
		Kind:        domain.TxnKindTransfer,
		Reference:   t.Reference + "/debit",
		Description: t.Narration,
		TransferID:  &t.ID,
	}); err != nil {
		return err
	}

	if t.Fee.IsPositive() {
		if _, err := s.ledger.Apply(ctx, tx, ledger.Delta{
			WalletID:    sender.ID,
			UserID:      sender.UserID,
			Amount:      t.Fee.Neg(),
			Kind:        domain.TxnKindFee,
			Reference:   t.Reference + "/fee",
			Description: "transfer fee",
			TransferID:  &t.ID,
		}); err != nil {
			return err
		}
	}

	if t.ReceiverWalletID != nil {
		receiver, err := s.wallets.GetForUpdate(ctx, tx, *t.ReceiverWalletID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.Apply(ctx, tx, ledger.Delta{
			WalletID:    receiver.ID,
			UserID:      receiver.UserID,
			Amount:      t.Amount,
			Kind:        domain.TxnKindTransfer,
			Reference:   t.Reference + "/credit",
			Description: t.Narration,
			TransferID:  &t.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}
