package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/logging"
)

// Approve settles a pending transfer. The status is re-checked under a row
// lock so concurrent decisions on the same transfer cannot both settle it.
func (s *Service) Approve(ctx context.Context, transferID, adminID uuid.UUID) (*domain.Transfer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Approve: begin: %w", err)
	}
	defer tx.Rollback()

	t, err := s.transfers.GetForUpdate(ctx, tx, transferID)
	if err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}
	if t.Status != domain.TransferStatusPending {
		return nil, fmt.Errorf("Approve: %w", domain.ErrAlreadyProcessed)
	}

	lockIDs := []uuid.UUID{t.SenderWalletID}
	if t.ReceiverWalletID != nil {
		lockIDs = append(lockIDs, *t.ReceiverWalletID)
	}
	locked, err := lockWalletsInOrder(ctx, tx, s.wallets, lockIDs...)
	if err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}
	if err := verifyWalletActive(locked[t.SenderWalletID], "Approve: sender"); err != nil {
		return nil, err
	}

	// The limit windows are re-evaluated under the row lock: transfers
	// completed since the request-time check count against the approval.
	if err := s.limits.CheckTx(ctx, tx, t.SenderWalletID, t.Amount); err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}

	if err := s.applyMovements(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}

	now := time.Now().UTC()
	if err := s.transfers.UpdateStatus(ctx, tx, t.ID, domain.TransferStatusCompleted, &adminID, nil, &now); err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Approve: commit: %w", err)
	}

	t.Status = domain.TransferStatusCompleted
	t.ApprovedBy = &adminID
	t.CompletedAt = &now

	logging.FromContext(ctx).InfoContext(ctx, "transfer approved",
		"transfer_id", t.ID, "admin_id", adminID, "amount", t.Amount, "fee", t.Fee)
	s.notify.Enqueue(ctx, locked[t.SenderWalletID].UserID, "Transfer completed",
		fmt.Sprintf("Your %s transfer of %s %s was approved.", t.Type, t.Amount, t.Currency),
		domain.NotificationSeverityInfo)
	if t.ReceiverWalletID != nil {
		s.notify.Enqueue(ctx, locked[*t.ReceiverWalletID].UserID, "Transfer received",
			fmt.Sprintf("You received %s %s.", t.Amount, t.Currency), domain.NotificationSeverityInfo)
	}

	return t, nil
}

// Reject fails a pending transfer without moving money. The pending ledger
// entry recorded at request time is settled as failed.
func (s *Service) Reject(ctx context.Context, transferID, adminID uuid.UUID, reason string) (*domain.Transfer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Reject: begin: %w", err)
	}
	defer tx.Rollback()

	t, err := s.transfers.GetForUpdate(ctx, tx, transferID)
	if err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}
	if t.Status != domain.TransferStatusPending {
		return nil, fmt.Errorf("Reject: %w", domain.ErrAlreadyProcessed)
	}

	if err := s.ledger.Fail(ctx, tx, t.Reference+"/debit"); err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}

	now := time.Now().UTC()
	if err := s.transfers.UpdateStatus(ctx, tx, t.ID, domain.TransferStatusFailed, &adminID, &reason, &now); err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Reject: commit: %w", err)
	}

	t.Status = domain.TransferStatusFailed
	t.ApprovedBy = &adminID
	t.FailureReason = &reason

	logging.FromContext(ctx).InfoContext(ctx, "transfer rejected",
		"transfer_id", t.ID, "admin_id", adminID, "reason", reason)

	sender, err := s.wallets.GetByID(ctx, t.SenderWalletID)
	if err == nil {
		s.notify.Enqueue(ctx, sender.UserID, "Transfer rejected",
			fmt.Sprintf("Your %s transfer of %s %s was rejected: %s", t.Type, t.Amount, t.Currency, reason),
			domain.NotificationSeverityWarning)
	}

	return t, nil
}
