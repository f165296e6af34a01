package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/ledger"
)

type eventRepo interface {
	GetPending(ctx context.Context, limit int) ([]domain.GatewayEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.GatewayEventStatus) error
}

// Processor drains stored webhook events on a timer and reconciles each one
// against its gateway payment. Intake and processing are decoupled so the
// webhook endpoint can acknowledge fast.
type Processor struct {
	events   eventRepo
	service  *Service
	logger   *slog.Logger
	interval time.Duration
}

func NewProcessor(events eventRepo, service *Service, logger *slog.Logger, interval time.Duration) *Processor {
	return &Processor{
		events:   events,
		service:  service,
		logger:   logger,
		interval: interval,
	}
}

func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("webhook processor started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("webhook processor stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Processor) poll(ctx context.Context) {
	events, err := p.events.GetPending(ctx, 10)
	if err != nil {
		p.logger.Error("failed to fetch pending gateway events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error("failed to process gateway event",
				"gateway_event_id", event.ID,
				"reference", event.Reference,
				"error", err,
			)
		}
	}
}

func (p *Processor) processEvent(ctx context.Context, event domain.GatewayEvent) error {
	err := p.service.HandleEvent(ctx, event.Reference, event.Outcome)
	switch {
	case err == nil:
		return p.events.UpdateStatus(ctx, event.ID, domain.GatewayEventStatusDispatched)
	case errors.Is(err, domain.ErrNotFound):
		p.logger.Warn("no payment for gateway event",
			"gateway_event_id", event.ID, "reference", event.Reference)
		return p.events.UpdateStatus(ctx, event.ID, domain.GatewayEventStatusFailed)
	case errors.Is(err, domain.ErrInvalidRequest):
		p.logger.Error("unknown outcome in gateway event",
			"gateway_event_id", event.ID, "outcome", event.Outcome)
		return p.events.UpdateStatus(ctx, event.ID, domain.GatewayEventStatusFailed)
	default:
		return fmt.Errorf("processEvent: %w", err)
	}
}

// HandleEvent reconciles one delivery. The payment is re-read under a row
// lock; if it is already terminal the delivery is a replay and nothing
// happens. Deposits credit on success; withdrawals were pre-deducted, so
// success only marks them complete and failure refunds the deduction.
func (s *Service) HandleEvent(ctx context.Context, reference, outcome string) error {
	p, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return fmt.Errorf("HandleEvent: %w", err)
	}
	if p.Status.IsTerminal() {
		return nil
	}

	switch outcome {
	case "success":
		return s.settleSuccess(ctx, p)
	case "failed":
		return s.failAndRefund(ctx, p, "gateway reported failure")
	default:
		return fmt.Errorf("HandleEvent: outcome %q: %w", outcome, domain.ErrInvalidRequest)
	}
}

func (s *Service) settleSuccess(ctx context.Context, p *domain.GatewayPayment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settleSuccess: begin: %w", err)
	}
	defer tx.Rollback()

	locked, err := s.payments.GetForUpdateByReference(ctx, tx, p.Reference)
	if err != nil {
		return fmt.Errorf("settleSuccess: %w", err)
	}
	if locked.Status.IsTerminal() {
		return nil
	}

	if locked.Type == domain.GatewayPaymentTypeDeposit {
		if _, err := s.ledger.Apply(ctx, tx, ledger.Delta{
			WalletID:    locked.WalletID,
			UserID:      locked.UserID,
			Amount:      locked.Amount,
			Kind:        domain.TxnKindDeposit,
			Reference:   locked.Reference + "/credit",
			Description: "gateway deposit",
		}); err != nil {
			return fmt.Errorf("settleSuccess: %w", err)
		}
	}

	if err := s.payments.UpdateStatus(ctx, tx, locked.ID, domain.GatewayPaymentStatusCompleted, nil, nil); err != nil {
		return fmt.Errorf("settleSuccess: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("settleSuccess: commit: %w", err)
	}

	title, message := "Deposit completed", fmt.Sprintf("%s %s has been added to your wallet.", locked.Amount, locked.Currency)
	if locked.Type == domain.GatewayPaymentTypeWithdrawal {
		title, message = "Withdrawal completed", fmt.Sprintf("Your withdrawal of %s %s has been paid out.", locked.Amount, locked.Currency)
	}
	s.notify.Enqueue(ctx, locked.UserID, title, message, domain.NotificationSeverityInfo)
	return nil
}

func (s *Service) failAndRefund(ctx context.Context, p *domain.GatewayPayment, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failAndRefund: begin: %w", err)
	}
	defer tx.Rollback()

	locked, err := s.payments.GetForUpdateByReference(ctx, tx, p.Reference)
	if err != nil {
		return fmt.Errorf("failAndRefund: %w", err)
	}
	if locked.Status.IsTerminal() {
		return nil
	}

	if locked.Type == domain.GatewayPaymentTypeWithdrawal {
		if _, err := s.ledger.Apply(ctx, tx, ledger.Delta{
			WalletID:    locked.WalletID,
			UserID:      locked.UserID,
			Amount:      locked.Amount,
			Kind:        domain.TxnKindRefund,
			Reference:   locked.Reference + "/refund",
			Description: "withdrawal refund",
		}); err != nil {
			return fmt.Errorf("failAndRefund: %w", err)
		}
	}

	if err := s.payments.UpdateStatus(ctx, tx, locked.ID, domain.GatewayPaymentStatusFailed, nil, &reason); err != nil {
		return fmt.Errorf("failAndRefund: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failAndRefund: commit: %w", err)
	}

	title := "Deposit failed"
	if locked.Type == domain.GatewayPaymentTypeWithdrawal {
		title = "Withdrawal failed"
	}
	s.notify.Enqueue(ctx, locked.UserID, title,
		fmt.Sprintf("Your %s of %s %s failed: %s", locked.Type, locked.Amount, locked.Currency, reason),
		domain.NotificationSeverityWarning)
	return nil
}
