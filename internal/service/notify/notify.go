// Package notify is a best-effort outbox. Services enqueue events after
// their financial work commits; a dispatcher delivers them in the
// background. A delivery problem is logged and never propagated back into
// the money path.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/logging"
)

type eventRepo interface {
	Create(ctx context.Context, e *domain.NotificationEvent) error
	GetPending(ctx context.Context, limit int) ([]domain.NotificationEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus) error
}

// Sender delivers one notification to the user through some channel.
type Sender interface {
	Send(ctx context.Context, e domain.NotificationEvent) error
}

type Outbox struct {
	events eventRepo
}

func NewOutbox(events eventRepo) *Outbox {
	return &Outbox{events: events}
}

// Enqueue stores an event for later delivery. Failures are logged and
// swallowed so a broken outbox cannot fail the operation that produced the
// event.
func (o *Outbox) Enqueue(ctx context.Context, userID uuid.UUID, title, message string, severity domain.NotificationSeverity) {
	e := &domain.NotificationEvent{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Severity:  severity,
		Status:    domain.NotificationStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.events.Create(ctx, e); err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "notification enqueue failed",
			"user_id", userID, "title", title, "error", err)
	}
}

type Dispatcher struct {
	events   eventRepo
	sender   Sender
	logger   *slog.Logger
	interval time.Duration
}

func NewDispatcher(events eventRepo, sender Sender, logger *slog.Logger, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		events:   events,
		sender:   sender,
		logger:   logger,
		interval: interval,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("notification dispatcher started", "interval", d.interval)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("notification dispatcher stopped")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context) {
	events, err := d.events.GetPending(ctx, 20)
	if err != nil {
		d.logger.Error("failed to fetch pending notifications", "error", err)
		return
	}

	for _, e := range events {
		status := domain.NotificationStatusDispatched
		if err := d.sender.Send(ctx, e); err != nil {
			d.logger.Error("notification delivery failed",
				"notification_id", e.ID, "user_id", e.UserID, "error", err)
			status = domain.NotificationStatusFailed
		}
		if err := d.events.UpdateStatus(ctx, e.ID, status); err != nil {
			d.logger.Error("failed to update notification status",
				"notification_id", e.ID, "error", err)
		}
	}
}

// LogSender writes notifications to the application log. It stands in for a
// real email or push channel.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, e domain.NotificationEvent) error {
	s.logger.Info("notification",
		"user_id", e.UserID, "severity", e.Severity, "title", e.Title, "message", e.Message)
	return nil
}
