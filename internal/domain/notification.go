package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationSeverity string

const (
	NotificationSeverityInfo    NotificationSeverity = "info"
	NotificationSeverityWarning NotificationSeverity = "warning"
	NotificationSeverityAlert   NotificationSeverity = "alert"
)

type NotificationStatus string

const (
	NotificationStatusPending    NotificationStatus = "pending"
	NotificationStatusDispatched NotificationStatus = "dispatched"
	NotificationStatusFailed     NotificationStatus = "failed"
)

// NotificationEvent is an outbox row. Services enqueue after their ledger
// commit; a background dispatcher delivers. Delivery failure never touches
// the financial mutation that produced the event.
type NotificationEvent struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Title       string
	Message     string
	Severity    NotificationSeverity
	Status      NotificationStatus
	Attempts    int
	LastAttempt *time.Time
	CreatedAt   time.Time
}
