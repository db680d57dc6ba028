package domain

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is the audit copy of a received provider event. The raw
// payload is retained verbatim so provider schema additions are never lost.
// Processed flips to true exactly once, in the same transaction as the
// side effects the event caused.
type WebhookEvent struct {
	ID          string         `gorm:"primaryKey"` // provider event id
	Type        string         `gorm:"index"`
	Payload     datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt  time.Time
	Processed   bool           `gorm:"index"`
	ProcessedAt *time.Time
}

// ProcessedEvent is the idempotency ledger row for one provider event id.
// Insert-if-absent on this table is the claim that makes webhook side effects
// at-most-once under at-least-once delivery.
type ProcessedEvent struct {
	ID          string `gorm:"primaryKey"`
	EventType   string `gorm:"index"`
	ProcessedAt time.Time
}

// ProcessedPhase is the ledger row for a completed (booking, phase) pair. It
// guards against a second succeeded event for the same phase triggering a
// duplicate booking notification.
type ProcessedPhase struct {
	BookingID   string `gorm:"primaryKey"`
	Phase       Phase  `gorm:"primaryKey"`
	EventID     string `gorm:"index"`
	ProcessedAt time.Time
}

// PayoutRecord is the audit entry written for transfer.created events.
// No booking state transitions hang off it.
type PayoutRecord struct {
	ID             string `gorm:"primaryKey"`
	TransferID     string `gorm:"uniqueIndex"`
	PayeeAccountID string `gorm:"index"`
	Amount         int64
	Currency       string
	CreatedAt      time.Time
}
