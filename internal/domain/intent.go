package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Phase is the half of the two-phase booking payment an intent collects.
type Phase string

const (
	PhaseDeposit Phase = "deposit"
	PhaseBalance Phase = "balance"
)

func (p Phase) Valid() bool { return p == PhaseDeposit || p == PhaseBalance }

// IntentStatus mirrors the provider-side lifecycle of a payment intent.
// Records only move forward; succeeded and failed are terminal.
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentFailed                IntentStatus = "failed"
)

func (s IntentStatus) Terminal() bool {
	return s == IntentSucceeded || s == IntentFailed
}

// PaymentStatus is the normalized status reported to API callers, collapsing
// provider-specific intermediate states.
type PaymentStatus string

const (
	StatusPending        PaymentStatus = "pending"
	StatusProcessing     PaymentStatus = "processing"
	StatusSucceeded      PaymentStatus = "succeeded"
	StatusFailed         PaymentStatus = "failed"
	StatusRequiresAction PaymentStatus = "requires_action"
)

// NormalizeProviderStatus maps a raw provider intent status onto the domain
// enum. Unrecognized statuses report as pending: a status we have never seen
// cannot be treated as settled.
func NormalizeProviderStatus(s string) PaymentStatus {
	switch s {
	case "requires_payment_method", "requires_confirmation", "requires_capture":
		return StatusPending
	case "processing":
		return StatusProcessing
	case "requires_action":
		return StatusRequiresAction
	case "succeeded":
		return StatusSucceeded
	case "canceled", "failed", "payment_failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

// PaymentIntentRecord is the persisted audit trail of one phase payment.
// Created when the phase is initiated, mutated only by webhook-confirmed
// status transitions, never deleted.
type PaymentIntentRecord struct {
	ID             string            `gorm:"primaryKey"` // provider-assigned intent id
	BookingID      string            `gorm:"index"`
	Phase          Phase             `gorm:"index"`
	Amount         int64             // minor units
	FeeAmount      int64             // platform application fee, minor units
	PayeeAccountID string            `gorm:"index"`
	CustomerID     string            // set for balance-phase intents
	Status         IntentStatus      `gorm:"index"`
	FailureReason  string
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MetadataFrom converts a string map into the stored JSON metadata column.
func MetadataFrom(m map[string]string) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range m {
		out[k] = v
	}
	return out
}
