package service

import (
	"context"
	"time"

	"github.com/you/charter-booking/internal/domain"
)

// Store is the persistence surface the payment core needs. The gorm-backed
// implementation lives in internal/repository; tests use an in-memory one.
//
// The ledger methods (ClaimEvent, ClaimPhase) are atomic insert-if-absent
// operations. Only the store may mark work as done; callers never write the
// processed sets directly.
type Store interface {
	// Transaction runs fn against a transactional view of the store. All
	// writes made through the view commit or roll back together.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateIntent(ctx context.Context, rec *domain.PaymentIntentRecord) error
	IntentByID(ctx context.Context, id string) (*domain.PaymentIntentRecord, error)
	IntentsByBooking(ctx context.Context, bookingID string) ([]domain.PaymentIntentRecord, error)
	// UpdateIntentStatus moves an intent to the given status. Setting the
	// current status again is a no-op; leaving a terminal status is a
	// StateConflictError.
	UpdateIntentStatus(ctx context.Context, id string, to domain.IntentStatus, reason string) error

	CreateAccount(ctx context.Context, acc *domain.PayeeAccount) error
	AccountByID(ctx context.Context, id string) (*domain.PayeeAccount, error)
	SaveAccount(ctx context.Context, acc *domain.PayeeAccount) error

	// RecordEvent stores the audit copy of a webhook event, ignoring
	// redeliveries of an id already on file.
	RecordEvent(ctx context.Context, ev *domain.WebhookEvent) error
	MarkEventProcessed(ctx context.Context, id string, at time.Time) error
	// ClaimEvent returns true exactly once per event id.
	ClaimEvent(ctx context.Context, id, eventType string) (bool, error)
	// ClaimPhase returns true exactly once per (booking, phase) pair.
	ClaimPhase(ctx context.Context, bookingID string, phase domain.Phase, eventID string) (bool, error)

	RecordPayout(ctx context.Context, p *domain.PayoutRecord) error
	PayoutsByAccount(ctx context.Context, accountID string) ([]domain.PayoutRecord, error)
}
