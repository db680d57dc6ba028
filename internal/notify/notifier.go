// Package notify is the outward edge toward the booking subsystem: the
// payment core reports phase and payee-account outcomes, nothing more. How
// the booking side reacts (emails, status pages) is its own business.
package notify

import (
	"context"
	"time"

	"github.com/you/charter-booking/internal/domain"
	"github.com/you/charter-booking/pkg/mq"
)

// BookingNotifier is the collaborator interface exposed to the booking
// subsystem. The webhook processor guarantees each call happens at most once
// per provider event.
type BookingNotifier interface {
	OnPhaseSucceeded(ctx context.Context, bookingID string, phase domain.Phase, amount int64) error
	OnPhaseFailed(ctx context.Context, bookingID string, phase domain.Phase, reason string) error
	OnPayeeAccountStatusChanged(ctx context.Context, payeeID string, status domain.AccountStatus) error
}

// MQNotifier publishes versioned envelopes on the payment exchange.
type MQNotifier struct {
	pub      *mq.Publisher
	currency string
}

func NewMQNotifier(pub *mq.Publisher, currency string) *MQNotifier {
	return &MQNotifier{pub: pub, currency: currency}
}

func (n *MQNotifier) OnPhaseSucceeded(ctx context.Context, bookingID string, phase domain.Phase, amount int64) error {
	evt := PhaseSucceeded{
		Event:      RKPhaseSucceeded,
		Version:    1,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	evt.Data.BookingID = bookingID
	evt.Data.Phase = phase
	evt.Data.Amount = amount
	evt.Data.Currency = n.currency
	return n.pub.PublishJSON(ctx, RKPhaseSucceeded, evt)
}

func (n *MQNotifier) OnPhaseFailed(ctx context.Context, bookingID string, phase domain.Phase, reason string) error {
	evt := PhaseFailed{
		Event:      RKPhaseFailed,
		Version:    1,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	evt.Data.BookingID = bookingID
	evt.Data.Phase = phase
	evt.Data.Reason = reason
	return n.pub.PublishJSON(ctx, RKPhaseFailed, evt)
}

func (n *MQNotifier) OnPayeeAccountStatusChanged(ctx context.Context, payeeID string, status domain.AccountStatus) error {
	evt := AccountUpdated{
		Event:      RKAccountUpdated,
		Version:    1,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	evt.Data.AccountID = payeeID
	evt.Data.Status = status
	return n.pub.PublishJSON(ctx, RKAccountUpdated, evt)
}
