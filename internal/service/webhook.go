package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/you/charter-booking/internal/domain"
	"github.com/you/charter-booking/internal/notify"
	"github.com/you/charter-booking/internal/provider"
)

// WebhookProcessor turns at-least-once provider deliveries into at-most-once
// side effects. Verify the signature, claim the event id in the ledger,
// dispatch by type, mark processed. All but the verify run inside one
// transaction. A failed dispatch leaves the event unclaimed so the
// provider's redelivery is the retry mechanism; there is no internal loop.
type WebhookProcessor struct {
	store    Store
	prov     provider.Client
	connect  *ConnectService
	notifier notify.BookingNotifier
}

func NewWebhookProcessor(store Store, prov provider.Client, connect *ConnectService, notifier notify.BookingNotifier) *WebhookProcessor {
	return &WebhookProcessor{store: store, prov: prov, connect: connect, notifier: notifier}
}

func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signature string) error {
	ev, err := p.prov.VerifyEvent(payload, signature)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	// Audit copy first. Kept even when dispatch fails, so every delivery of
	// a genuine event is on file.
	if err := p.store.RecordEvent(ctx, &domain.WebhookEvent{
		ID:         ev.ID,
		Type:       ev.Type,
		Payload:    append([]byte(nil), ev.Payload...),
		ReceivedAt: now,
	}); err != nil {
		return err
	}

	// Notifications are queued during dispatch and sent only after commit:
	// a rolled-back transition must not have told the booking side anything.
	var pending []func(context.Context) error

	err = p.store.Transaction(ctx, func(tx Store) error {
		claimed, err := tx.ClaimEvent(ctx, ev.ID, ev.Type)
		if err != nil {
			return err
		}
		if !claimed {
			// redelivery of an applied event: acknowledge, change nothing
			pending = nil
			return nil
		}
		if err := p.dispatch(ctx, tx, ev, &pending); err != nil {
			return err
		}
		return tx.MarkEventProcessed(ctx, ev.ID, now)
	})
	if err != nil {
		return err
	}

	for _, fn := range pending {
		if err := fn(ctx); err != nil {
			// the transition is committed; a lost notification is logged,
			// not replayed
			log.Printf("[webhook] notify error event=%s: %v", ev.ID, err)
		}
	}
	return nil
}

func (p *WebhookProcessor) dispatch(ctx context.Context, tx Store, ev *provider.Event, pending *[]func(context.Context) error) error {
	switch ev.Type {
	case "payment_intent.succeeded":
		return p.handleIntentSucceeded(ctx, tx, ev, pending)
	case "payment_intent.payment_failed":
		return p.handleIntentFailed(ctx, tx, ev, pending)
	case "account.updated":
		return p.handleAccountUpdated(ctx, tx, ev, pending)
	case "transfer.created":
		return p.handleTransferCreated(ctx, tx, ev)
	default:
		// Forward compatibility: new event types must never fail the
		// handshake. Acknowledge and move on.
		log.Printf("[webhook] ignoring event type=%s id=%s", ev.Type, ev.ID)
		return nil
	}
}

// intentObject is the slice of a payment_intent payload the core acts on.
// The full payload stays on the audit row.
type intentObject struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func (p *WebhookProcessor) handleIntentSucceeded(ctx context.Context, tx Store, ev *provider.Event, pending *[]func(context.Context) error) error {
	var obj intentObject
	if err := json.Unmarshal(ev.Raw, &obj); err != nil {
		return fmt.Errorf("decode payment_intent: %w", err)
	}

	rec, err := tx.IntentByID(ctx, obj.ID)
	if err != nil {
		return err
	}
	if err := tx.UpdateIntentStatus(ctx, rec.ID, domain.IntentSucceeded, ""); err != nil {
		return err
	}

	// The phase claim stops a second succeeded event for the same phase
	// (a distinct event id, so the event ledger alone would let it through)
	// from notifying the booking side twice.
	claimed, err := tx.ClaimPhase(ctx, rec.BookingID, rec.Phase, ev.ID)
	if err != nil {
		return err
	}
	if claimed {
		bookingID, phase, amount := rec.BookingID, rec.Phase, rec.Amount
		*pending = append(*pending, func(ctx context.Context) error {
			return p.notifier.OnPhaseSucceeded(ctx, bookingID, phase, amount)
		})
	}
	return nil
}

func (p *WebhookProcessor) handleIntentFailed(ctx context.Context, tx Store, ev *provider.Event, pending *[]func(context.Context) error) error {
	var obj intentObject
	if err := json.Unmarshal(ev.Raw, &obj); err != nil {
		return fmt.Errorf("decode payment_intent: %w", err)
	}

	rec, err := tx.IntentByID(ctx, obj.ID)
	if err != nil {
		return err
	}
	reason := "payment failed"
	if obj.LastPaymentError != nil && obj.LastPaymentError.Message != "" {
		reason = obj.LastPaymentError.Message
	}
	if err := tx.UpdateIntentStatus(ctx, rec.ID, domain.IntentFailed, reason); err != nil {
		return err
	}

	bookingID, phase := rec.BookingID, rec.Phase
	*pending = append(*pending, func(ctx context.Context) error {
		return p.notifier.OnPhaseFailed(ctx, bookingID, phase, reason)
	})
	return nil
}

type accountObject struct {
	ID             string `json:"id"`
	ChargesEnabled bool   `json:"charges_enabled"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
	Requirements   struct {
		CurrentlyDue []string `json:"currently_due"`
	} `json:"requirements"`
}

func (p *WebhookProcessor) handleAccountUpdated(ctx context.Context, tx Store, ev *provider.Event, pending *[]func(context.Context) error) error {
	var obj accountObject
	if err := json.Unmarshal(ev.Raw, &obj); err != nil {
		return fmt.Errorf("decode account: %w", err)
	}

	acc, changed, err := p.connect.ApplyAccountUpdate(ctx, tx, AccountUpdate{
		AccountID:      obj.ID,
		ChargesEnabled: obj.ChargesEnabled,
		PayoutsEnabled: obj.PayoutsEnabled,
		CurrentlyDue:   obj.Requirements.CurrentlyDue,
	})
	if err != nil {
		return err
	}
	if changed {
		payeeID, status := acc.ID, acc.Status
		*pending = append(*pending, func(ctx context.Context) error {
			return p.notifier.OnPayeeAccountStatusChanged(ctx, payeeID, status)
		})
	}
	return nil
}

type transferObject struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
}

func (p *WebhookProcessor) handleTransferCreated(ctx context.Context, tx Store, ev *provider.Event) error {
	var obj transferObject
	if err := json.Unmarshal(ev.Raw, &obj); err != nil {
		return fmt.Errorf("decode transfer: %w", err)
	}
	// audit only; no booking state hangs off a payout
	return tx.RecordPayout(ctx, &domain.PayoutRecord{
		ID:             uuid.NewString(),
		TransferID:     obj.ID,
		PayeeAccountID: obj.Destination,
		Amount:         obj.Amount,
		Currency:       obj.Currency,
		CreatedAt:      time.Now().UTC(),
	})
}
