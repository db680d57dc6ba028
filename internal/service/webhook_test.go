package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/you/charter-booking/internal/domain"
	"github.com/you/charter-booking/internal/provider/fakecli"
)

const testSigningSecret = "whsec_test"

type webhookFixture struct {
	prov    *fakecli.Client
	store   *memStore
	rec     *recorder
	proc    *WebhookProcessor
	intents *IntentService
	connect *ConnectService
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	prov := fakecli.New(testSigningSecret)
	store := newMemStore()
	rec := &recorder{}
	connect := NewConnectService(store, prov, "https://app.example.com")
	return &webhookFixture{
		prov:    prov,
		store:   store,
		rec:     rec,
		proc:    NewWebhookProcessor(store, prov, connect, rec),
		intents: NewIntentService(store, prov, "usd", decimal.NewFromFloat(0.10)),
		connect: connect,
	}
}

// signedEvent builds a provider event envelope and its valid signature.
func signedEvent(t *testing.T, c *fakecli.Client, eventID, eventType string, object any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal object: %v", err)
	}
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    eventType,
		"created": int64(1700000000),
		"data":    map[string]any{"object": json.RawMessage(raw)},
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return payload, c.Sign(payload)
}

func (f *webhookFixture) createDeposit(t *testing.T, bookingID string) *domain.PaymentIntentRecord {
	t.Helper()
	out, err := f.intents.CreateDepositIntent(context.Background(), CreateDepositIn{
		BookingID:      bookingID,
		GrossAmount:    decimal.RequireFromString("200.00"),
		PayeeAccountID: "acct_payee",
	})
	if err != nil {
		t.Fatalf("create deposit intent: %v", err)
	}
	return out.Record
}

func TestProcess_DepositSucceeded(t *testing.T) {
	f := newWebhookFixture(t)
	rec := f.createDeposit(t, "bk_1")

	payload, sig := signedEvent(t, f.prov, "evt_1", "payment_intent.succeeded",
		map[string]any{"id": rec.ID, "status": "succeeded"})
	if err := f.proc.Process(context.Background(), payload, sig); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := f.store.IntentByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("intent lookup: %v", err)
	}
	if got.Status != domain.IntentSucceeded {
		t.Errorf("status = %s, want succeeded", got.Status)
	}
	if len(f.rec.succeeded) != 1 {
		t.Fatalf("succeeded notifications = %d, want 1", len(f.rec.succeeded))
	}
	call := f.rec.succeeded[0]
	if call.BookingID != "bk_1" || call.Phase != domain.PhaseDeposit || call.Amount != 20000 {
		t.Errorf("notification = %+v, want bk_1/deposit/20000", call)
	}

	ev := f.store.events["evt_1"]
	if !ev.Processed || ev.ProcessedAt == nil {
		t.Errorf("event not marked processed: %+v", ev)
	}
}

func TestProcess_ReplayDelivery(t *testing.T) {
	f := newWebhookFixture(t)
	rec := f.createDeposit(t, "bk_replay")

	payload, sig := signedEvent(t, f.prov, "evt_dup", "payment_intent.succeeded",
		map[string]any{"id": rec.ID, "status": "succeeded"})

	for i := 0; i < 3; i++ {
		if err := f.proc.Process(context.Background(), payload, sig); err != nil {
			t.Fatalf("process delivery %d: %v", i+1, err)
		}
	}

	if len(f.rec.succeeded) != 1 {
		t.Errorf("succeeded notifications = %d, want exactly 1 across replays", len(f.rec.succeeded))
	}
}

func TestProcess_SecondSucceededEventForSamePhase(t *testing.T) {
	f := newWebhookFixture(t)
	rec := f.createDeposit(t, "bk_twice")

	first, sig1 := signedEvent(t, f.prov, "evt_a", "payment_intent.succeeded",
		map[string]any{"id": rec.ID, "status": "succeeded"})
	second, sig2 := signedEvent(t, f.prov, "evt_b", "payment_intent.succeeded",
		map[string]any{"id": rec.ID, "status": "succeeded"})

	if err := f.proc.Process(context.Background(), first, sig1); err != nil {
		t.Fatalf("process first: %v", err)
	}
	// distinct event id slips past the event ledger; the phase claim holds
	if err := f.proc.Process(context.Background(), second, sig2); err != nil {
		t.Fatalf("process second: %v", err)
	}

	if len(f.rec.succeeded) != 1 {
		t.Errorf("succeeded notifications = %d, want 1", len(f.rec.succeeded))
	}
}

func TestProcess_InvalidSignature(t *testing.T) {
	f := newWebhookFixture(t)
	rec := f.createDeposit(t, "bk_sig")

	payload, _ := signedEvent(t, f.prov, "evt_bad", "payment_intent.succeeded",
		map[string]any{"id": rec.ID, "status": "succeeded"})

	err := f.proc.Process(context.Background(), payload, "deadbeef")
	var se *domain.SignatureError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want SignatureError", err)
	}

	if _, ok := f.store.events["evt_bad"]; ok {
		t.Error("unverified event must not be recorded")
	}
	got, _ := f.store.IntentByID(context.Background(), rec.ID)
	if got.Status != domain.IntentRequiresPaymentMethod {
		t.Errorf("status = %s, want untouched requires_payment_method", got.Status)
	}
	if len(f.rec.succeeded) != 0 {
		t.Errorf("notifications sent on rejected delivery: %d", len(f.rec.succeeded))
	}
}

func TestProcess_PaymentFailed(t *testing.T) {
	f := newWebhookFixture(t)
	rec := f.createDeposit(t, "bk_fail")

	payload, sig := signedEvent(t, f.prov, "evt_fail", "payment_intent.payment_failed",
		map[string]any{
			"id":     rec.ID,
			"status": "requires_payment_method",
			"last_payment_error": map[string]any{
				"message": "Your card was declined.",
			},
		})
	if err := f.proc.Process(context.Background(), payload, sig); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := f.store.IntentByID(context.Background(), rec.ID)
	if got.Status != domain.IntentFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.FailureReason != "Your card was declined." {
		t.Errorf("failure reason = %q", got.FailureReason)
	}
	if len(f.rec.failed) != 1 || f.rec.failed[0].Reason != "Your card was declined." {
		t.Errorf("failed notifications = %+v, want one with the decline reason", f.rec.failed)
	}
}

func TestProcess_AccountUpdated(t *testing.T) {
	f := newWebhookFixture(t)

	out, err := f.connect.CreateAccount(context.Background(), OwnerInfo{
		OwnerID: "owner_1",
		Email:   "owner@example.com",
		Country: "US",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	accID := out.Account.ID

	t.Run("activation", func(t *testing.T) {
		payload, sig := signedEvent(t, f.prov, "evt_acct_1", "account.updated",
			map[string]any{
				"id":              accID,
				"charges_enabled": true,
				"payouts_enabled": true,
				"requirements":    map[string]any{"currently_due": []string{}},
			})
		if err := f.proc.Process(context.Background(), payload, sig); err != nil {
			t.Fatalf("process: %v", err)
		}

		acc, _ := f.store.AccountByID(context.Background(), accID)
		if acc.Status != domain.AccountActive {
			t.Errorf("status = %s, want active", acc.Status)
		}
		if len(f.rec.accounts) != 1 || f.rec.accounts[0].Status != domain.AccountActive {
			t.Errorf("account notifications = %+v", f.rec.accounts)
		}
	})

	t.Run("new requirements restrict", func(t *testing.T) {
		payload, sig := signedEvent(t, f.prov, "evt_acct_2", "account.updated",
			map[string]any{
				"id":              accID,
				"charges_enabled": true,
				"payouts_enabled": false,
				"requirements":    map[string]any{"currently_due": []string{"individual.id_number"}},
			})
		if err := f.proc.Process(context.Background(), payload, sig); err != nil {
			t.Fatalf("process: %v", err)
		}

		acc, _ := f.store.AccountByID(context.Background(), accID)
		if acc.Status != domain.AccountRestricted {
			t.Errorf("status = %s, want restricted", acc.Status)
		}
	})

	t.Run("unchanged status is silent", func(t *testing.T) {
		before := len(f.rec.accounts)
		payload, sig := signedEvent(t, f.prov, "evt_acct_3", "account.updated",
			map[string]any{
				"id":              accID,
				"charges_enabled": true,
				"payouts_enabled": false,
				"requirements":    map[string]any{"currently_due": []string{"individual.id_number"}},
			})
		if err := f.proc.Process(context.Background(), payload, sig); err != nil {
			t.Fatalf("process: %v", err)
		}
		if len(f.rec.accounts) != before {
			t.Errorf("notification sent for a no-op status update")
		}
	})
}

func TestProcess_TransferCreated(t *testing.T) {
	f := newWebhookFixture(t)

	obj := map[string]any{
		"id":          "tr_1",
		"amount":      18000,
		"currency":    "usd",
		"destination": "acct_payee",
	}
	payload, sig := signedEvent(t, f.prov, "evt_tr_1", "transfer.created", obj)
	if err := f.proc.Process(context.Background(), payload, sig); err != nil {
		t.Fatalf("process: %v", err)
	}
	// same transfer surfacing under a new event id stays a single payout row
	payload2, sig2 := signedEvent(t, f.prov, "evt_tr_2", "transfer.created", obj)
	if err := f.proc.Process(context.Background(), payload2, sig2); err != nil {
		t.Fatalf("process redelivery: %v", err)
	}

	payouts, err := f.store.PayoutsByAccount(context.Background(), "acct_payee")
	if err != nil {
		t.Fatalf("payout lookup: %v", err)
	}
	if len(payouts) != 1 {
		t.Fatalf("payouts = %d, want 1", len(payouts))
	}
	if payouts[0].TransferID != "tr_1" || payouts[0].Amount != 18000 {
		t.Errorf("payout = %+v", payouts[0])
	}
}

func TestProcess_UnknownEventTypeAcked(t *testing.T) {
	f := newWebhookFixture(t)

	payload, sig := signedEvent(t, f.prov, "evt_noop", "charge.refunded",
		map[string]any{"id": "ch_1"})
	if err := f.proc.Process(context.Background(), payload, sig); err != nil {
		t.Fatalf("unknown event type must be acknowledged, got %v", err)
	}

	ev := f.store.events["evt_noop"]
	if !ev.Processed {
		t.Error("unknown event not marked processed")
	}
	if len(f.rec.succeeded)+len(f.rec.failed)+len(f.rec.accounts) != 0 {
		t.Error("unknown event produced notifications")
	}
}

func TestProcess_DispatchErrorLeavesEventUnclaimed(t *testing.T) {
	f := newWebhookFixture(t)

	payload, sig := signedEvent(t, f.prov, "evt_retry", "payment_intent.succeeded",
		map[string]any{"id": "pi_not_yet", "status": "succeeded"})

	err := f.proc.Process(context.Background(), payload, sig)
	if !domain.IsNotFound(err) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	// the audit copy survives the rollback
	if _, ok := f.store.events["evt_retry"]; !ok {
		t.Fatal("audit row dropped with the failed transaction")
	}

	// once the record exists the provider's redelivery goes through
	f.store.intents["pi_not_yet"] = domain.PaymentIntentRecord{
		ID:        "pi_not_yet",
		BookingID: "bk_retry",
		Phase:     domain.PhaseDeposit,
		Amount:    20000,
		Status:    domain.IntentRequiresPaymentMethod,
	}
	if err := f.proc.Process(context.Background(), payload, sig); err != nil {
		t.Fatalf("redelivery after fix: %v", err)
	}
	if len(f.rec.succeeded) != 1 {
		t.Errorf("succeeded notifications = %d, want 1", len(f.rec.succeeded))
	}
}
