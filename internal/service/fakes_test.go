package service

import (
	"context"
	"sync"
	"time"

	"github.com/you/charter-booking/internal/domain"
)

// memStore is the in-memory Store used by service tests. Maps hold values,
// not pointers, so a snapshot copy is a real rollback point.
type memStore struct {
	mu       sync.Mutex
	intents  map[string]domain.PaymentIntentRecord
	accounts map[string]domain.PayeeAccount
	events   map[string]domain.WebhookEvent
	claims   map[string]domain.ProcessedEvent
	phases   map[string]domain.ProcessedPhase
	payouts  map[string]domain.PayoutRecord // keyed by transfer id
}

func newMemStore() *memStore {
	return &memStore{
		intents:  map[string]domain.PaymentIntentRecord{},
		accounts: map[string]domain.PayeeAccount{},
		events:   map[string]domain.WebhookEvent{},
		claims:   map[string]domain.ProcessedEvent{},
		phases:   map[string]domain.ProcessedPhase{},
		payouts:  map[string]domain.PayoutRecord{},
	}
}

func phaseKey(bookingID string, phase domain.Phase) string {
	return bookingID + "|" + string(phase)
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	snap := struct {
		intents  map[string]domain.PaymentIntentRecord
		accounts map[string]domain.PayeeAccount
		events   map[string]domain.WebhookEvent
		claims   map[string]domain.ProcessedEvent
		phases   map[string]domain.ProcessedPhase
		payouts  map[string]domain.PayoutRecord
	}{
		intents:  copyMap(s.intents),
		accounts: copyMap(s.accounts),
		events:   copyMap(s.events),
		claims:   copyMap(s.claims),
		phases:   copyMap(s.phases),
		payouts:  copyMap(s.payouts),
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.intents = snap.intents
		s.accounts = snap.accounts
		s.events = snap.events
		s.claims = snap.claims
		s.phases = snap.phases
		s.payouts = snap.payouts
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) CreateIntent(_ context.Context, rec *domain.PaymentIntentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.intents[rec.ID] = *rec
	return nil
}

func (s *memStore) IntentByID(_ context.Context, id string) (*domain.PaymentIntentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.intents[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "payment intent", ID: id}
	}
	cp := rec
	return &cp, nil
}

func (s *memStore) IntentsByBooking(_ context.Context, bookingID string) ([]domain.PaymentIntentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PaymentIntentRecord
	for _, rec := range s.intents {
		if rec.BookingID == bookingID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) UpdateIntentStatus(_ context.Context, id string, to domain.IntentStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.intents[id]
	if !ok {
		return &domain.NotFoundError{Kind: "payment intent", ID: id}
	}
	if rec.Status == to {
		return nil
	}
	if rec.Status.Terminal() {
		return &domain.StateConflictError{
			Entity: "payment intent",
			ID:     id,
			From:   string(rec.Status),
			To:     string(to),
		}
	}
	rec.Status = to
	rec.FailureReason = reason
	rec.UpdatedAt = time.Now().UTC()
	s.intents[id] = rec
	return nil
}

func (s *memStore) CreateAccount(_ context.Context, acc *domain.PayeeAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	acc.CreatedAt, acc.UpdatedAt = now, now
	s.accounts[acc.ID] = *acc
	return nil
}

func (s *memStore) AccountByID(_ context.Context, id string) (*domain.PayeeAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "payee account", ID: id}
	}
	cp := acc
	return &cp, nil
}

func (s *memStore) SaveAccount(_ context.Context, acc *domain.PayeeAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc.UpdatedAt = time.Now().UTC()
	s.accounts[acc.ID] = *acc
	return nil
}

func (s *memStore) RecordEvent(_ context.Context, ev *domain.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; ok {
		return nil
	}
	s.events[ev.ID] = *ev
	return nil
}

func (s *memStore) MarkEventProcessed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return &domain.NotFoundError{Kind: "webhook event", ID: id}
	}
	ev.Processed = true
	ev.ProcessedAt = &at
	s.events[id] = ev
	return nil
}

func (s *memStore) ClaimEvent(_ context.Context, id, eventType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[id]; ok {
		return false, nil
	}
	s.claims[id] = domain.ProcessedEvent{ID: id, EventType: eventType, ProcessedAt: time.Now().UTC()}
	return true, nil
}

func (s *memStore) ClaimPhase(_ context.Context, bookingID string, phase domain.Phase, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := phaseKey(bookingID, phase)
	if _, ok := s.phases[key]; ok {
		return false, nil
	}
	s.phases[key] = domain.ProcessedPhase{
		BookingID:   bookingID,
		Phase:       phase,
		EventID:     eventID,
		ProcessedAt: time.Now().UTC(),
	}
	return true, nil
}

func (s *memStore) RecordPayout(_ context.Context, p *domain.PayoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payouts[p.TransferID]; ok {
		return nil
	}
	s.payouts[p.TransferID] = *p
	return nil
}

func (s *memStore) PayoutsByAccount(_ context.Context, accountID string) ([]domain.PayoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PayoutRecord
	for _, p := range s.payouts {
		if p.PayeeAccountID == accountID {
			out = append(out, p)
		}
	}
	return out, nil
}

// recorder captures notifier calls for assertions.
type recorder struct {
	mu        sync.Mutex
	succeeded []phaseCall
	failed    []failCall
	accounts  []accountCall
}

type phaseCall struct {
	BookingID string
	Phase     domain.Phase
	Amount    int64
}

type failCall struct {
	BookingID string
	Phase     domain.Phase
	Reason    string
}

type accountCall struct {
	PayeeID string
	Status  domain.AccountStatus
}

func (r *recorder) OnPhaseSucceeded(_ context.Context, bookingID string, phase domain.Phase, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, phaseCall{bookingID, phase, amount})
	return nil
}

func (r *recorder) OnPhaseFailed(_ context.Context, bookingID string, phase domain.Phase, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, failCall{bookingID, phase, reason})
	return nil
}

func (r *recorder) OnPayeeAccountStatusChanged(_ context.Context, payeeID string, status domain.AccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, accountCall{payeeID, status})
	return nil
}
