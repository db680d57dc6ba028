package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/you/charter-booking/internal/domain"
	"github.com/you/charter-booking/internal/service"
)

// Store is the gorm/Postgres implementation of service.Store.
type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&domain.PaymentIntentRecord{},
		&domain.PayeeAccount{},
		&domain.WebhookEvent{},
		&domain.ProcessedEvent{},
		&domain.ProcessedPhase{},
		&domain.PayoutRecord{},
	)
}

func (s *Store) Transaction(ctx context.Context, fn func(tx service.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// ---------- intents ----------

func (s *Store) CreateIntent(ctx context.Context, rec *domain.PaymentIntentRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) IntentByID(ctx context.Context, id string) (*domain.PaymentIntentRecord, error) {
	var rec domain.PaymentIntentRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Kind: "intent", ID: id}
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) IntentsByBooking(ctx context.Context, bookingID string) ([]domain.PaymentIntentRecord, error) {
	var out []domain.PaymentIntentRecord
	err := s.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) UpdateIntentStatus(ctx context.Context, id string, to domain.IntentStatus, reason string) error {
	var rec domain.PaymentIntentRecord
	// lock the row so concurrent webhook deliveries serialize here
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &domain.NotFoundError{Kind: "intent", ID: id}
		}
		return err
	}
	if rec.Status == to {
		return nil
	}
	if rec.Status.Terminal() {
		return &domain.StateConflictError{
			Entity: "intent", ID: id,
			From: string(rec.Status), To: string(to),
		}
	}
	updates := map[string]any{"status": to}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	return s.db.WithContext(ctx).Model(&rec).Updates(updates).Error
}

// ---------- payee accounts ----------

func (s *Store) CreateAccount(ctx context.Context, acc *domain.PayeeAccount) error {
	return s.db.WithContext(ctx).Create(acc).Error
}

func (s *Store) AccountByID(ctx context.Context, id string) (*domain.PayeeAccount, error) {
	var acc domain.PayeeAccount
	if err := s.db.WithContext(ctx).First(&acc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Kind: "account", ID: id}
		}
		return nil, err
	}
	return &acc, nil
}

func (s *Store) SaveAccount(ctx context.Context, acc *domain.PayeeAccount) error {
	return s.db.WithContext(ctx).Save(acc).Error
}

// ---------- webhook audit + idempotency ledger ----------

func (s *Store) RecordEvent(ctx context.Context, ev *domain.WebhookEvent) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(ev).Error
}

func (s *Store) MarkEventProcessed(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&domain.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"processed": true, "processed_at": at}).Error
}

// ClaimEvent is the conditional insert guarding duplicate webhook delivery.
// A concurrent claim for the same id blocks on the primary key until the
// first transaction commits, then reports already-claimed.
func (s *Store) ClaimEvent(ctx context.Context, id, eventType string) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.ProcessedEvent{
			ID:          id,
			EventType:   eventType,
			ProcessedAt: time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ClaimPhase(ctx context.Context, bookingID string, phase domain.Phase, eventID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.ProcessedPhase{
			BookingID:   bookingID,
			Phase:       phase,
			EventID:     eventID,
			ProcessedAt: time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ---------- payouts ----------

func (s *Store) RecordPayout(ctx context.Context, p *domain.PayoutRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(p).Error
}

func (s *Store) PayoutsByAccount(ctx context.Context, accountID string) ([]domain.PayoutRecord, error) {
	var out []domain.PayoutRecord
	err := s.db.WithContext(ctx).
		Where("payee_account_id = ?", accountID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
