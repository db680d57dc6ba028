package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/you/charter-booking/internal/domain"
	"github.com/you/charter-booking/internal/money"
	"github.com/you/charter-booking/internal/provider"
)

// IntentService creates and reports on phase payment intents. It never
// confirms an intent: card confirmation is client-side against the provider,
// and completion is only ever observed through webhooks.
type IntentService struct {
	store    Store
	prov     provider.Client
	currency string
	feeRate  decimal.Decimal
}

func NewIntentService(store Store, prov provider.Client, currency string, feeRate decimal.Decimal) *IntentService {
	return &IntentService{store: store, prov: prov, currency: currency, feeRate: feeRate}
}

type CreateDepositIn struct {
	BookingID      string
	GrossAmount    decimal.Decimal
	PayeeAccountID string
	// FeeAmount, when positive, is a fixed application fee in minor units
	// overriding the configured platform rate.
	FeeAmount     int64
	CustomerEmail string
	Metadata      map[string]string
}

type CreateDepositOut struct {
	ClientSecret string
	Record       *domain.PaymentIntentRecord
}

func (s *IntentService) CreateDepositIntent(ctx context.Context, in CreateDepositIn) (*CreateDepositOut, error) {
	if in.BookingID == "" {
		return nil, domain.NewValidation("booking_id", "required")
	}
	if in.PayeeAccountID == "" {
		return nil, domain.NewValidation("payee_account_id", "required")
	}

	split, err := splitAmount(in.GrossAmount, in.FeeAmount, s.feeRate)
	if err != nil {
		return nil, err
	}

	md := map[string]string{
		"booking_id": in.BookingID,
		"phase":      string(domain.PhaseDeposit),
	}
	if in.CustomerEmail != "" {
		md["customer_email"] = in.CustomerEmail
	}
	for k, v := range in.Metadata {
		md[k] = v
	}

	pi, err := s.prov.CreateIntent(ctx, provider.CreateIntentParams{
		Amount:      split.Gross,
		Currency:    s.currency,
		FeeAmount:   split.Fee,
		Destination: in.PayeeAccountID,
		Metadata:    md,
	})
	if err != nil {
		return nil, err
	}

	rec := &domain.PaymentIntentRecord{
		ID:             pi.ID,
		BookingID:      in.BookingID,
		Phase:          domain.PhaseDeposit,
		Amount:         split.Gross,
		FeeAmount:      split.Fee,
		PayeeAccountID: in.PayeeAccountID,
		Status:         domain.IntentRequiresPaymentMethod,
		Metadata:       domain.MetadataFrom(md),
	}
	if err := s.store.CreateIntent(ctx, rec); err != nil {
		return nil, err
	}
	return &CreateDepositOut{ClientSecret: pi.ClientSecret, Record: rec}, nil
}

// GetIntentStatus reports the normalized status of an intent straight from
// the provider. Side-effect free: webhook processing owns record mutation.
func (s *IntentService) GetIntentStatus(ctx context.Context, intentID string) (domain.PaymentStatus, error) {
	if intentID == "" {
		return "", domain.NewValidation("intent_id", "required")
	}
	pi, err := s.prov.RetrieveIntent(ctx, intentID)
	if err != nil {
		return "", err
	}
	return domain.NormalizeProviderStatus(pi.Status), nil
}

// IntentsByBooking lists both phase records for a booking, oldest first.
func (s *IntentService) IntentsByBooking(ctx context.Context, bookingID string) ([]domain.PaymentIntentRecord, error) {
	if bookingID == "" {
		return nil, domain.NewValidation("booking_id", "required")
	}
	return s.store.IntentsByBooking(ctx, bookingID)
}

// splitAmount computes the fee split, mapping money errors onto the caller
// input taxonomy.
func splitAmount(gross decimal.Decimal, fixedFee int64, rate decimal.Decimal) (money.Split, error) {
	var (
		split money.Split
		err   error
	)
	if fixedFee > 0 {
		split, err = money.SplitFee(gross, fixedFee)
	} else {
		split, err = money.SplitRate(gross, rate)
	}
	if err != nil {
		switch {
		case errors.Is(err, money.ErrNonPositiveAmount):
			return money.Split{}, domain.NewValidation("amount", err.Error())
		case errors.Is(err, money.ErrFeeExceedsGross), errors.Is(err, money.ErrNegativeFee):
			return money.Split{}, domain.NewValidation("application_fee_amount", err.Error())
		default:
			return money.Split{}, domain.NewValidation("fee_rate", err.Error())
		}
	}
	return split, nil
}
