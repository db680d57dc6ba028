package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/you/charter-booking/internal/domain"
	"github.com/you/charter-booking/internal/provider"
)

// BalanceService schedules the deferred second payment of a booking: it
// resolves the customer, creates the balance intent, and issues a shareable
// payment link. Completion is customer-driven and arrives via webhook; there
// is no server-initiated charge and no due-date retry loop.
type BalanceService struct {
	store           Store
	prov            provider.Client
	currency        string
	feeRate         decimal.Decimal
	frontendBaseURL string
}

func NewBalanceService(store Store, prov provider.Client, currency string, feeRate decimal.Decimal, frontendBaseURL string) *BalanceService {
	return &BalanceService{
		store:           store,
		prov:            prov,
		currency:        currency,
		feeRate:         feeRate,
		frontendBaseURL: frontendBaseURL,
	}
}

type ScheduleBalanceIn struct {
	BookingID      string
	CustomerEmail  string
	BalanceAmount  decimal.Decimal
	DueDate        time.Time
	PayeeAccountID string
	// FeeAmount, when positive, overrides the configured platform rate.
	FeeAmount int64
	Metadata  map[string]string
}

type ScheduleBalanceOut struct {
	PaymentURL string
	CustomerID string
	Record     *domain.PaymentIntentRecord
}

func (s *BalanceService) ScheduleBalance(ctx context.Context, in ScheduleBalanceIn) (*ScheduleBalanceOut, error) {
	if in.BookingID == "" {
		return nil, domain.NewValidation("booking_id", "required")
	}
	if in.CustomerEmail == "" {
		return nil, domain.NewValidation("customer_email", "required")
	}
	if in.DueDate.IsZero() {
		return nil, domain.NewValidation("due_date", "required")
	}
	if in.PayeeAccountID == "" {
		return nil, domain.NewValidation("payee_account_id", "required")
	}

	split, err := splitAmount(in.BalanceAmount, in.FeeAmount, s.feeRate)
	if err != nil {
		return nil, err
	}

	// Lookup before create: a retry after a partial failure must resolve the
	// same customer, never mint a duplicate.
	cust, err := s.prov.FindCustomerByEmail(ctx, in.CustomerEmail)
	if err != nil {
		return nil, err
	}
	if cust == nil {
		cust, err = s.prov.CreateCustomer(ctx, provider.CreateCustomerParams{
			Email:    in.CustomerEmail,
			Metadata: map[string]string{"booking_id": in.BookingID},
		})
		if err != nil {
			return nil, err
		}
	}

	md := map[string]string{
		"booking_id":     in.BookingID,
		"phase":          string(domain.PhaseBalance),
		"customer_id":    cust.ID,
		"customer_email": in.CustomerEmail,
		"due_date":       in.DueDate.UTC().Format(time.RFC3339),
	}
	for k, v := range in.Metadata {
		md[k] = v
	}

	pi, err := s.prov.CreateIntent(ctx, provider.CreateIntentParams{
		Amount:      split.Gross,
		Currency:    s.currency,
		FeeAmount:   split.Fee,
		Destination: in.PayeeAccountID,
		CustomerID:  cust.ID,
		Metadata:    md,
	})
	if err != nil {
		return nil, err
	}

	link, err := s.prov.CreatePaymentLink(ctx, provider.CreatePaymentLinkParams{
		Amount:      split.Gross,
		Currency:    s.currency,
		ProductName: fmt.Sprintf("Charter balance payment (booking %s)", in.BookingID),
		FeeAmount:   split.Fee,
		Destination: in.PayeeAccountID,
		RedirectURL: s.redirectURL(in.BookingID),
		Metadata:    md,
	})
	if err != nil {
		return nil, err
	}

	rec := &domain.PaymentIntentRecord{
		ID:             pi.ID,
		BookingID:      in.BookingID,
		Phase:          domain.PhaseBalance,
		Amount:         split.Gross,
		FeeAmount:      split.Fee,
		PayeeAccountID: in.PayeeAccountID,
		CustomerID:     cust.ID,
		Status:         domain.IntentRequiresPaymentMethod,
		Metadata:       domain.MetadataFrom(md),
	}
	if err := s.store.CreateIntent(ctx, rec); err != nil {
		return nil, err
	}

	return &ScheduleBalanceOut{PaymentURL: link.URL, CustomerID: cust.ID, Record: rec}, nil
}

// redirectURL is stable per booking so a re-issued link lands on the same
// completion page.
func (s *BalanceService) redirectURL(bookingID string) string {
	return fmt.Sprintf("%s/payments/return?booking_id=%s", s.frontendBaseURL, url.QueryEscape(bookingID))
}
