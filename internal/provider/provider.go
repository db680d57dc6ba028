// Package provider defines the payment-provider boundary. The core talks to
// exactly one Client implementation, selected by configuration: the real
// Stripe client (stripecli) or the deterministic test double (fakecli).
package provider

import (
	"context"
	"encoding/json"
	"time"
)

type Client interface {
	CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)

	CreateAccount(ctx context.Context, p CreateAccountParams) (*Account, error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*AccountLink, error)

	// FindCustomerByEmail returns (nil, nil) when no customer exists.
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateCustomer(ctx context.Context, p CreateCustomerParams) (*Customer, error)

	CreatePaymentLink(ctx context.Context, p CreatePaymentLinkParams) (*PaymentLink, error)

	// VerifyEvent checks the webhook signature (within the configured clock
	// tolerance) and decodes the event envelope. Returns a SignatureError
	// when the payload cannot be authenticated.
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

type CreateIntentParams struct {
	Amount      int64 // minor units
	Currency    string
	FeeAmount   int64  // platform application fee, minor units
	Destination string // payee sub-account receiving the net
	CustomerID  string // optional, set for balance-phase intents
	Metadata    map[string]string
}

type Intent struct {
	ID             string
	Status         string // provider-native status string
	ClientSecret   string
	Amount         int64
	Currency       string
	CustomerID     string
	Metadata       map[string]string
	FailureMessage string
}

type CreateAccountParams struct {
	OwnerID string
	Email   string
	Country string
}

type Account struct {
	ID              string
	ChargesEnabled  bool
	PayoutsEnabled  bool
	RequirementsDue []string
}

type AccountLink struct {
	URL       string
	ExpiresAt time.Time
}

type CreateCustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

type Customer struct {
	ID    string
	Email string
}

type CreatePaymentLinkParams struct {
	Amount      int64
	Currency    string
	ProductName string
	FeeAmount   int64
	Destination string
	RedirectURL string
	Metadata    map[string]string
}

type PaymentLink struct {
	ID  string
	URL string
}

// Event is a verified webhook event. Raw holds the event's data object and
// Payload the full envelope, both kept verbatim so fields this code does not
// model survive into the audit trail.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Account string
	Raw     json.RawMessage
	Payload json.RawMessage
}
