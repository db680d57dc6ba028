// Package stripecli is the production provider.Client backed by the Stripe
// API: destination charges with application fees, Connect accounts and
// onboarding links, customers, and ad hoc payment links.
package stripecli

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/you/charter-booking/internal/domain"
	"github.com/you/charter-booking/internal/provider"
)

type Client struct {
	sc            *stripe.Client
	signingSecret string
	tolerance     time.Duration
}

func New(secretKey, signingSecret string, tolerance time.Duration) *Client {
	return &Client{
		sc:            stripe.NewClient(secretKey),
		signingSecret: signingSecret,
		tolerance:     tolerance,
	}
}

func (c *Client) CreateIntent(ctx context.Context, p provider.CreateIntentParams) (*provider.Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:               stripe.Int64(p.Amount),
		Currency:             stripe.String(p.Currency),
		ApplicationFeeAmount: stripe.Int64(p.FeeAmount),
		TransferData: &stripe.PaymentIntentCreateTransferDataParams{
			Destination: stripe.String(p.Destination),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, &domain.ProviderError{Op: "create_intent", Err: err}
	}
	return intentFromStripe(pi), nil
}

func (c *Client) RetrieveIntent(ctx context.Context, id string) (*provider.Intent, error) {
	pi, err := c.sc.V1PaymentIntents.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, &domain.ProviderError{Op: "retrieve_intent", Err: err}
	}
	return intentFromStripe(pi), nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *provider.Intent {
	out := &provider.Intent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	if pi.LastPaymentError != nil {
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out
}

func (c *Client) CreateAccount(ctx context.Context, p provider.CreateAccountParams) (*provider.Account, error) {
	params := &stripe.AccountCreateParams{
		Type:         stripe.String("express"),
		BusinessType: stripe.String("individual"),
		Email:        stripe.String(p.Email),
		Capabilities: &stripe.AccountCreateCapabilitiesParams{
			CardPayments: &stripe.AccountCreateCapabilitiesCardPaymentsParams{
				Requested: stripe.Bool(true),
			},
			Transfers: &stripe.AccountCreateCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
		Params: stripe.Params{
			Metadata: map[string]string{"owner_id": p.OwnerID},
		},
	}
	if p.Country != "" {
		params.Country = stripe.String(p.Country)
	}

	acct, err := c.sc.V1Accounts.Create(ctx, params)
	if err != nil {
		return nil, &domain.ProviderError{Op: "create_account", Err: err}
	}
	return accountFromStripe(acct), nil
}

func accountFromStripe(acct *stripe.Account) *provider.Account {
	out := &provider.Account{
		ID:             acct.ID,
		ChargesEnabled: acct.ChargesEnabled,
		PayoutsEnabled: acct.PayoutsEnabled,
	}
	if acct.Requirements != nil {
		out.RequirementsDue = acct.Requirements.CurrentlyDue
	}
	return out
}

func (c *Client) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*provider.AccountLink, error) {
	params := &stripe.AccountLinkCreateParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
		Collect:    stripe.String("eventually_due"),
	}
	link, err := c.sc.V1AccountLinks.Create(ctx, params)
	if err != nil {
		return nil, &domain.ProviderError{Op: "create_account_link", Err: err}
	}
	return &provider.AccountLink{
		URL:       link.URL,
		ExpiresAt: time.Unix(link.ExpiresAt, 0),
	}, nil
}

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*provider.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)
	var found *provider.Customer
	var listErr error
	c.sc.V1Customers.List(ctx, params)(func(cust *stripe.Customer, err error) bool {
		if err != nil {
			listErr = &domain.ProviderError{Op: "list_customers", Err: err}
			return false
		}
		found = &provider.Customer{ID: cust.ID, Email: cust.Email}
		return false
	})
	if listErr != nil {
		return nil, listErr
	}
	return found, nil
}

func (c *Client) CreateCustomer(ctx context.Context, p provider.CreateCustomerParams) (*provider.Customer, error) {
	params := &stripe.CustomerCreateParams{
		Email: stripe.String(p.Email),
	}
	if p.Name != "" {
		params.Name = stripe.String(p.Name)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	cust, err := c.sc.V1Customers.Create(ctx, params)
	if err != nil {
		return nil, &domain.ProviderError{Op: "create_customer", Err: err}
	}
	return &provider.Customer{ID: cust.ID, Email: cust.Email}, nil
}

// CreatePaymentLink creates a one-off price for the balance amount, then a
// shareable payment link with the fee split and a redirect back to the app.
func (c *Client) CreatePaymentLink(ctx context.Context, p provider.CreatePaymentLinkParams) (*provider.PaymentLink, error) {
	price, err := c.sc.V1Prices.Create(ctx, &stripe.PriceCreateParams{
		Currency:   stripe.String(p.Currency),
		UnitAmount: stripe.Int64(p.Amount),
		ProductData: &stripe.PriceCreateProductDataParams{
			Name: stripe.String(p.ProductName),
		},
	})
	if err != nil {
		return nil, &domain.ProviderError{Op: "create_price", Err: err}
	}

	params := &stripe.PaymentLinkCreateParams{
		LineItems: []*stripe.PaymentLinkCreateLineItemParams{
			{Price: stripe.String(price.ID), Quantity: stripe.Int64(1)},
		},
		ApplicationFeeAmount: stripe.Int64(p.FeeAmount),
		TransferData: &stripe.PaymentLinkCreateTransferDataParams{
			Destination: stripe.String(p.Destination),
		},
		AfterCompletion: &stripe.PaymentLinkCreateAfterCompletionParams{
			Type: stripe.String("redirect"),
			Redirect: &stripe.PaymentLinkCreateAfterCompletionRedirectParams{
				URL: stripe.String(p.RedirectURL),
			},
		},
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	link, err := c.sc.V1PaymentLinks.Create(ctx, params)
	if err != nil {
		return nil, &domain.ProviderError{Op: "create_payment_link", Err: err}
	}
	return &provider.PaymentLink{ID: link.ID, URL: link.URL}, nil
}

func (c *Client) VerifyEvent(payload []byte, signature string) (*provider.Event, error) {
	ev, err := webhook.ConstructEventWithTolerance(payload, signature, c.signingSecret, c.tolerance)
	if err != nil {
		return nil, &domain.SignatureError{Err: err}
	}
	return &provider.Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: time.Unix(ev.Created, 0),
		Account: ev.Account,
		Raw:     ev.Data.Raw,
		Payload: payload,
	}, nil
}
