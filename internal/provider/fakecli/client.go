// Package fakecli is the deterministic provider.Client used in tests and
// local development. IDs are sequential, nothing leaves the process, and
// webhook signatures are plain HMAC-SHA256 over the payload.
package fakecli

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/you/charter-booking/internal/domain"
	"github.com/you/charter-booking/internal/provider"
)

type Client struct {
	mu            sync.Mutex
	signingSecret string
	seq           int

	intents   map[string]*provider.Intent
	accounts  map[string]*provider.Account
	customers map[string]*provider.Customer // keyed by email
}

func New(signingSecret string) *Client {
	return &Client{
		signingSecret: signingSecret,
		intents:       map[string]*provider.Intent{},
		accounts:      map[string]*provider.Account{},
		customers:     map[string]*provider.Customer{},
	}
}

func (c *Client) nextID(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s_fake_%06d", prefix, c.seq)
}

func (c *Client) CreateIntent(_ context.Context, p provider.CreateIntentParams) (*provider.Intent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID("pi")
	in := &provider.Intent{
		ID:           id,
		Status:       "requires_payment_method",
		ClientSecret: id + "_secret",
		Amount:       p.Amount,
		Currency:     p.Currency,
		CustomerID:   p.CustomerID,
		Metadata:     p.Metadata,
	}
	c.intents[id] = in
	cp := *in
	return &cp, nil
}

func (c *Client) RetrieveIntent(_ context.Context, id string) (*provider.Intent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	in, ok := c.intents[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "intent", ID: id}
	}
	cp := *in
	return &cp, nil
}

// SetIntentStatus mutates a stored intent, standing in for the provider-side
// lifecycle the real API drives.
func (c *Client) SetIntentStatus(id, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if in, ok := c.intents[id]; ok {
		in.Status = status
	}
}

func (c *Client) CreateAccount(_ context.Context, p provider.CreateAccountParams) (*provider.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	acct := &provider.Account{
		ID:              c.nextID("acct"),
		ChargesEnabled:  false,
		PayoutsEnabled:  false,
		RequirementsDue: []string{"individual.verification.document"},
	}
	c.accounts[acct.ID] = acct
	cp := *acct
	return &cp, nil
}

func (c *Client) CreateAccountLink(_ context.Context, accountID, refreshURL, returnURL string) (*provider.AccountLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.accounts[accountID]; !ok {
		return nil, &domain.NotFoundError{Kind: "account", ID: accountID}
	}
	return &provider.AccountLink{
		URL:       fmt.Sprintf("https://connect.fake.local/onboarding/%s/%s", accountID, c.nextID("al")),
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}, nil
}

func (c *Client) FindCustomerByEmail(_ context.Context, email string) (*provider.Customer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cust, ok := c.customers[email]
	if !ok {
		return nil, nil
	}
	cp := *cust
	return &cp, nil
}

func (c *Client) CreateCustomer(_ context.Context, p provider.CreateCustomerParams) (*provider.Customer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cust := &provider.Customer{ID: c.nextID("cus"), Email: p.Email}
	c.customers[p.Email] = cust
	cp := *cust
	return &cp, nil
}

// CustomerCount reports how many distinct customers have been created.
func (c *Client) CustomerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.customers)
}

func (c *Client) CreatePaymentLink(_ context.Context, p provider.CreatePaymentLinkParams) (*provider.PaymentLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID("plink")
	return &provider.PaymentLink{
		ID:  id,
		URL: fmt.Sprintf("https://pay.fake.local/%s", id),
	}, nil
}

// Sign produces the signature VerifyEvent expects for the given payload.
func (c *Client) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(c.signingSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type eventEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Account string `json:"account"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func (c *Client) VerifyEvent(payload []byte, signature string) (*provider.Event, error) {
	want := c.Sign(payload)
	got, err := hex.DecodeString(signature)
	if err != nil {
		return nil, &domain.SignatureError{Err: fmt.Errorf("malformed signature")}
	}
	wantRaw, _ := hex.DecodeString(want)
	if !hmac.Equal(got, wantRaw) {
		return nil, &domain.SignatureError{Err: fmt.Errorf("signature mismatch")}
	}

	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &domain.SignatureError{Err: fmt.Errorf("malformed event payload: %w", err)}
	}
	return &provider.Event{
		ID:      env.ID,
		Type:    env.Type,
		Created: time.Unix(env.Created, 0),
		Account: env.Account,
		Raw:     env.Data.Object,
		Payload: payload,
	}, nil
}
