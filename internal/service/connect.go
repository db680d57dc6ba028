package service

import (
	"context"

	"github.com/you/charter-booking/internal/domain"
	"github.com/you/charter-booking/internal/provider"
)

// ConnectService manages payee sub-accounts: creation, onboarding links, and
// the capability-driven state machine fed by account.updated webhooks.
type ConnectService struct {
	store Store
	prov  provider.Client
	// default redirect targets for onboarding links
	refreshURL string
	returnURL  string
}

func NewConnectService(store Store, prov provider.Client, frontendBaseURL string) *ConnectService {
	return &ConnectService{
		store:      store,
		prov:       prov,
		refreshURL: frontendBaseURL + "/connect/refresh",
		returnURL:  frontendBaseURL + "/connect/return",
	}
}

type OwnerInfo struct {
	OwnerID string
	Email   string
	Country string
}

type CreateAccountOut struct {
	Account       *domain.PayeeAccount
	OnboardingURL string
}

// CreateAccount provisions the provider sub-account and immediately issues
// the first onboarding link.
func (s *ConnectService) CreateAccount(ctx context.Context, in OwnerInfo) (*CreateAccountOut, error) {
	if in.OwnerID == "" {
		return nil, domain.NewValidation("owner_id", "required")
	}
	if in.Email == "" {
		return nil, domain.NewValidation("email", "required")
	}

	pa, err := s.prov.CreateAccount(ctx, provider.CreateAccountParams{
		OwnerID: in.OwnerID,
		Email:   in.Email,
		Country: in.Country,
	})
	if err != nil {
		return nil, err
	}

	acc := &domain.PayeeAccount{
		ID:              pa.ID,
		OwnerID:         in.OwnerID,
		Email:           in.Email,
		Country:         in.Country,
		ChargesEnabled:  pa.ChargesEnabled,
		PayoutsEnabled:  pa.PayoutsEnabled,
		Status:          domain.AccountCreated,
		RequirementsDue: pa.RequirementsDue,
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		return nil, err
	}

	link, err := s.prov.CreateAccountLink(ctx, acc.ID, s.refreshURL, s.returnURL)
	if err != nil {
		return nil, err
	}
	acc.Status = domain.AccountOnboardingIncomplete
	if err := s.store.SaveAccount(ctx, acc); err != nil {
		return nil, err
	}
	return &CreateAccountOut{Account: acc, OnboardingURL: link.URL}, nil
}

// CreateOnboardingLink re-issues an onboarding link. Links expire, so this is
// safe to call repeatedly; the only side effect is the fresh link itself.
func (s *ConnectService) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	if accountID == "" {
		return "", domain.NewValidation("account_id", "required")
	}
	acc, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if refreshURL == "" {
		refreshURL = s.refreshURL
	}
	if returnURL == "" {
		returnURL = s.returnURL
	}
	link, err := s.prov.CreateAccountLink(ctx, acc.ID, refreshURL, returnURL)
	if err != nil {
		return "", err
	}
	if acc.Status == domain.AccountCreated {
		acc.Status = domain.AccountOnboardingIncomplete
		if err := s.store.SaveAccount(ctx, acc); err != nil {
			return "", err
		}
	}
	return link.URL, nil
}

func (s *ConnectService) GetAccount(ctx context.Context, accountID string) (*domain.PayeeAccount, error) {
	if accountID == "" {
		return nil, domain.NewValidation("account_id", "required")
	}
	return s.store.AccountByID(ctx, accountID)
}

// AccountUpdate carries the capability fields of an account.updated event.
type AccountUpdate struct {
	AccountID      string
	ChargesEnabled bool
	PayoutsEnabled bool
	CurrentlyDue   []string
}

// ApplyAccountUpdate runs the state machine against the given store view.
// The webhook processor passes its transaction so the transition commits
// together with the event's ledger claim.
func (s *ConnectService) ApplyAccountUpdate(ctx context.Context, st Store, upd AccountUpdate) (*domain.PayeeAccount, bool, error) {
	acc, err := st.AccountByID(ctx, upd.AccountID)
	if err != nil {
		return nil, false, err
	}
	changed := acc.ApplyUpdate(upd.ChargesEnabled, upd.PayoutsEnabled, upd.CurrentlyDue)
	if err := st.SaveAccount(ctx, acc); err != nil {
		return nil, false, err
	}
	return acc, changed, nil
}
