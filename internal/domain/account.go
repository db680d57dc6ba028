package domain

import "time"

// AccountStatus is the onboarding state of a payee sub-account.
//
//	created -> onboarding_incomplete -> onboarding_complete -> active
//
// restricted is reachable from any state when the provider reports newly
// outstanding requirements.
type AccountStatus string

const (
	AccountCreated              AccountStatus = "created"
	AccountOnboardingIncomplete AccountStatus = "onboarding_incomplete"
	AccountOnboardingComplete   AccountStatus = "onboarding_complete"
	AccountActive               AccountStatus = "active"
	AccountRestricted           AccountStatus = "restricted"
)

// PayeeAccount is the boat owner's provider sub-account. Created once per
// payee, mutated by onboarding webhooks, never deleted (marked inactive).
type PayeeAccount struct {
	ID              string        `gorm:"primaryKey"` // provider-assigned acct id
	OwnerID         string        `gorm:"index"`
	Email           string        `gorm:"index"`
	Country         string
	ChargesEnabled  bool
	PayoutsEnabled  bool
	Status          AccountStatus `gorm:"index"`
	RequirementsDue []string      `gorm:"serializer:json"`
	Inactive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ApplyUpdate transitions the account from a provider account.updated event.
// Returns true when the status changed.
//
// Rules: newly outstanding requirements restrict the account; both capability
// flags plus a clean requirements list activate it; a clean list without full
// capabilities means onboarding finished but capabilities are still being
// provisioned.
func (a *PayeeAccount) ApplyUpdate(chargesEnabled, payoutsEnabled bool, currentlyDue []string) bool {
	prev := a.Status
	hadDue := len(a.RequirementsDue) > 0

	a.ChargesEnabled = chargesEnabled
	a.PayoutsEnabled = payoutsEnabled
	a.RequirementsDue = currentlyDue

	switch {
	case len(currentlyDue) > 0 && !hadDue:
		a.Status = AccountRestricted
	case chargesEnabled && payoutsEnabled && len(currentlyDue) == 0:
		a.Status = AccountActive
	case len(currentlyDue) == 0:
		a.Status = AccountOnboardingComplete
	case prev == AccountCreated:
		a.Status = AccountOnboardingIncomplete
	}
	return a.Status != prev
}
