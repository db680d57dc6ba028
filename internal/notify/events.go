package notify

import (
	"encoding/json"
	"fmt"

	"github.com/you/charter-booking/internal/domain"
)

// Routing keys for the payment exchange.
const (
	RKPhaseSucceeded = "payment.phase.succeeded"
	RKPhaseFailed    = "payment.phase.failed"
	RKAccountUpdated = "payee.account.updated"
)

// PhaseSucceeded announces that one phase of a booking's payment completed.
type PhaseSucceeded struct {
	Event      string `json:"event"`       // "payment.phase.succeeded"
	Version    int    `json:"version"`     // 1
	OccurredAt string `json:"occurred_at"` // RFC3339
	Data       struct {
		BookingID string       `json:"booking_id"`
		Phase     domain.Phase `json:"phase"`
		Amount    int64        `json:"amount"` // minor units
		Currency  string       `json:"currency"`
	} `json:"data"`
}

type PhaseFailed struct {
	Event      string `json:"event"` // "payment.phase.failed"
	Version    int    `json:"version"`
	OccurredAt string `json:"occurred_at"`
	Data       struct {
		BookingID string       `json:"booking_id"`
		Phase     domain.Phase `json:"phase"`
		Reason    string       `json:"reason"`
	} `json:"data"`
}

type AccountUpdated struct {
	Event      string `json:"event"` // "payee.account.updated"
	Version    int    `json:"version"`
	OccurredAt string `json:"occurred_at"`
	Data       struct {
		AccountID string               `json:"account_id"`
		Status    domain.AccountStatus `json:"status"`
	} `json:"data"`
}

func MustUnmarshal[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload failed: %w", err)
	}
	return t, nil
}
