// Package money converts decimal currency amounts into integer minor units
// and computes platform fee splits. Rounding happens once, at the boundary;
// downstream values are derived by exact integer arithmetic only.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrRateOutOfRange    = errors.New("fee rate must be in [0, 1)")
	ErrNegativeFee       = errors.New("fee must not be negative")
	ErrFeeExceedsGross   = errors.New("fee exceeds gross amount")
)

var minorPerMajor = decimal.NewFromInt(100)

// Split is a gross amount divided between the platform and the payee,
// all in integer minor units. Fee + Net == Gross always holds.
type Split struct {
	Gross int64
	Fee   int64
	Net   int64
}

// ToMinorUnits converts a decimal currency amount to minor units, rounding
// half-up to the nearest unit. Non-positive amounts are rejected.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.Sign() <= 0 {
		return 0, ErrNonPositiveAmount
	}
	// decimal.Round is half-away-from-zero, which is half-up for positives.
	return amount.Mul(minorPerMajor).Round(0).IntPart(), nil
}

// SplitRate computes the platform fee as a fraction of the gross. The fee is
// rounded half-up from the minor-unit gross; the net is the exact remainder.
func SplitRate(gross decimal.Decimal, rate decimal.Decimal) (Split, error) {
	g, err := ToMinorUnits(gross)
	if err != nil {
		return Split{}, err
	}
	if rate.Sign() < 0 || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Split{}, ErrRateOutOfRange
	}
	fee := decimal.NewFromInt(g).Mul(rate).Round(0).IntPart()
	return Split{Gross: g, Fee: fee, Net: g - fee}, nil
}

// SplitFee applies a fixed application fee already expressed in minor units.
func SplitFee(gross decimal.Decimal, fee int64) (Split, error) {
	g, err := ToMinorUnits(gross)
	if err != nil {
		return Split{}, err
	}
	if fee < 0 {
		return Split{}, ErrNegativeFee
	}
	if fee > g {
		return Split{}, ErrFeeExceedsGross
	}
	return Split{Gross: g, Fee: fee, Net: g - fee}, nil
}
