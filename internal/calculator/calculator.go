// Package calculator converts a JPY purchase amount to KRW and applies the
// tax-free and coupon discounts shown by the shopping calculator.
package calculator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// TaxFreeRate is the duty-free exemption applied when the toggle is on.
	TaxFreeRate = 0.10
	// CouponRate is the flat coupon discount used for committed results.
	CouponRate = 0.05
	// CouponRateHigh applies to tiered previews at or above TieredHighFrom.
	CouponRateHigh = 0.07
	// TieredLowFrom is the smallest amount that earns a tiered coupon.
	TieredLowFrom = 10000
	// TieredHighFrom is the smallest amount that earns the high tiered coupon.
	TieredHighFrom = 30000
	// DefaultRate is the KRW per JPY used when no rate is available.
	DefaultRate = 9.05
	// DefaultThreshold is the minimum purchase (JPY) for tax-free eligibility.
	DefaultThreshold = 5500
	// DefaultMaxDigits caps keypad input length.
	DefaultMaxDigits = 10
	// MaxDigitsLimit is the largest configurable digit cap. Fifteen digits
	// times MaxRate stays inside int64.
	MaxDigitsLimit = 15
	// MaxRate is the largest rate accepted before falling back to DefaultRate.
	MaxRate = 1000
)

var (
	// ErrEmptyAmount is returned by CheckAmount for a blank amount.
	ErrEmptyAmount = errors.New("calculator: empty amount")
	// ErrInvalidAmount is returned by CheckAmount for non-digit or over-long input.
	ErrInvalidAmount = errors.New("calculator: invalid amount")
)

// CouponPolicy selects how the coupon rate is derived from the amount.
type CouponPolicy string

const (
	// PolicyFlat always applies CouponRate.
	PolicyFlat CouponPolicy = "flat"
	// PolicyTiered applies 7% from 30,000, 5% from 10,000 and nothing below.
	PolicyTiered CouponPolicy = "tiered"
)

// ParsePolicy maps a user supplied string to a policy. Unknown values fall
// back to PolicyFlat.
func ParsePolicy(raw string) CouponPolicy {
	if strings.EqualFold(strings.TrimSpace(raw), string(PolicyTiered)) {
		return PolicyTiered
	}
	return PolicyFlat
}

// Input is the full set of values a calculation depends on.
type Input struct {
	AmountForeign string
	Rate          float64
	TaxFree       bool
	Coupon        bool
	Policy        CouponPolicy
}

// Result is the derived KRW breakdown. Only FinalAmountLocal is rounded.
type Result struct {
	AmountForeign         float64      `json:"amountForeign"`
	Rate                  float64      `json:"rate"`
	BaseAmountLocal       float64      `json:"baseAmountLocal"`
	TaxFreeDiscountAmount float64      `json:"taxFreeDiscountAmount"`
	CouponDiscountAmount  float64      `json:"couponDiscountAmount"`
	FinalAmountLocal      int64        `json:"finalAmountLocal"`
	TotalDiscountPercent  float64      `json:"totalDiscountPercent"`
	CouponRate            float64      `json:"couponRate"`
	Policy                CouponPolicy `json:"policy"`
}

// Calculate runs the conversion and discount pipeline. It never fails:
// unparsable amounts count as zero and unusable rates fall back to DefaultRate.
func Calculate(in Input) Result {
	amount := ParseAmount(in.AmountForeign)
	rate := SanitizeRate(in.Rate)
	policy := in.Policy
	if policy != PolicyTiered {
		policy = PolicyFlat
	}

	base := amount * rate

	afterTaxFree := base
	if in.TaxFree {
		afterTaxFree = base * (1 - TaxFreeRate)
	}

	couponRate := 0.0
	final := afterTaxFree
	if in.Coupon {
		couponRate = CouponRateFor(policy, amount)
		final = afterTaxFree * (1 - couponRate)
	}

	return Result{
		AmountForeign:         amount,
		Rate:                  rate,
		BaseAmountLocal:       base,
		TaxFreeDiscountAmount: base - afterTaxFree,
		CouponDiscountAmount:  afterTaxFree - final,
		FinalAmountLocal:      RoundLocal(final),
		TotalDiscountPercent:  DiscountPercent(base, final),
		CouponRate:            couponRate,
		Policy:                policy,
	}
}

// CouponRateFor returns the coupon rate for the amount under the policy.
func CouponRateFor(policy CouponPolicy, amount float64) float64 {
	if policy != PolicyTiered {
		return CouponRate
	}
	switch {
	case amount >= TieredHighFrom:
		return CouponRateHigh
	case amount >= TieredLowFrom:
		return CouponRate
	default:
		return 0
	}
}

// DiscountPercent reports (base-final)/base as a percentage with one decimal.
// A zero base yields 0.
func DiscountPercent(base, final float64) float64 {
	if base <= 0 {
		return 0
	}
	return Round1((base - final) / base * 100)
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ParseAmount reads a whole amount made of ASCII digits only, at most
// MaxDigitsLimit of them. Anything else is treated as zero.
func ParseAmount(raw string) float64 {
	if err := CheckAmount(raw, MaxDigitsLimit); err != nil {
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return float64(v)
}

// CheckAmount reports whether raw is empty or holds only ASCII digits and no
// more than maxDigits of them. maxDigits is clamped with ClampMaxDigits.
func CheckAmount(raw string, maxDigits int) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ErrEmptyAmount
	}
	if len(s) > ClampMaxDigits(maxDigits) {
		return fmt.Errorf("%w: more than %d digits", ErrInvalidAmount, ClampMaxDigits(maxDigits))
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("%w: %q is not a whole number", ErrInvalidAmount, raw)
		}
	}
	return nil
}

// ClampMaxDigits maps a configured digit cap into [1, MaxDigitsLimit].
// Non-positive values select DefaultMaxDigits.
func ClampMaxDigits(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxDigits
	case n > MaxDigitsLimit:
		return MaxDigitsLimit
	default:
		return n
	}
}

// RoundLocal rounds a KRW amount to a whole won. Negative or non-finite
// values give 0 and values past int64 saturate.
func RoundLocal(v float64) int64 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	default:
		return int64(v)
	}
}

// SanitizeRate returns rate when it is usable, DefaultRate otherwise.
func SanitizeRate(rate float64) float64 {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 || rate > MaxRate {
		return DefaultRate
	}
	return rate
}
