package calculator

import "strings"

// Keypad holds calculator input under keypad editing rules and recomputes the
// derived result after every mutation. It is not safe for concurrent use.
type Keypad struct {
	input     string
	rate      float64
	taxFree   bool
	coupon    bool
	policy    CouponPolicy
	threshold float64
	maxDigits int

	result   Result
	progress TaxFreeProgress
}

// KeypadOption customises a Keypad.
type KeypadOption func(*Keypad)

// WithRate sets the initial rate.
func WithRate(rate float64) KeypadOption {
	return func(k *Keypad) { k.rate = rate }
}

// WithThreshold sets the tax-free threshold used by the gauge.
func WithThreshold(threshold float64) KeypadOption {
	return func(k *Keypad) { k.threshold = threshold }
}

// WithMaxDigits caps the input length. Values above MaxDigitsLimit are clamped.
func WithMaxDigits(n int) KeypadOption {
	return func(k *Keypad) { k.maxDigits = n }
}

// WithPolicy selects the coupon policy.
func WithPolicy(p CouponPolicy) KeypadOption {
	return func(k *Keypad) { k.policy = p }
}

// NewKeypad returns a keypad showing "0".
func NewKeypad(opts ...KeypadOption) *Keypad {
	k := &Keypad{
		input:     "0",
		rate:      DefaultRate,
		policy:    PolicyFlat,
		threshold: DefaultThreshold,
		maxDigits: DefaultMaxDigits,
	}
	for _, opt := range opts {
		opt(k)
	}
	k.maxDigits = ClampMaxDigits(k.maxDigits)
	if k.threshold <= 0 {
		k.threshold = DefaultThreshold
	}
	k.recompute()
	return k
}

// AppendDigit adds d to the input. Non-digits and presses past the digit cap
// are ignored. A lone "0" is replaced rather than extended.
func (k *Keypad) AppendDigit(d string) {
	if len(d) != 1 || d[0] < '0' || d[0] > '9' {
		return
	}
	if len(k.input) >= k.maxDigits {
		return
	}
	if k.input == "0" {
		k.input = d
	} else {
		k.input += d
	}
	k.recompute()
}

// Backspace drops the last digit, leaving "0" when nothing remains.
func (k *Keypad) Backspace() {
	if len(k.input) <= 1 {
		k.input = "0"
	} else {
		k.input = k.input[:len(k.input)-1]
	}
	k.recompute()
}

// Clear resets the input to "0" and zeroes the result.
func (k *Keypad) Clear() {
	k.input = "0"
	k.recompute()
}

// SetInput replaces the input with the digits of raw, truncated to the cap.
func (k *Keypad) SetInput(raw string) {
	k.input = SanitizeDigits(raw, k.maxDigits)
	k.recompute()
}

// ToggleTaxFree flips the tax-free discount.
func (k *Keypad) ToggleTaxFree() {
	k.taxFree = !k.taxFree
	k.recompute()
}

// ToggleCoupon flips the coupon discount.
func (k *Keypad) ToggleCoupon() {
	k.coupon = !k.coupon
	k.recompute()
}

// SetRate installs a new exchange rate. Unusable rates fall back to DefaultRate.
func (k *Keypad) SetRate(rate float64) {
	k.rate = rate
	k.recompute()
}

// Input returns the current digit string.
func (k *Keypad) Input() string { return k.input }

// TaxFree reports whether the tax-free discount is on.
func (k *Keypad) TaxFree() bool { return k.taxFree }

// Coupon reports whether the coupon discount is on.
func (k *Keypad) Coupon() bool { return k.coupon }

// Snapshot returns the result and gauge for the current state.
func (k *Keypad) Snapshot() (Result, TaxFreeProgress) {
	return k.result, k.progress
}

func (k *Keypad) recompute() {
	k.result = Calculate(Input{
		AmountForeign: k.input,
		Rate:          k.rate,
		TaxFree:       k.taxFree,
		Coupon:        k.coupon,
		Policy:        k.policy,
	})
	k.progress = Gauge(k.result.AmountForeign, k.threshold)
}

// SanitizeDigits keeps only ASCII digits, truncates to maxDigits (clamped
// with ClampMaxDigits) and normalises an empty or zero input to "0".
func SanitizeDigits(raw string, maxDigits int) string {
	maxDigits = ClampMaxDigits(maxDigits)
	var b strings.Builder
	for i := 0; i < len(raw) && b.Len() < maxDigits; i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	out := b.String()
	if out == "" || out == "0" {
		return "0"
	}
	return out
}
