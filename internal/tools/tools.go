package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/donkicalc-api/internal/calculator"
)

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("tools: invalid request")

// Direction selects the conversion direction.
type Direction string

const (
	// JPYToKRW converts a yen amount to won.
	JPYToKRW Direction = "jpy-to-krw"
	// KRWToJPY converts a won amount to yen.
	KRWToJPY Direction = "krw-to-jpy"
)

// CurrencyConverter converts between JPY and KRW without discounts.
type CurrencyConverter struct{}

// ConvertRequest is the currency converter input. Amount is whole digits only.
type ConvertRequest struct {
	Amount    string    `json:"amount"`
	Direction Direction `json:"direction"`
}

// ConvertResult holds both sides of a conversion rounded to whole units.
type ConvertResult struct {
	Direction Direction `json:"direction"`
	JPY       int64     `json:"jpy"`
	KRW       int64     `json:"krw"`
	Rate      float64   `json:"rate"`
}

func (CurrencyConverter) Kind() Kind    { return KindCurrencyConverter }
func (CurrencyConverter) Title() string { return "JPY / KRW converter" }

// Run decodes a ConvertRequest and converts it at env.Rate.
func (c CurrencyConverter) Run(env Env, raw json.RawMessage) (any, error) {
	var req ConvertRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if _, err := parseAmount(req.Amount, env.MaxDigits); err != nil {
		return nil, err
	}
	return c.Convert(env.Rate, req)
}

// Convert rounds the converted side to whole units.
func (CurrencyConverter) Convert(rate float64, req ConvertRequest) (ConvertResult, error) {
	rate = calculator.SanitizeRate(rate)
	amount, err := parseAmount(req.Amount, calculator.MaxDigitsLimit)
	if err != nil {
		return ConvertResult{}, err
	}
	dir := Direction(strings.ToLower(strings.TrimSpace(string(req.Direction))))
	switch dir {
	case "", JPYToKRW:
		return ConvertResult{Direction: JPYToKRW, JPY: calculator.RoundLocal(amount), KRW: calculator.RoundLocal(amount * rate), Rate: rate}, nil
	case KRWToJPY:
		return ConvertResult{Direction: KRWToJPY, JPY: calculator.RoundLocal(amount / rate), KRW: calculator.RoundLocal(amount), Rate: rate}, nil
	default:
		return ConvertResult{}, fmt.Errorf("%w: direction %q", ErrInvalidRequest, req.Direction)
	}
}

// TaxFreeThreshold reports progress towards the tax-free minimum.
type TaxFreeThreshold struct{}

// ThresholdRequest is the tax-free threshold input.
type ThresholdRequest struct {
	Amount string `json:"amount"`
}

func (TaxFreeThreshold) Kind() Kind    { return KindTaxFreeThreshold }
func (TaxFreeThreshold) Title() string { return "Tax-free threshold check" }

// Run decodes a ThresholdRequest and reports gauge progress.
func (TaxFreeThreshold) Run(env Env, raw json.RawMessage) (any, error) {
	var req ThresholdRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount, env.MaxDigits)
	if err != nil {
		return nil, err
	}
	return calculator.Gauge(amount, env.Threshold), nil
}

// Scenario names used by DiscountComparison.
const (
	ScenarioNone    = "none"
	ScenarioTaxFree = "tax-free"
	ScenarioCoupon  = "coupon"
	ScenarioBoth    = "both"
)

// DiscountComparison lines up the price under each discount combination.
type DiscountComparison struct{}

// CompareRequest selects the amount, scenarios and coupon policy to compare.
type CompareRequest struct {
	Amount    string   `json:"amount"`
	Scenarios []string `json:"scenarios"`
	Policy    string   `json:"policy"`
}

// ScenarioResult is the price under one discount scenario.
type ScenarioResult struct {
	Name            string  `json:"name"`
	Amount          float64 `json:"amount"`
	Rounded         int64   `json:"rounded"`
	Discount        float64 `json:"discount"`
	DiscountPercent float64 `json:"discountPercent"`
}

func (DiscountComparison) Kind() Kind    { return KindDiscountComparison }
func (DiscountComparison) Title() string { return "Discount comparison" }

// Run decodes a CompareRequest and compares it at env.Rate.
func (d DiscountComparison) Run(env Env, raw json.RawMessage) (any, error) {
	var req CompareRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if _, err := parseAmount(req.Amount, env.MaxDigits); err != nil {
		return nil, err
	}
	return d.Compare(env.Rate, req)
}

// Compare always includes the undiscounted price and returns scenarios from
// most to least expensive. An empty scenario list compares all of them.
func (DiscountComparison) Compare(rate float64, req CompareRequest) ([]ScenarioResult, error) {
	if _, err := parseAmount(req.Amount, calculator.MaxDigitsLimit); err != nil {
		return nil, err
	}
	wanted := req.Scenarios
	if len(wanted) == 0 {
		wanted = []string{ScenarioTaxFree, ScenarioCoupon, ScenarioBoth}
	}
	policy := calculator.ParsePolicy(req.Policy)
	base := calculator.Input{AmountForeign: req.Amount, Rate: rate, Policy: policy}

	out := []ScenarioResult{scenario(ScenarioNone, base)}
	seen := map[string]bool{ScenarioNone: true}
	for _, name := range wanted {
		name = strings.ToLower(strings.TrimSpace(name))
		if seen[name] {
			continue
		}
		seen[name] = true
		in := base
		switch name {
		case ScenarioTaxFree:
			in.TaxFree = true
		case ScenarioCoupon:
			in.Coupon = true
		case ScenarioBoth:
			in.TaxFree, in.Coupon = true, true
		default:
			return nil, fmt.Errorf("%w: scenario %q", ErrInvalidRequest, name)
		}
		out = append(out, scenario(name, in))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out, nil
}

func scenario(name string, in calculator.Input) ScenarioResult {
	res := calculator.Calculate(in)
	final := res.BaseAmountLocal - res.TaxFreeDiscountAmount - res.CouponDiscountAmount
	return ScenarioResult{
		Name:            name,
		Amount:          final,
		Rounded:         res.FinalAmountLocal,
		Discount:        res.BaseAmountLocal - final,
		DiscountPercent: res.TotalDiscountPercent,
	}
}

// CouponType is one of the store coupons offered by the coupon calculator.
type CouponType struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// CouponTypes lists the selectable coupons in display order.
var CouponTypes = []CouponType{
	{Name: "standard", Percent: 5},
	{Name: "premium", Percent: 10},
	{Name: "vip", Percent: 15},
	{Name: "special", Percent: 20},
}

// CouponCalculator applies a selected store coupon and optionally tax-free.
// The coupon is taken off first, then the tax-free exemption.
type CouponCalculator struct{}

// CouponRequest is the store coupon calculator input.
type CouponRequest struct {
	Amount      string `json:"amount"`
	CouponIndex int    `json:"couponIndex"`
	TaxFree     bool   `json:"taxFree"`
}

// CouponResult is the coupon calculator breakdown.
type CouponResult struct {
	Coupon               CouponType `json:"coupon"`
	BaseAmount           float64    `json:"baseAmount"`
	CouponDiscount       float64    `json:"couponDiscount"`
	TaxFreeDiscount      float64    `json:"taxFreeDiscount"`
	FinalAmount          float64    `json:"finalAmount"`
	FinalRounded         int64      `json:"finalRounded"`
	TotalDiscount        float64    `json:"totalDiscount"`
	TotalDiscountPercent float64    `json:"totalDiscountPercent"`
}

func (CouponCalculator) Kind() Kind    { return KindCouponCalculator }
func (CouponCalculator) Title() string { return "Store coupon calculator" }

// Run decodes a CouponRequest and applies it at env.Rate.
func (c CouponCalculator) Run(env Env, raw json.RawMessage) (any, error) {
	var req CouponRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if _, err := parseAmount(req.Amount, env.MaxDigits); err != nil {
		return nil, err
	}
	return c.Apply(env.Rate, req)
}

// Apply prices the amount with the selected coupon and optional tax-free.
func (CouponCalculator) Apply(rate float64, req CouponRequest) (CouponResult, error) {
	if req.CouponIndex < 0 || req.CouponIndex >= len(CouponTypes) {
		return CouponResult{}, fmt.Errorf("%w: coupon index %d", ErrInvalidRequest, req.CouponIndex)
	}
	amount, err := parseAmount(req.Amount, calculator.MaxDigitsLimit)
	if err != nil {
		return CouponResult{}, err
	}
	coupon := CouponTypes[req.CouponIndex]
	base := amount * calculator.SanitizeRate(rate)
	afterCoupon := base * (1 - coupon.Percent/100)
	final := afterCoupon
	taxFree := 0.0
	if req.TaxFree {
		final = afterCoupon * (1 - calculator.TaxFreeRate)
		taxFree = afterCoupon - final
	}
	return CouponResult{
		Coupon:               coupon,
		BaseAmount:           base,
		CouponDiscount:       base - afterCoupon,
		TaxFreeDiscount:      taxFree,
		FinalAmount:          final,
		FinalRounded:         calculator.RoundLocal(final),
		TotalDiscount:        base - final,
		TotalDiscountPercent: calculator.DiscountPercent(base, final),
	}, nil
}

// parseAmount accepts a blank amount as zero and otherwise requires whole
// digits within maxDigits.
func parseAmount(raw string, maxDigits int) (float64, error) {
	err := calculator.CheckAmount(raw, maxDigits)
	if err != nil && !errors.Is(err, calculator.ErrEmptyAmount) {
		return 0, fmt.Errorf("%w: amount: %v", ErrInvalidRequest, err)
	}
	return calculator.ParseAmount(raw), nil
}
