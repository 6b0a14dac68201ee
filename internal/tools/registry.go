// Package tools implements the calculator side tools (converter, threshold
// check, discount comparison, coupon calculator) behind a typed registry.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownKind is returned for a tool name that is not registered.
var ErrUnknownKind = errors.New("tools: unknown kind")

// Kind identifies a tool.
type Kind int

const (
	KindCurrencyConverter Kind = iota + 1
	KindTaxFreeThreshold
	KindDiscountComparison
	KindCouponCalculator
)

var kindNames = map[Kind]string{
	KindCurrencyConverter:  "currency-converter",
	KindTaxFreeThreshold:   "tax-free-threshold",
	KindDiscountComparison: "discount-comparison",
	KindCouponCalculator:   "coupon-calculator",
}

// legacy component names used by the site's tool pages.
var legacyNames = map[string]Kind{
	"currencyconverter":          KindCurrencyConverter,
	"taxfreethresholdcalculator": KindTaxFreeThreshold,
	"discountcomparison":         KindDiscountComparison,
	"donkicouponcalculator":      KindCouponCalculator,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText renders the kind's slug.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, ErrUnknownKind
	}
	return []byte(k.String()), nil
}

// ParseKind accepts a slug ("coupon-calculator") or a component name
// ("DonkiCouponCalculator").
func ParseKind(raw string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for k, slug := range kindNames {
		if slug == name {
			return k, nil
		}
	}
	if k, ok := legacyNames[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

// Env carries values every tool can depend on.
type Env struct {
	Rate      float64
	Threshold float64
	// MaxDigits caps request amounts; zero selects the calculator default.
	MaxDigits int
}

// Tool runs a preview from a JSON request body.
type Tool interface {
	Kind() Kind
	Title() string
	Run(env Env, raw json.RawMessage) (any, error)
}

// Registry maps kinds to tool constructors.
type Registry struct {
	ctors map[Kind]func() Tool
}

// NewRegistry returns a registry holding every built-in tool.
func NewRegistry() *Registry {
	return &Registry{ctors: map[Kind]func() Tool{
		KindCurrencyConverter:  func() Tool { return CurrencyConverter{} },
		KindTaxFreeThreshold:   func() Tool { return TaxFreeThreshold{} },
		KindDiscountComparison: func() Tool { return DiscountComparison{} },
		KindCouponCalculator:   func() Tool { return CouponCalculator{} },
	}}
}

// New constructs the tool for k.
func (r *Registry) New(k Kind) (Tool, error) {
	ctor, ok := r.ctors[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	return ctor(), nil
}

// Descriptor is the public listing entry for a tool.
type Descriptor struct {
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
}

// List returns descriptors ordered by kind.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.ctors))
	for k, ctor := range r.ctors {
		out = append(out, Descriptor{Kind: k, Title: ctor().Title()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
