// Package cli implements the donkicalc command line: a one-shot quote and an
// interactive keypad.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/donkicalc-api/internal/calculator"
	"github.com/noah-isme/donkicalc-api/internal/rates"
)

type options struct {
	rate      float64
	api       string
	threshold float64
	maxDigits int
	tiered    bool
}

// NewRootCmd builds the donkicalc command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "donkicalc",
		Short:         "JPY to KRW shopping calculator",
		Long:          "Convert Japanese prices to won with the tax-free and coupon discounts applied.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			opts.maxDigits = calculator.ClampMaxDigits(opts.maxDigits)
		},
	}
	root.PersistentFlags().Float64VarP(&opts.rate, "rate", "r", 0, "KRW per JPY (default: live rate from --api, else 9.05)")
	root.PersistentFlags().StringVar(&opts.api, "api", "", "Base URL of a donkicalc API to read the live rate from")
	root.PersistentFlags().Float64Var(&opts.threshold, "threshold", calculator.DefaultThreshold, "Tax-free minimum in JPY")
	root.PersistentFlags().IntVar(&opts.maxDigits, "max-digits", calculator.DefaultMaxDigits, fmt.Sprintf("Longest accepted amount (at most %d)", calculator.MaxDigitsLimit))
	root.PersistentFlags().BoolVar(&opts.tiered, "tiered", false, "Use the tiered coupon policy (7% from ¥30,000, 5% from ¥10,000)")

	root.AddCommand(newQuoteCmd(opts), newKeypadCmd(opts))
	return root
}

func (o *options) policy() calculator.CouponPolicy {
	if o.tiered {
		return calculator.PolicyTiered
	}
	return calculator.PolicyFlat
}

// resolveRate prefers an explicit --rate, then the API, then the default.
func (o *options) resolveRate(ctx context.Context) (float64, string) {
	if o.rate > 0 {
		return o.rate, "flag"
	}
	if strings.TrimSpace(o.api) != "" {
		snap, err := fetchRate(ctx, o.api)
		if err == nil && snap.Rate > 0 {
			return snap.Rate, snap.Source
		}
	}
	return calculator.DefaultRate, rates.SourceDefault
}

func fetchRate(ctx context.Context, baseURL string) (rates.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/v1/rates", nil)
	if err != nil {
		return rates.Snapshot{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return rates.Snapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return rates.Snapshot{}, fmt.Errorf("rates: status %d", resp.StatusCode)
	}
	var snap rates.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return rates.Snapshot{}, fmt.Errorf("rates: decode: %w", err)
	}
	return snap, nil
}
