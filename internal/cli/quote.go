package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/donkicalc-api/internal/calculator"
)

func newQuoteCmd(opts *options) *cobra.Command {
	var (
		amount  string
		taxFree bool
		coupon  bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Print the won price for a yen amount",
		Example: "  donkicalc quote --amount 10000 --tax-free --coupon\n" +
			"  donkicalc quote -a 30000 --coupon --tiered --json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			digits := strings.NewReplacer(",", "", "_", "", " ", "").Replace(amount)
			if err := calculator.CheckAmount(digits, opts.maxDigits); err != nil {
				return fmt.Errorf("amount %q is not a whole yen amount of at most %d digits", amount, opts.maxDigits)
			}
			rate, source := opts.resolveRate(cmd.Context())
			res := calculator.Calculate(calculator.Input{
				AmountForeign: digits,
				Rate:          rate,
				TaxFree:       taxFree,
				Coupon:        coupon,
				Policy:        opts.policy(),
			})
			gauge := calculator.Gauge(res.AmountForeign, opts.threshold)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"result": res, "gauge": gauge, "rateSource": source})
			}
			fmt.Fprintln(out, RenderQuote(res, gauge, taxFree, coupon))
			return nil
		},
	}
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount in JPY")
	cmd.Flags().BoolVarP(&taxFree, "tax-free", "t", false, "Apply the 10% tax-free exemption")
	cmd.Flags().BoolVarP(&coupon, "coupon", "c", false, "Apply the store coupon")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine readable output")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
