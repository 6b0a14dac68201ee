package calculator

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateReferenceScenarios(t *testing.T) {
	cases := []struct {
		name        string
		in          Input
		wantBase    float64
		wantFinal   int64
		wantPercent float64
	}{
		{
			name:        "no discounts",
			in:          Input{AmountForeign: "10000", Rate: 9.05},
			wantBase:    90500,
			wantFinal:   90500,
			wantPercent: 0,
		},
		{
			name:        "tax free only",
			in:          Input{AmountForeign: "10000", Rate: 9.05, TaxFree: true},
			wantBase:    90500,
			wantFinal:   81450,
			wantPercent: 10.0,
		},
		{
			name:        "tax free and coupon",
			in:          Input{AmountForeign: "10000", Rate: 9.05, TaxFree: true, Coupon: true},
			wantBase:    90500,
			wantFinal:   77378,
			wantPercent: 14.5,
		},
		{
			name:        "zero amount",
			in:          Input{AmountForeign: "0", Rate: 9.05, TaxFree: true, Coupon: true},
			wantBase:    0,
			wantFinal:   0,
			wantPercent: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Calculate(tc.in)
			require.Equal(t, tc.wantBase, res.BaseAmountLocal)
			require.Equal(t, tc.wantFinal, res.FinalAmountLocal)
			require.Equal(t, tc.wantPercent, res.TotalDiscountPercent)
		})
	}
}

func TestCalculateBreakdown(t *testing.T) {
	res := Calculate(Input{AmountForeign: "10000", Rate: 9.05, TaxFree: true, Coupon: true})
	require.InDelta(t, 9050, res.TaxFreeDiscountAmount, 1e-9)
	require.InDelta(t, 4072.5, res.CouponDiscountAmount, 1e-9)
	require.Equal(t, CouponRate, res.CouponRate)
	require.Equal(t, PolicyFlat, res.Policy)
}

func TestCalculateTaxFreeIgnoresThreshold(t *testing.T) {
	res := Calculate(Input{AmountForeign: "1000", Rate: 10, TaxFree: true})
	require.Equal(t, int64(9000), res.FinalAmountLocal)
}

func TestCalculateTieredCoupon(t *testing.T) {
	below := Calculate(Input{AmountForeign: "9999", Rate: 9.05, Coupon: true, Policy: PolicyTiered})
	require.Equal(t, 0.0, below.CouponRate)
	require.Equal(t, int64(math.Round(9999*9.05)), below.FinalAmountLocal)

	low := Calculate(Input{AmountForeign: "10000", Rate: 9.05, Coupon: true, Policy: PolicyTiered})
	require.Equal(t, CouponRate, low.CouponRate)
	require.Equal(t, int64(85975), low.FinalAmountLocal)

	high := Calculate(Input{AmountForeign: "30000", Rate: 9.05, Coupon: true, Policy: PolicyTiered})
	require.Equal(t, CouponRateHigh, high.CouponRate)
	require.Equal(t, int64(252495), high.FinalAmountLocal)
	require.Equal(t, 7.0, high.TotalDiscountPercent)

	flat := Calculate(Input{AmountForeign: "100", Rate: 9.05, Coupon: true})
	require.Equal(t, CouponRate, flat.CouponRate)
}

func TestCalculateCoercesBadInput(t *testing.T) {
	res := Calculate(Input{AmountForeign: "abc", Rate: 9.05, TaxFree: true})
	require.Zero(t, res.AmountForeign)
	require.Zero(t, res.FinalAmountLocal)
	require.Zero(t, res.TotalDiscountPercent)

	for _, rate := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		res := Calculate(Input{AmountForeign: "100", Rate: rate})
		require.Equal(t, DefaultRate, res.Rate)
		require.Equal(t, int64(905), res.FinalAmountLocal)
	}
}

func TestCalculateRejectsNonDigitAndOversizedAmounts(t *testing.T) {
	cases := []string{
		"1e308",
		"0x1p20",
		"1.5",
		"-100",
		"+100",
		"Inf",
		"NaN",
		"99999999999999999999",
		strings.Repeat("9", MaxDigitsLimit+1),
	}
	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			res := Calculate(Input{AmountForeign: raw, Rate: 9.05, TaxFree: true, Coupon: true})
			require.Zero(t, res.AmountForeign)
			require.Zero(t, res.BaseAmountLocal)
			require.Zero(t, res.FinalAmountLocal)
		})
	}
}

func TestCalculateLargestAmountFitsInt64(t *testing.T) {
	raw := strings.Repeat("9", MaxDigitsLimit)
	res := Calculate(Input{AmountForeign: raw, Rate: MaxRate, TaxFree: true, Coupon: true})
	require.Equal(t, 999999999999999.0, res.AmountForeign)
	require.Positive(t, res.FinalAmountLocal)
	require.LessOrEqual(t, float64(res.FinalAmountLocal), math.Round(res.BaseAmountLocal))

	huge := Calculate(Input{AmountForeign: "1", Rate: 1e300})
	require.Equal(t, DefaultRate, huge.Rate)
	require.Equal(t, int64(9), huge.FinalAmountLocal)
}

func TestCheckAmount(t *testing.T) {
	require.NoError(t, CheckAmount("12345", 5))
	require.NoError(t, CheckAmount(" 42 ", 5))
	require.ErrorIs(t, CheckAmount("", 5), ErrEmptyAmount)
	require.ErrorIs(t, CheckAmount("123456", 5), ErrInvalidAmount)
	require.ErrorIs(t, CheckAmount("1e308", 10), ErrInvalidAmount)
	require.ErrorIs(t, CheckAmount("0x1p20", 10), ErrInvalidAmount)
	require.ErrorIs(t, CheckAmount(strings.Repeat("1", 20), 100), ErrInvalidAmount)
}

func TestClampMaxDigits(t *testing.T) {
	require.Equal(t, DefaultMaxDigits, ClampMaxDigits(0))
	require.Equal(t, DefaultMaxDigits, ClampMaxDigits(-3))
	require.Equal(t, 7, ClampMaxDigits(7))
	require.Equal(t, MaxDigitsLimit, ClampMaxDigits(40))
}

func TestRoundLocal(t *testing.T) {
	require.Equal(t, int64(77378), RoundLocal(77377.5))
	require.Zero(t, RoundLocal(-5))
	require.Zero(t, RoundLocal(math.NaN()))
	require.Equal(t, int64(math.MaxInt64), RoundLocal(math.Inf(1)))
	require.Equal(t, int64(math.MaxInt64), RoundLocal(1e308))
}

func TestCalculateDiscountsNeverIncreasePrice(t *testing.T) {
	rates := []float64{0.01, 1, 9.05, 9.4321, 999.5}
	for amount := 0; amount <= 200000; amount += 1237 {
		raw := strconv.Itoa(amount)
		for _, rate := range rates {
			for _, policy := range []CouponPolicy{PolicyFlat, PolicyTiered} {
				none := Calculate(Input{AmountForeign: raw, Rate: rate, Policy: policy})
				tax := Calculate(Input{AmountForeign: raw, Rate: rate, TaxFree: true, Policy: policy})
				coupon := Calculate(Input{AmountForeign: raw, Rate: rate, Coupon: true, Policy: policy})
				both := Calculate(Input{AmountForeign: raw, Rate: rate, TaxFree: true, Coupon: true, Policy: policy})

				require.GreaterOrEqual(t, both.FinalAmountLocal, int64(0))
				require.LessOrEqual(t, both.FinalAmountLocal, tax.FinalAmountLocal)
				require.LessOrEqual(t, tax.FinalAmountLocal, none.FinalAmountLocal)
				require.LessOrEqual(t, both.FinalAmountLocal, coupon.FinalAmountLocal)
				require.LessOrEqual(t, coupon.FinalAmountLocal, none.FinalAmountLocal)
				require.LessOrEqual(t, float64(none.FinalAmountLocal), math.Round(none.BaseAmountLocal))
			}
		}
	}
}

func TestCalculateMonotonicInAmountAndRate(t *testing.T) {
	prev := int64(-1)
	for amount := 0; amount <= 50000; amount += 7 {
		res := Calculate(Input{AmountForeign: strconv.Itoa(amount), Rate: 9.05, TaxFree: true, Coupon: true})
		require.GreaterOrEqual(t, res.FinalAmountLocal, prev)
		prev = res.FinalAmountLocal
	}

	prev = -1
	for rate := 0.5; rate <= 20; rate += 0.37 {
		res := Calculate(Input{AmountForeign: "12345", Rate: rate, TaxFree: true, Coupon: true})
		require.GreaterOrEqual(t, res.FinalAmountLocal, prev)
		prev = res.FinalAmountLocal
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	in := Input{AmountForeign: "12345", Rate: 9.0512, TaxFree: true, Coupon: true, Policy: PolicyTiered}
	require.Equal(t, Calculate(in), Calculate(in))
}

func TestParsePolicy(t *testing.T) {
	require.Equal(t, PolicyTiered, ParsePolicy(" Tiered "))
	require.Equal(t, PolicyFlat, ParsePolicy(""))
	require.Equal(t, PolicyFlat, ParsePolicy("bogus"))
}

func TestGauge(t *testing.T) {
	at := Gauge(5500, 5500)
	require.True(t, at.IsAchieved)
	require.Equal(t, 100.0, at.ProgressPercent)
	require.Zero(t, at.RemainingForeign)

	below := Gauge(3000, 5500)
	require.False(t, below.IsAchieved)
	require.InDelta(t, 54.5, below.ProgressPercent, 0.05)
	require.Equal(t, 2500.0, below.RemainingForeign)

	above := Gauge(9000, 5500)
	require.True(t, above.IsAchieved)
	require.Equal(t, 100.0, above.ProgressPercent)

	fallback := Gauge(100, 0)
	require.Equal(t, float64(DefaultThreshold), fallback.ThresholdForeign)
}

func TestGaugeAchievedImpliesFullProgress(t *testing.T) {
	for amount := 0.0; amount <= 12000; amount += 250 {
		g := Gauge(amount, 5500)
		require.Equal(t, amount >= 5500, g.IsAchieved)
		if g.IsAchieved {
			require.Equal(t, 100.0, g.ProgressPercent)
		}
	}
}
