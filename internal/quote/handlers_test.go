package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/donkicalc-api/internal/calculator"
	"github.com/noah-isme/donkicalc-api/internal/rates"
	"github.com/noah-isme/donkicalc-api/internal/tools"
)

type staticRate rates.Snapshot

func (s staticRate) Latest(context.Context) rates.Snapshot { return rates.Snapshot(s) }

func newRouter(src RateSource) http.Handler {
	h := NewHandler(src, tools.NewRegistry(), 5500, 10)
	r := chi.NewRouter()
	r.Post("/api/v1/calculate", h.Calculate)
	r.Get("/api/v1/tools", h.ListTools)
	r.Post("/api/v1/tools/{kind}", h.RunTool)
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rr
}

type calcBody struct {
	Data struct {
		Result struct {
			FinalAmountLocal     int64   `json:"finalAmountLocal"`
			TotalDiscountPercent float64 `json:"totalDiscountPercent"`
			BaseAmountLocal      float64 `json:"baseAmountLocal"`
		} `json:"result"`
		Gauge struct {
			IsAchieved       bool    `json:"isAchieved"`
			RemainingForeign float64 `json:"remainingForeign"`
		} `json:"gauge"`
		Rate rateInfo `json:"rate"`
	} `json:"data"`
}

func TestCalculateUsesLatestRate(t *testing.T) {
	h := newRouter(staticRate{Currency: "JPY", Rate: 9.05, Source: rates.SourceDefault, Fallback: true})

	rr := post(t, h, "/api/v1/calculate", `{"amount":"10,000","taxFree":true,"coupon":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body calcBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.EqualValues(t, 77378, body.Data.Result.FinalAmountLocal)
	require.Equal(t, 14.5, body.Data.Result.TotalDiscountPercent)
	require.True(t, body.Data.Gauge.IsAchieved)
	require.Equal(t, rateInfo{Value: 9.05, Source: rates.SourceDefault, Fallback: true}, body.Data.Rate)
}

func TestCalculateRateOverride(t *testing.T) {
	h := newRouter(staticRate{Rate: 9.4, Source: rates.SourceStored})

	rr := post(t, h, "/api/v1/calculate", `{"amount":"50","rate":9.05}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var body calcBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.EqualValues(t, 453, body.Data.Result.FinalAmountLocal)
	require.Equal(t, "request", body.Data.Rate.Source)
	require.Equal(t, 5450.0, body.Data.Gauge.RemainingForeign)

	rr = post(t, h, "/api/v1/calculate", `{"amount":"100","rate":0}`)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.EqualValues(t, 940, body.Data.Result.FinalAmountLocal)
	require.Equal(t, rates.SourceStored, body.Data.Rate.Source)
}

func TestCalculateValidation(t *testing.T) {
	h := newRouter(nil)

	for _, body := range []string{
		`{"amount":"12a"}`,
		`{"amount":"12345678901"}`,
		`{"amount":""}`,
		`{"amount":"100","rate":-1}`,
		`{"amount":"100","policy":"bogus"}`,
	} {
		rr := post(t, h, "/api/v1/calculate", body)
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code, body)
		require.Contains(t, rr.Body.String(), "VALIDATION_FAILED")
	}

	rr := post(t, h, "/api/v1/calculate", `{"amount":"100","extra":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCalculateTieredPolicy(t *testing.T) {
	h := newRouter(nil)
	rr := post(t, h, "/api/v1/calculate", `{"amount":"30000","rate":9.05,"coupon":true,"policy":"tiered"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var body calcBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.EqualValues(t, 252495, body.Data.Result.FinalAmountLocal)
}

func TestListTools(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data []struct {
			Kind  string `json:"kind"`
			Title string `json:"title"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 4)
	require.Equal(t, "currency-converter", body.Data[0].Kind)
	require.Equal(t, "coupon-calculator", body.Data[3].Kind)
}

func TestRunTool(t *testing.T) {
	h := newRouter(staticRate{Rate: 10, Source: rates.SourceProvider})

	rr := post(t, h, "/api/v1/tools/DonkiCouponCalculator", `{"amount":"10000","couponIndex":1,"taxFree":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		Data struct {
			Kind   string `json:"kind"`
			Result struct {
				FinalRounded         int64   `json:"finalRounded"`
				TotalDiscountPercent float64 `json:"totalDiscountPercent"`
			} `json:"result"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "coupon-calculator", body.Data.Kind)
	require.EqualValues(t, 81000, body.Data.Result.FinalRounded)
	require.Equal(t, 19.0, body.Data.Result.TotalDiscountPercent)

	rr = post(t, h, "/api/v1/tools/coupon-calculator", `{"amount":"10000","couponIndex":9}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(t, h, "/api/v1/tools/currency-converter", `{"amount":"1000","direction":"sideways"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(t, h, "/api/v1/tools/teleporter", `{}`)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/tools/tax-free-threshold", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"thresholdForeign":5500`)
}

func TestOversizedAndNonDigitAmounts(t *testing.T) {
	h := newRouter(staticRate{Rate: 9.05, Source: rates.SourceProvider})
	amounts := []string{"1e308", "0x1p20", "99999999999999999999", "12345678901", "-5", "1.5"}

	for _, amount := range amounts {
		t.Run("calculate "+amount, func(t *testing.T) {
			rr := post(t, h, "/api/v1/calculate", `{"amount":"`+amount+`","taxFree":true,"coupon":true}`)
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
			require.Contains(t, rr.Body.String(), `"field":"amount"`)
		})

		for _, kind := range []string{"currency-converter", "tax-free-threshold", "discount-comparison", "coupon-calculator"} {
			t.Run(kind+" "+amount, func(t *testing.T) {
				rr := post(t, h, "/api/v1/tools/"+kind, `{"amount":"`+amount+`"}`)
				require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
				require.Contains(t, rr.Body.String(), "INVALID_REQUEST")
			})
		}
	}

	rr := post(t, h, "/api/v1/calculate", `{"amount":"100","rate":1e300}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
}

func TestMaxDigitsIsClamped(t *testing.T) {
	h := NewHandler(nil, nil, 5500, 40)
	require.Equal(t, calculator.MaxDigitsLimit, h.MaxDigits)

	r := chi.NewRouter()
	r.Post("/api/v1/calculate", h.Calculate)
	r.Post("/api/v1/tools/{kind}", h.RunTool)

	longest := strings.Repeat("9", calculator.MaxDigitsLimit)
	rr := post(t, r, "/api/v1/calculate", `{"amount":"`+longest+`","taxFree":true,"coupon":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body calcBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Positive(t, body.Data.Result.FinalAmountLocal)

	rr = post(t, r, "/api/v1/calculate", `{"amount":"`+longest+`9"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = post(t, r, "/api/v1/tools/coupon-calculator", `{"amount":"`+longest+`9"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
