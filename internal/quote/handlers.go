// Package quote serves the discount calculator and its side tools over HTTP.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/donkicalc-api/internal/calculator"
	"github.com/noah-isme/donkicalc-api/internal/common"
	"github.com/noah-isme/donkicalc-api/internal/obs"
	"github.com/noah-isme/donkicalc-api/internal/rates"
	"github.com/noah-isme/donkicalc-api/internal/tools"
)

// RateSource supplies the current exchange rate; *rates.Service implements it.
type RateSource interface {
	Latest(ctx context.Context) rates.Snapshot
}

// Handler serves /api/v1/calculate and /api/v1/tools.
type Handler struct {
	Rates     RateSource
	Tools     *tools.Registry
	Validate  *validator.Validate
	Threshold float64
	MaxDigits int
}

// NewHandler wires a handler with its own validator.
func NewHandler(src RateSource, registry *tools.Registry, threshold float64, maxDigits int) *Handler {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	maxDigits = calculator.ClampMaxDigits(maxDigits)
	return &Handler{
		Rates:     src,
		Tools:     registry,
		Validate:  newValidator(maxDigits),
		Threshold: threshold,
		MaxDigits: maxDigits,
	}
}

type calculateRequest struct {
	Amount  string   `json:"amount" validate:"required,amount"`
	Rate    *float64 `json:"rate" validate:"omitempty,gte=0,lte=1000"`
	TaxFree bool     `json:"taxFree"`
	Coupon  bool     `json:"coupon"`
	Policy  string   `json:"policy" validate:"omitempty,oneof=flat tiered"`
}

type rateInfo struct {
	Value    float64 `json:"value"`
	Source   string  `json:"source"`
	Fallback bool    `json:"fallback"`
}

type calculateResponse struct {
	Result calculator.Result          `json:"result"`
	Gauge  calculator.TaxFreeProgress `json:"gauge"`
	Rate   rateInfo                   `json:"rate"`
}

// Calculate handles POST /api/v1/calculate. A missing or zero rate uses the
// latest known exchange rate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}

	info := h.rateFor(r.Context(), req.Rate)
	amount := normaliseAmount(req.Amount)
	policy := calculator.ParsePolicy(req.Policy)
	result := calculator.Calculate(calculator.Input{
		AmountForeign: amount,
		Rate:          info.Value,
		TaxFree:       req.TaxFree,
		Coupon:        req.Coupon,
		Policy:        policy,
	})
	obs.ObserveCalculation(string(policy), req.TaxFree, req.Coupon)

	common.Data(w, http.StatusOK, calculateResponse{
		Result: result,
		Gauge:  calculator.Gauge(result.AmountForeign, h.Threshold),
		Rate:   info,
	})
}

// ListTools handles GET /api/v1/tools.
func (h *Handler) ListTools(w http.ResponseWriter, _ *http.Request) {
	common.Data(w, http.StatusOK, h.Tools.List())
}

// RunTool handles POST /api/v1/tools/{kind}.
func (h *Handler) RunTool(w http.ResponseWriter, r *http.Request) {
	kind, err := tools.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "UNKNOWN_TOOL", err.Error(), nil)
		return
	}
	tool, err := h.Tools.New(kind)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "UNKNOWN_TOOL", err.Error(), nil)
		return
	}

	var raw json.RawMessage
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &raw); err != nil {
			common.WriteError(w, err)
			return
		}
	}

	snap := h.latest(r.Context())
	out, err := tool.Run(tools.Env{Rate: snap.Rate, Threshold: h.Threshold, MaxDigits: h.MaxDigits}, raw)
	obs.ObserveToolRun(kind.String(), err)
	if errors.Is(err, tools.ErrInvalidRequest) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("tool", kind.String()).Msg("tool run failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tool failed", nil)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"kind":   kind,
		"title":  tool.Title(),
		"rate":   rateInfo{Value: snap.Rate, Source: snap.Source, Fallback: snap.Fallback},
		"result": out,
	})
}

func (h *Handler) rateFor(ctx context.Context, override *float64) rateInfo {
	if override != nil && *override > 0 {
		return rateInfo{Value: *override, Source: "request"}
	}
	snap := h.latest(ctx)
	return rateInfo{Value: snap.Rate, Source: snap.Source, Fallback: snap.Fallback}
}

func (h *Handler) latest(ctx context.Context) rates.Snapshot {
	if h.Rates == nil {
		return rates.Snapshot{Rate: calculator.DefaultRate, Source: rates.SourceDefault, Fallback: true}
	}
	return h.Rates.Latest(ctx)
}

// normaliseAmount strips grouping separators and whitespace the keypad UI
// may send along with the digits.
func normaliseAmount(raw string) string {
	return strings.NewReplacer(",", "", " ", "", "_", "").Replace(strings.TrimSpace(raw))
}

func newValidator(maxDigits int) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		s := normaliseAmount(fl.Field().String())
		if s == "" || len(s) > maxDigits {
			return false
		}
		for i := 0; i < len(s); i++ {
			if s[i] < '0' || s[i] > '9' {
				return false
			}
		}
		return true
	})
	return v
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func writeValidation(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "request validation failed", details)
}
