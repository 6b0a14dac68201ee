package views

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/donkicalc-api/internal/common"
)

// Handler serves GET and POST /api/v1/views/{slug}.
type Handler struct {
	Service *Service
}

func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.Views(r.Context(), chi.URLParam(r, "slug"))
	h.respond(w, r, n, err)
}

func (h Handler) Record(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.Record(r.Context(), chi.URLParam(r, "slug"))
	h.respond(w, r, n, err)
}

func (h Handler) respond(w http.ResponseWriter, r *http.Request, n int64, err error) {
	switch {
	case errors.Is(err, ErrInvalidSlug):
		common.JSONError(w, http.StatusBadRequest, "INVALID_SLUG", "slug must contain 1-100 of [a-z0-9-]", nil)
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("views lookup failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "views unavailable", nil)
	default:
		common.Data(w, http.StatusOK, map[string]int64{"views": n})
	}
}
