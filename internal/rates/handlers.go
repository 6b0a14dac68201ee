package rates

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/donkicalc-api/internal/common"
)

// RefreshEnqueuer schedules an asynchronous refresh and returns the job id.
type RefreshEnqueuer interface {
	EnqueueRefresh(ctx context.Context, requestedBy string) (string, error)
}

// Handler exposes the rate endpoints.
type Handler struct {
	Service  *Service
	Enqueuer RefreshEnqueuer
}

// Latest handles GET /api/v1/rates. It always answers 200; a missing rate is
// reported through the fallback flag.
func (h Handler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "rate service not configured", nil)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	common.JSON(w, http.StatusOK, h.Service.Latest(r.Context()))
}

// Refresh handles POST /api/v1/admin/rates/refresh. With a queue the refresh
// is deferred to the worker; without one it runs inline.
func (h Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "rate service not configured", nil)
		return
	}
	if h.Enqueuer != nil {
		requestedBy := "api"
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			requestedBy = "api:" + reqID
		}
		id, err := h.Enqueuer.EnqueueRefresh(r.Context(), requestedBy)
		if errors.Is(err, ErrRefreshPending) {
			common.Data(w, http.StatusAccepted, map[string]any{"queued": false, "pending": true})
			return
		}
		if err != nil {
			common.WriteError(w, common.NewAppError("ENQUEUE_FAILED", "could not schedule rate refresh", http.StatusServiceUnavailable, err))
			return
		}
		common.Data(w, http.StatusAccepted, map[string]any{"queued": true, "taskId": id})
		return
	}
	snap, err := h.Service.Refresh(r.Context())
	if errors.Is(err, ErrRefreshPending) {
		common.Data(w, http.StatusAccepted, map[string]any{"queued": false, "pending": true})
		return
	}
	if err != nil {
		common.WriteError(w, common.NewAppError("REFRESH_FAILED", "rate refresh failed", http.StatusInternalServerError, err))
		return
	}
	common.Data(w, http.StatusOK, snap)
}
