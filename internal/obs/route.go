package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routeLabelKey struct{}

// WithRoute pins the route label for r's context, overriding chi's pattern.
func WithRoute(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, routeLabelKey{}, label)
}

// Route returns the label used in metrics, spans and logs: a pinned label,
// else the chi pattern matched so far, else fallback. Outer middleware must
// call it after the router has run to see the full pattern.
func Route(r *http.Request, fallback string) string {
	ctx := r.Context()
	if v, ok := ctx.Value(routeLabelKey{}).(string); ok && v != "" {
		return v
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return fallback
}
