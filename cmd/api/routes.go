package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/donkicalc-api/internal/health"
	"github.com/noah-isme/donkicalc-api/internal/obs"
	"github.com/noah-isme/donkicalc-api/internal/queue"
	"github.com/noah-isme/donkicalc-api/internal/quote"
	"github.com/noah-isme/donkicalc-api/internal/ratelimit"
	"github.com/noah-isme/donkicalc-api/internal/rates"
	"github.com/noah-isme/donkicalc-api/internal/security"
	"github.com/noah-isme/donkicalc-api/internal/views"
)

type routes struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	Headers        security.Headers
	BodyLimit      security.BodyLimit
	CronAuth       security.CronAuth
	RateLimit      ratelimit.Handler
	Metrics        *obs.HTTPMetrics
	Tracing        bool
	Pprof          http.Handler

	Health health.Handler
	Rates  rates.Handler
	Quote  *quote.Handler
	Views  views.Handler
	Queue  *queue.AdminHandler
}

func (rt routes) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if rt.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if rt.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: rt.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: rt.Logger}.Middleware)
	r.Use(rt.Headers.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(rt.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	if rt.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if rt.Pprof != nil {
		r.Mount("/debug/pprof", rt.Pprof)
	}
	r.Get("/health/live", rt.Health.Live)
	r.Get("/health/ready", rt.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.With(rt.RateLimit.Middleware).Get("/rates", rt.Rates.Latest)

		v.Group(func(calc chi.Router) {
			calc.Use(rt.BodyLimit.Middleware)
			calc.Post("/calculate", rt.Quote.Calculate)
			calc.Get("/tools", rt.Quote.ListTools)
			calc.Post("/tools/{kind}", rt.Quote.RunTool)
		})

		v.Route("/views/{slug}", func(vw chi.Router) {
			vw.Use(rt.RateLimit.Middleware)
			vw.Get("/", rt.Views.Get)
			vw.Post("/", rt.Views.Record)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(rt.CronAuth.Middleware)
			admin.Use(rt.BodyLimit.Middleware)
			admin.Post("/rates/refresh", rt.Rates.Refresh)
			if rt.Queue != nil {
				admin.Get("/queue", rt.Queue.Stats)
				admin.Get("/queue/archived", rt.Queue.ListArchived)
				admin.Post("/queue/archived/replay", rt.Queue.ReplayArchived)
			}
		})
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
