package obs

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CalculationsTotal counts discount calculations by policy and toggles.
	CalculationsTotal *prometheus.CounterVec
	// ToolRunsTotal counts tool preview runs by kind and outcome.
	ToolRunsTotal *prometheus.CounterVec
	// RateRefreshTotal counts rate refreshes by the source that won.
	RateRefreshTotal *prometheus.CounterVec
	// RateFetchDuration records upstream rate lookups in milliseconds.
	RateFetchDuration *prometheus.HistogramVec
	// RateLookupTotal counts rate reads by where they were served from.
	RateLookupTotal *prometheus.CounterVec
	// PageViewsTotal counts recorded page views.
	PageViewsTotal prometheus.Counter
	// JobsProcessedTotal counts background job outcomes.
	JobsProcessedTotal *prometheus.CounterVec
	// DBQueryDuration records Postgres statement latency by SQL verb.
	DBQueryDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Count of discount calculations.",
		}, []string{"policy", "tax_free", "coupon"})
		ToolRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_runs_total",
			Help:      "Count of tool preview runs by outcome.",
		}, []string{"kind", "result"})
		RateRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_refresh_total",
			Help:      "Count of exchange rate refreshes by source.",
		}, []string{"source"})
		RateFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_fetch_duration_ms",
			Help:      "Latency of upstream exchange rate lookups in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})
		RateLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_lookup_total",
			Help:      "Count of exchange rate reads by serving layer.",
		}, []string{"source"})
		PageViewsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_views_total",
			Help:      "Total number of recorded page views.",
		})
		JobsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Count of background jobs by type and outcome.",
		}, []string{"type", "result"})
		DBQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_ms",
			Help:      "Postgres statement latency in milliseconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"operation", "result"})

		mustRegisterCollector(reg, CalculationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CalculationsTotal = v
			}
		})
		mustRegisterCollector(reg, ToolRunsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ToolRunsTotal = v
			}
		})
		mustRegisterCollector(reg, RateRefreshTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RateRefreshTotal = v
			}
		})
		mustRegisterCollector(reg, RateFetchDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				RateFetchDuration = v
			}
		})
		mustRegisterCollector(reg, RateLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RateLookupTotal = v
			}
		})
		mustRegisterCollector(reg, PageViewsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PageViewsTotal = v
			}
		})
		mustRegisterCollector(reg, JobsProcessedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				JobsProcessedTotal = v
			}
		})
		mustRegisterCollector(reg, DBQueryDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				DBQueryDuration = v
			}
		})
	})
}

// ObserveCalculation increments CalculationsTotal when metrics are registered.
func ObserveCalculation(policy string, taxFree, coupon bool) {
	if CalculationsTotal == nil {
		return
	}
	CalculationsTotal.WithLabelValues(policy, strconv.FormatBool(taxFree), strconv.FormatBool(coupon)).Inc()
}

// ObserveToolRun increments ToolRunsTotal when metrics are registered.
func ObserveToolRun(kind string, err error) {
	if ToolRunsTotal == nil {
		return
	}
	ToolRunsTotal.WithLabelValues(kind, resultLabel(err)).Inc()
}

// ObserveRateRefresh increments RateRefreshTotal when metrics are registered.
func ObserveRateRefresh(source string) {
	if RateRefreshTotal == nil {
		return
	}
	RateRefreshTotal.WithLabelValues(source).Inc()
}

// ObserveRateFetch records an upstream lookup latency.
func ObserveRateFetch(ms float64, err error) {
	if RateFetchDuration == nil {
		return
	}
	RateFetchDuration.WithLabelValues(resultLabel(err)).Observe(ms)
}

// ObserveRateLookup increments RateLookupTotal when metrics are registered.
func ObserveRateLookup(source string) {
	if RateLookupTotal == nil {
		return
	}
	RateLookupTotal.WithLabelValues(source).Inc()
}

// ObservePageView increments PageViewsTotal when metrics are registered.
func ObservePageView() {
	if PageViewsTotal == nil {
		return
	}
	PageViewsTotal.Inc()
}

// ObserveJob increments JobsProcessedTotal when metrics are registered.
func ObserveJob(taskType string, err error) {
	if JobsProcessedTotal == nil {
		return
	}
	JobsProcessedTotal.WithLabelValues(taskType, resultLabel(err)).Inc()
}

// ObserveDBQuery records a statement latency.
func ObserveDBQuery(op string, ms float64, err error) {
	if DBQueryDuration == nil {
		return
	}
	DBQueryDuration.WithLabelValues(op, resultLabel(err)).Observe(ms)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
