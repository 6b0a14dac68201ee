package resilience

import "github.com/prometheus/client_golang/prometheus"

// Outbound breaker metrics, labelled by upstream target.
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "donkicalc",
		Subsystem: "outbound",
		Name:      "breaker_state",
		Help:      "Breaker position per upstream: 0 closed, 1 open, 2 half-open.",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donkicalc",
		Subsystem: "outbound",
		Name:      "breaker_transitions_total",
		Help:      "Breaker state changes per upstream.",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donkicalc",
		Subsystem: "outbound",
		Name:      "breaker_opened_total",
		Help:      "Times an upstream breaker tripped open.",
	}, []string{"target"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
