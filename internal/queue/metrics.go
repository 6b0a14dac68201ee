package queue

import "github.com/prometheus/client_golang/prometheus"

// Gauges refreshed whenever the admin stats endpoint inspects a queue.
var (
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "donkicalc",
		Subsystem: "jobs",
		Name:      "queue_depth",
		Help:      "Refresh tasks waiting to run (pending, scheduled and retry).",
	}, []string{"queue"})
	QueueArchivedSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "donkicalc",
		Subsystem: "jobs",
		Name:      "archived_tasks",
		Help:      "Refresh tasks archived after exhausting retries.",
	}, []string{"queue"})
)

func init() {
	prometheus.MustRegister(QueueDepth, QueueArchivedSize)
}
