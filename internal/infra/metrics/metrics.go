package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// NotificationsTotal counts dispatch attempts by rule and outcome.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobrancazap_notifications_total",
			Help: "Number of notification dispatch attempts by outcome",
		},
		[]string{"rule_id", "outcome"},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobrancazap_runs_total",
			Help: "Number of dispatch runs by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cobrancazap_run_duration_seconds",
			Help:    "Duration of dispatch runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cobrancazap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
)

func Init() {
	prometheus.MustRegister(NotificationsTotal, RunsTotal, RunDuration, HTTPRequests)
}
