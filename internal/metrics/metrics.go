package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	FetchCycles        prometheus.Counter
	MailboxesPrimed    prometheus.Counter
	CursorResets       prometheus.Counter
	MessagesIngested   prometheus.Counter
	FetchFailures      prometheus.Counter
	MessagesRouted     prometheus.Counter
	MessagesTriaged    prometheus.Counter
	MessagesFailed     prometheus.Counter
	ClassifierLatency  prometheus.Histogram
	PendingMessages    prometheus.Gauge
	EnabledDepartments prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		FetchCycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inteliroute_fetch_cycles_total",
			Help: "Total number of fetch worker scans over due mailboxes",
		}),
		MailboxesPrimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inteliroute_mailboxes_primed_total",
			Help: "Total number of mailbox cursor priming fetches",
		}),
		CursorResets: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inteliroute_cursor_resets_total",
			Help: "Total number of expired-cursor re-primes",
		}),
		MessagesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inteliroute_messages_ingested_total",
			Help: "Total number of messages stored by the fetch worker",
		}),
		FetchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inteliroute_fetch_failures_total",
			Help: "Total number of per-mailbox fetch failures",
		}),
		MessagesRouted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inteliroute_messages_routed_total",
			Help: "Total number of messages forwarded to a department",
		}),
		MessagesTriaged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inteliroute_messages_triaged_total",
			Help: "Total number of messages sent to manual triage",
		}),
		MessagesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inteliroute_messages_failed_total",
			Help: "Total number of messages whose routing attempt failed",
		}),
		ClassifierLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "inteliroute_classifier_duration_seconds",
			Help:    "Time spent calling the department classifier",
			Buckets: prometheus.DefBuckets,
		}),
		PendingMessages: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "inteliroute_pending_messages",
			Help: "Number of messages currently awaiting routing",
		}),
		EnabledDepartments: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "inteliroute_enabled_departments",
			Help: "Number of enabled departments across all tenants",
		}),
	}
}
