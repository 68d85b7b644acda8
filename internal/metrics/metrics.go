package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	TriageRuns           prometheus.Counter
	EmailsFetched        prometheus.Counter
	EmailsAnalyzed       prometheus.Counter
	EmailsSuppressed     prometheus.Counter
	NotificationsSent    prometheus.Counter
	NotificationFailures prometheus.Counter
	DigestsSent          prometheus.Counter
	DigestEmails         prometheus.Counter
	FeedbackEvents       prometheus.Counter
	TriageDuration       prometheus.Histogram
	ActiveAccounts       prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		TriageRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_sentinel_triage_runs_total",
			Help: "Total number of triage runs",
		}),
		EmailsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_sentinel_emails_fetched_total",
			Help: "Total number of emails fetched from monitored accounts",
		}),
		EmailsAnalyzed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_sentinel_emails_analyzed_total",
			Help: "Total number of emails scored by the classifier",
		}),
		EmailsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_sentinel_emails_suppressed_total",
			Help: "Total number of emails dropped by the deny list",
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_sentinel_notifications_sent_total",
			Help: "Total number of push notifications delivered",
		}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_sentinel_notification_failures_total",
			Help: "Total number of push notification attempts that failed",
		}),
		DigestsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_sentinel_digests_sent_total",
			Help: "Total number of digest notifications delivered",
		}),
		DigestEmails: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_sentinel_digest_emails_total",
			Help: "Total number of emails included in digests",
		}),
		FeedbackEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_sentinel_feedback_events_total",
			Help: "Total number of user feedback submissions",
		}),
		TriageDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "inbox_sentinel_triage_duration_seconds",
			Help:    "Time spent on one triage run",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "inbox_sentinel_active_accounts",
			Help: "Number of accounts currently being monitored",
		}),
	}
}
