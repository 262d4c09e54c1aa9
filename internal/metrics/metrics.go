// Package metrics exposes Prometheus counters for the notification pipelines.
package metrics

import (
	"net/http"

	"github.com/mikey/hr-notifier/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline outcomes in Prometheus counters.
// It satisfies core.MetricsRecorder and cache.Recorder.
type Collector struct {
	sent             *prometheus.CounterVec
	skippedDuplicate *prometheus.CounterVec
	failed           *prometheus.CounterVec
	dropped          *prometheus.CounterVec
	sourceFailures   prometheus.Counter
	staleServes      prometheus.Counter
}

// NewCollector creates a new Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hr_notifier_emails_sent_total",
			Help: "Notification emails accepted by the mail server",
		}, []string{"type"}),
		skippedDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hr_notifier_emails_skipped_duplicate_total",
			Help: "Notification emails skipped because they were already sent today",
		}, []string{"type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hr_notifier_emails_failed_total",
			Help: "Notification emails that could not be sent or recorded",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hr_notifier_records_dropped_total",
			Help: "Employee records excluded from a run, by reason",
		}, []string{"reason"}),
		sourceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hr_notifier_source_fetch_failures_total",
			Help: "Failed fetches from the record source",
		}),
		staleServes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hr_notifier_stale_snapshot_serves_total",
			Help: "Requests served from an expired snapshot after a source failure",
		}),
	}

	reg.MustRegister(
		c.sent,
		c.skippedDuplicate,
		c.failed,
		c.dropped,
		c.sourceFailures,
		c.staleServes,
	)

	return c
}

// RecordSent counts one sent email
func (c *Collector) RecordSent(t core.EvaluationType) {
	c.sent.WithLabelValues(string(t)).Inc()
}

// RecordSkippedDuplicate counts one email suppressed by the duplicate guard
func (c *Collector) RecordSkippedDuplicate(t core.EvaluationType) {
	c.skippedDuplicate.WithLabelValues(string(t)).Inc()
}

// RecordFailed counts one failed email
func (c *Collector) RecordFailed(t core.EvaluationType) {
	c.failed.WithLabelValues(string(t)).Inc()
}

// RecordDropped counts one record excluded by the eligibility engine
func (c *Collector) RecordDropped(reason core.SkipReason) {
	c.dropped.WithLabelValues(string(reason)).Inc()
}

// RecordSourceFailure counts one failed source refresh
func (c *Collector) RecordSourceFailure() {
	c.sourceFailures.Inc()
}

// RecordStaleServe counts one stale snapshot served after a failure
func (c *Collector) RecordStaleServe() {
	c.staleServes.Inc()
}

// Handler returns the HTTP handler for Prometheus scrapes
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
