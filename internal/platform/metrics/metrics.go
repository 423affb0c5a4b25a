// Package metrics collects and exposes Prometheus metrics for account and
// profile operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "account_lifecycle"

// Recorder is implemented by metric sinks used from the service layer.
type Recorder interface {
	RecordDeletion(outcome string, duration time.Duration)
	RecordStepFailure(step string)
	RecordLogout(success bool)
	RecordProfileOp(op, result string)
	RecordRateLimited(route string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	deletions        *prometheus.CounterVec
	deletionDuration prometheus.Histogram
	stepFailures     *prometheus.CounterVec
	logouts          *prometheus.CounterVec
	profileOps       *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_deletions_total",
			Help:      "Account deletion attempts by outcome.",
		}, []string{"outcome"}),
		deletionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "account_deletion_duration_seconds",
			Help:      "Wall time of account deletion attempts.",
			Buckets:   prometheus.DefBuckets,
		}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_deletion_step_failures_total",
			Help:      "Failures reported by account deletion steps.",
		}, []string{"step"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Logout attempts by result.",
		}, []string{"result"}),
		profileOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_operations_total",
			Help:      "Profile operations by operation and result.",
		}, []string{"op", "result"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-user rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.deletions,
		c.deletionDuration,
		c.stepFailures,
		c.logouts,
		c.profileOps,
		c.rateLimited,
	)

	return c
}

// RecordDeletion counts a finished deletion attempt. outcome is "success" or a result code.
func (c *Collector) RecordDeletion(outcome string, duration time.Duration) {
	c.deletions.WithLabelValues(outcome).Inc()
	c.deletionDuration.Observe(duration.Seconds())
}

// RecordStepFailure counts a failure reported for a deletion step.
func (c *Collector) RecordStepFailure(step string) {
	c.stepFailures.WithLabelValues(step).Inc()
}

// RecordLogout counts a logout attempt.
func (c *Collector) RecordLogout(success bool) {
	c.logouts.WithLabelValues(resultLabel(success)).Inc()
}

// RecordProfileOp counts a profile operation.
func (c *Collector) RecordProfileOp(op, result string) {
	c.profileOps.WithLabelValues(op, result).Inc()
}

// RecordRateLimited counts a request rejected by the rate limiter.
func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Handler returns the HTTP handler serving gatherer for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordDeletion(string, time.Duration) {}
func (Nop) RecordStepFailure(string)             {}
func (Nop) RecordLogout(bool)                    {}
func (Nop) RecordProfileOp(string, string)       {}
func (Nop) RecordRateLimited(string)             {}

// Compile-time interface checks
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
