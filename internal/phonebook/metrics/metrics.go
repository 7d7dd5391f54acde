// Package metrics exposes Prometheus instrumentation for search, caching and
// spam reporting. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search kinds.
const (
	KindName  = "name"
	KindPhone = "phone"
)

// Outcome labels.
const (
	OutcomeOK         = "ok"
	OutcomeCached     = "cached"
	OutcomeNotFound   = "not_found"
	OutcomeInvalid    = "invalid"
	OutcomeDuplicate  = "duplicate"
	OutcomeError      = "error"
	CacheResultHit    = "hit"
	CacheResultMiss   = "miss"
	CacheResultError  = "error"
	CacheResultBypass = "bypass"
)

// Metrics holds the phonebook collectors.
type Metrics struct {
	// Result cache probes by kind and result
	CacheLookups *prometheus.CounterVec

	// Global cache flushes by trigger
	CacheFlushes *prometheus.CounterVec

	// Searches by kind and outcome
	Searches *prometheus.CounterVec

	SearchLatency *prometheus.HistogramVec

	// Spam reports by outcome
	SpamReports *prometheus.CounterVec
}

// New creates and registers all collectors on reg.
// Pass prometheus.DefaultRegisterer for process-wide metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phonebook_cache_lookups_total",
			Help: "Result cache lookups by search kind and result",
		}, []string{"kind", "result"}),

		CacheFlushes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phonebook_cache_flushes_total",
			Help: "Full result cache flushes by trigger",
		}, []string{"trigger"}), // trigger: "spam_report", "delete_user", "import"

		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phonebook_searches_total",
			Help: "Searches by kind and outcome",
		}, []string{"kind", "outcome"}),

		SearchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phonebook_search_duration_seconds",
			Help:    "Duration of searches by kind, including cache hits",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind"}),

		SpamReports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phonebook_spam_reports_total",
			Help: "Spam report attempts by outcome",
		}, []string{"outcome"}),
	}
}

// IncrementCacheLookup records a cache probe result for a search kind.
func (m *Metrics) IncrementCacheLookup(kind, result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(kind, result).Inc()
	}
}

// IncrementCacheFlush records a full cache flush.
func (m *Metrics) IncrementCacheFlush(trigger string) {
	if m != nil {
		m.CacheFlushes.WithLabelValues(trigger).Inc()
	}
}

// ObserveSearch records a finished search.
func (m *Metrics) ObserveSearch(kind, outcome string, d time.Duration) {
	if m != nil {
		m.Searches.WithLabelValues(kind, outcome).Inc()
		m.SearchLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// IncrementSpamReport records a spam report attempt.
func (m *Metrics) IncrementSpamReport(outcome string) {
	if m != nil {
		m.SpamReports.WithLabelValues(outcome).Inc()
	}
}
