package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Poller metrics
	pollsTotal        *prometheus.CounterVec
	pollErrorsTotal   *prometheus.CounterVec
	pollsSkippedTotal *prometheus.CounterVec
	pollDuration      *prometheus.HistogramVec

	// Lifecycle metrics
	transitionsTotal *prometheus.CounterVec

	// Notification metrics
	dedupHitsTotal     *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec

	// Cache metrics
	cacheKeysTotal   prometheus.Counter
	cacheErrorsTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initPollerMetrics(reg)
	s.initLifecycleMetrics(reg)
	s.initCacheMetrics(reg)
	return s
}

func (s *PrometheusSink) initPollerMetrics(reg prometheus.Registerer) {
	s.pollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycled_poller_polls_total",
		Help: "Total number of poll invocations started.",
	}, []string{"poller"})

	s.pollErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycled_poller_errors_total",
		Help: "Total number of poll invocations that returned an error.",
	}, []string{"poller"})

	s.pollsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycled_poller_skipped_total",
		Help: "Total number of ticks skipped because a poll was still in flight.",
	}, []string{"poller"})

	s.pollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lifecycled_poller_duration_seconds",
		Help:    "Duration of each poll invocation in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"poller"})

	s.register(reg, s.pollsTotal, "lifecycled_poller_polls_total")
	s.register(reg, s.pollErrorsTotal, "lifecycled_poller_errors_total")
	s.register(reg, s.pollsSkippedTotal, "lifecycled_poller_skipped_total")
	s.register(reg, s.pollDuration, "lifecycled_poller_duration_seconds")
}

func (s *PrometheusSink) initLifecycleMetrics(reg prometheus.Registerer) {
	s.transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycled_transitions_applied_total",
		Help: "Total number of lifecycle transitions applied by the authoritative store.",
	}, []string{"scheduler"})

	s.dedupHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycled_notification_dedup_hits_total",
		Help: "Total number of notification candidates suppressed by deduplication.",
	}, []string{"subtype"})

	s.notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycled_notifications_inserted_total",
		Help: "Total number of notification rows inserted across all recipients.",
	}, []string{"category"})

	s.register(reg, s.transitionsTotal, "lifecycled_transitions_applied_total")
	s.register(reg, s.dedupHitsTotal, "lifecycled_notification_dedup_hits_total")
	s.register(reg, s.notificationsTotal, "lifecycled_notifications_inserted_total")
}

func (s *PrometheusSink) initCacheMetrics(reg prometheus.Registerer) {
	s.cacheKeysTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifecycled_cache_keys_invalidated_total",
		Help: "Total number of cache keys deleted by invalidation passes.",
	})
	s.cacheErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifecycled_cache_invalidation_errors_total",
		Help: "Total number of invalidation passes that hit at least one cache error.",
	})

	s.register(reg, s.cacheKeysTotal, "lifecycled_cache_keys_invalidated_total")
	s.register(reg, s.cacheErrorsTotal, "lifecycled_cache_invalidation_errors_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Poller metrics implementation

func (s *PrometheusSink) PollStarted(name string) {
	s.pollsTotal.WithLabelValues(name).Inc()
}

func (s *PrometheusSink) PollCompleted(name string, duration time.Duration, err error) {
	s.pollDuration.WithLabelValues(name).Observe(duration.Seconds())
	if err != nil {
		s.pollErrorsTotal.WithLabelValues(name).Inc()
	}
}

func (s *PrometheusSink) PollSkipped(name string) {
	s.pollsSkippedTotal.WithLabelValues(name).Inc()
}

// Lifecycle metrics implementation

func (s *PrometheusSink) TransitionsApplied(scheduler string, count int) {
	s.transitionsTotal.WithLabelValues(scheduler).Add(float64(count))
}

func (s *PrometheusSink) DedupHit(subtype string) {
	s.dedupHitsTotal.WithLabelValues(subtype).Inc()
}

func (s *PrometheusSink) NotificationsInserted(category string, count int) {
	s.notificationsTotal.WithLabelValues(category).Add(float64(count))
}

// Cache metrics implementation

func (s *PrometheusSink) CacheKeysInvalidated(count int) {
	s.cacheKeysTotal.Add(float64(count))
}

func (s *PrometheusSink) CacheInvalidationError() {
	s.cacheErrorsTotal.Inc()
}

// Compile-time interface assertions
var (
	_ Sink = (*PrometheusSink)(nil)
	_ Sink = (*NoopSink)(nil)
)
