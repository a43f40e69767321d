package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records sync and broadcast activity for cart stores.
type CartMetrics struct {
	syncDuration *prometheus.HistogramVec
	syncSuccess  *prometheus.CounterVec
	syncFailure  *prometheus.CounterVec
	broadcasts   *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_sync_duration_seconds",
		Help:    "Duration of cart server-sync round trips in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"storage_key"})
	syncSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_success",
		Help: "Successful cart server-sync round trips.",
	}, []string{"storage_key"})
	syncFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_failure",
		Help: "Failed cart server-sync round trips.",
	}, []string{"storage_key"})
	broadcasts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_broadcast_events",
		Help: "Cart broadcast events by outcome (published, adopted, stale).",
	}, []string{"storage_key", "outcome"})
	reg.MustRegister(syncDuration, syncSuccess, syncFailure, broadcasts)
	return &CartMetrics{
		syncDuration: syncDuration,
		syncSuccess:  syncSuccess,
		syncFailure:  syncFailure,
		broadcasts:   broadcasts,
	}
}

// ObserveSyncDuration records how long a sync round trip took.
func (c *CartMetrics) ObserveSyncDuration(storageKey string, duration time.Duration) {
	if c == nil || c.syncDuration == nil {
		return
	}
	c.syncDuration.WithLabelValues(normalizeLabel(storageKey)).Observe(duration.Seconds())
}

// IncSyncSuccess increments the success counter for the storage key.
func (c *CartMetrics) IncSyncSuccess(storageKey string) {
	if c == nil || c.syncSuccess == nil {
		return
	}
	c.syncSuccess.WithLabelValues(normalizeLabel(storageKey)).Inc()
}

// IncSyncFailure increments the failure counter for the storage key.
func (c *CartMetrics) IncSyncFailure(storageKey string) {
	if c == nil || c.syncFailure == nil {
		return
	}
	c.syncFailure.WithLabelValues(normalizeLabel(storageKey)).Inc()
}

// IncBroadcast counts a broadcast event outcome: published, adopted or stale.
func (c *CartMetrics) IncBroadcast(storageKey, outcome string) {
	if c == nil || c.broadcasts == nil {
		return
	}
	c.broadcasts.WithLabelValues(normalizeLabel(storageKey), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
