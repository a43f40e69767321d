package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCartMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCartMetrics(reg)

	m.IncSyncSuccess("cart-a")
	m.IncSyncSuccess("cart-a")
	m.IncSyncFailure("cart-a")
	m.IncBroadcast("cart-a", "published")
	m.IncBroadcast("cart-a", "stale")
	m.ObserveSyncDuration("cart-a", 120*time.Millisecond)

	if got := testutil.ToFloat64(m.syncSuccess.WithLabelValues("cart-a")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.syncFailure.WithLabelValues("cart-a")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.broadcasts.WithLabelValues("cart-a", "published")); got != 1 {
		t.Fatalf("expected 1 published broadcast, got %v", got)
	}
}

func TestCartMetricsNilSafe(t *testing.T) {
	var m *CartMetrics
	m.IncSyncSuccess("x")
	m.IncSyncFailure("x")
	m.IncBroadcast("x", "stale")
	m.ObserveSyncDuration("x", time.Second)

	unregistered := NewCartMetrics(nil)
	unregistered.IncSyncSuccess("x")
}

func TestNormalizeLabel(t *testing.T) {
	if got := normalizeLabel(""); got != "unknown" {
		t.Fatalf("expected unknown for empty label, got %q", got)
	}
	if got := normalizeLabel("cart-a"); got != "cart-a" {
		t.Fatalf("labels should pass through, got %q", got)
	}
}
