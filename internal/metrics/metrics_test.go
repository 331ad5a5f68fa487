package metrics

import (
	"testing"
	"time"
)

func TestCountersAndAccumulators(t *testing.T) {
	m := New(Config{Enabled: true})

	m.Inc(MetricAuthSuccess)
	m.Inc(MetricAuthSuccess)
	m.Add(MetricBytesSent, 512)

	if got := m.Value(MetricAuthSuccess); got != 2 {
		t.Fatalf("auth-success = %d, want 2", got)
	}
	if got := m.Value(MetricBytesSent); got != 512 {
		t.Fatalf("bytes-sent = %d, want 512", got)
	}
	if got := m.Value(MetricIDCount + 1); got != 0 {
		t.Fatalf("out-of-range ID must read 0, got %d", got)
	}
}

func TestDisabledInstanceIsNoOp(t *testing.T) {
	m := New(Config{})

	m.Inc(MetricRequestSuccess)
	m.Observe(MetricRequestLatency, time.Second)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatalf("disabled instance reports enabled")
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot not empty: %+v", snap)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricRequestSuccess) // must not panic
	if nilMetrics.Value(MetricRequestSuccess) != 0 {
		t.Fatalf("nil receiver must read 0")
	}
}

func TestLatencyHistogramBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})

	m.Observe(MetricRequestLatency, 3*time.Millisecond)   // bucket 0
	m.Observe(MetricRequestLatency, 80*time.Millisecond)  // bucket 4
	m.Observe(MetricRequestLatency, 2*time.Second)        // bucket 7
	m.Observe(MetricAuthSuccess, 80*time.Millisecond)     // wrong slot, dropped

	buckets := m.Snapshot().Histograms[MetricRequestLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("bucket count = %d", len(buckets))
	}
	if buckets[0] != 1 || buckets[4] != 1 || buckets[7] != 1 {
		t.Fatalf("buckets = %v", buckets)
	}
	var total uint64
	for _, b := range buckets {
		total += b
	}
	if total != 3 {
		t.Fatalf("total observations = %d, want 3", total)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})
	m.Inc(MetricTokenRequest)

	snap := m.Snapshot()
	m.Inc(MetricTokenRequest)

	if snap.Counters[MetricTokenRequest] != 1 {
		t.Fatalf("snapshot moved after the fact: %d", snap.Counters[MetricTokenRequest])
	}
}
