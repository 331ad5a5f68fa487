package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram slot.
type MetricID uint16

const (
	// MetricTokenRequest counts identity-token requests sent to the provider.
	MetricTokenRequest MetricID = iota
	// MetricTokenFailure counts provider resolutions that carried an error.
	MetricTokenFailure
	// MetricTokenInvalidated counts explicit token invalidations.
	MetricTokenInvalidated
	// MetricAuthSuccess counts Setup calls that ended with a usable cookie.
	MetricAuthSuccess
	// MetricAuthFailure counts Setup calls that ended in failure.
	MetricAuthFailure
	// MetricTestModeBypass counts synthesized test-mode sessions.
	MetricTestModeBypass
	// MetricCookieCacheHit counts cookie-cache lookups that returned a cookie.
	MetricCookieCacheHit
	// MetricCookieCacheMiss counts cookie-cache lookups that found nothing.
	MetricCookieCacheMiss
	// MetricRequestSuccess counts data exchanges that produced a Response.
	MetricRequestSuccess
	// MetricRequestFailure counts data exchanges that produced a failure.
	MetricRequestFailure
	// MetricDispatchLaunched counts background dispatches started.
	MetricDispatchLaunched
	// MetricDispatchCompleted counts background dispatches that delivered
	// their terminal callback.
	MetricDispatchCompleted
	// MetricBytesSent accumulates POST body bytes written.
	MetricBytesSent
	// MetricBytesReceived accumulates response body bytes read.
	MetricBytesReceived
	// MetricRequestLatency is the round-trip latency histogram slot.
	MetricRequestLatency
	// MetricIDCount is the number of defined metric slots.
	MetricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config controls which parts of the metrics system are live.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds the counter array and the request-latency histogram.
// All methods are safe for concurrent use and are no-ops on a nil receiver
// or when the instance is disabled.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	histogram     metricHistogram
}

// Snapshot is a point-in-time deep copy of all metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// New creates a Metrics instance from cfg.
func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

// Enabled reports whether the instance records anything at all.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is live.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to the counter identified by id. Used for byte accumulators.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records one round-trip duration in the latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricRequestLatency {
		return
	}
	b := bucketIndex(d)
	atomic.AddUint64(&m.histogram.buckets[b], 1)
}

// Value returns the current value of the counter identified by id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a deep copy of all counters and, when live, the
// latency histogram.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(MetricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histogram.buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
