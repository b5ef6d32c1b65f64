package gateway

import (
	"sync"

	"github.com/montanaflynn/stats"
)

// LatencyTracker keeps the last N chart load durations (milliseconds) in a
// circular buffer and reports percentiles over them. Thread-safe.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64
	pos     int
	count   int
}

// NewLatencyTracker creates a tracker holding the last capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LatencyTracker{samples: make([]float64, capacity)}
}

// Record adds one sample in milliseconds.
func (lt *LatencyTracker) Record(ms float64) {
	lt.mu.Lock()
	lt.samples[lt.pos] = ms
	lt.pos = (lt.pos + 1) % len(lt.samples)
	if lt.count < len(lt.samples) {
		lt.count++
	}
	lt.mu.Unlock()
}

// Percentiles returns p50, p95 and p99. An empty tracker reports zeros.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	lt.mu.Lock()
	data := make(stats.Float64Data, lt.count)
	copy(data, lt.samples[:lt.count])
	lt.mu.Unlock()

	if len(data) == 0 {
		return 0, 0, 0
	}
	return percentile(data, 50), percentile(data, 95), percentile(data, 99)
}

// Count returns the number of samples held (up to capacity).
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.count
}

// percentile falls back to the maximum when the sample is too small for the
// requested rank.
func percentile(data stats.Float64Data, p float64) float64 {
	v, err := stats.Percentile(data, p)
	if err != nil {
		v, _ = stats.Max(data)
	}
	return v
}
