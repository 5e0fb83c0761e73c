package upstream

import (
	"sync/atomic"
	"time"
)

// Metrics tracks outbound service call metrics
type Metrics struct {
	upstreamCalls   int64
	upstreamErrors  int64
	upstreamLatency int64 // Total latency in nanoseconds
	generationCalls int64
	buildCalls      int64
	mirrorCalls     int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the current metrics snapshot
func GetMetrics() Metrics {
	return Metrics{
		upstreamCalls:   atomic.LoadInt64(&globalMetrics.upstreamCalls),
		upstreamErrors:  atomic.LoadInt64(&globalMetrics.upstreamErrors),
		upstreamLatency: atomic.LoadInt64(&globalMetrics.upstreamLatency),
		generationCalls: atomic.LoadInt64(&globalMetrics.generationCalls),
		buildCalls:      atomic.LoadInt64(&globalMetrics.buildCalls),
		mirrorCalls:     atomic.LoadInt64(&globalMetrics.mirrorCalls),
	}
}

// ResetMetrics resets all metrics (useful for testing)
func ResetMetrics() {
	atomic.StoreInt64(&globalMetrics.upstreamCalls, 0)
	atomic.StoreInt64(&globalMetrics.upstreamErrors, 0)
	atomic.StoreInt64(&globalMetrics.upstreamLatency, 0)
	atomic.StoreInt64(&globalMetrics.generationCalls, 0)
	atomic.StoreInt64(&globalMetrics.buildCalls, 0)
	atomic.StoreInt64(&globalMetrics.mirrorCalls, 0)
}

func recordUpstreamCall(duration time.Duration, err error) {
	atomic.AddInt64(&globalMetrics.upstreamCalls, 1)
	atomic.AddInt64(&globalMetrics.upstreamLatency, duration.Nanoseconds())
	if err != nil {
		atomic.AddInt64(&globalMetrics.upstreamErrors, 1)
	}
}

func recordGenerationCall() { atomic.AddInt64(&globalMetrics.generationCalls, 1) }
func recordBuildCall()      { atomic.AddInt64(&globalMetrics.buildCalls, 1) }
func recordMirrorCall()     { atomic.AddInt64(&globalMetrics.mirrorCalls, 1) }

// AverageUpstreamLatency returns the average latency in milliseconds
func (m Metrics) AverageUpstreamLatency() float64 {
	if m.upstreamCalls == 0 {
		return 0
	}
	avgNs := float64(m.upstreamLatency) / float64(m.upstreamCalls)
	return avgNs / 1e6
}

// UpstreamErrorRate returns the error rate as a percentage
func (m Metrics) UpstreamErrorRate() float64 {
	if m.upstreamCalls == 0 {
		return 0
	}
	return float64(m.upstreamErrors) / float64(m.upstreamCalls) * 100
}

// Summary flattens the counters for the health endpoint.
func (m Metrics) Summary() map[string]any {
	return map[string]any{
		"upstream_calls":     m.upstreamCalls,
		"upstream_errors":    m.upstreamErrors,
		"avg_latency_ms":     m.AverageUpstreamLatency(),
		"error_rate_percent": m.UpstreamErrorRate(),
		"generation_calls":   m.generationCalls,
		"build_calls":        m.buildCalls,
		"mirror_calls":       m.mirrorCalls,
	}
}
