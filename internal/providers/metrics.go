package providers

import (
	"sync"
	"time"
)

const latencyWindow = 100

// MetricsCollector counts calls to external APIs per service.
type MetricsCollector struct {
	requests  map[string]int64
	errors    map[string]int64
	tokens    map[string]int64
	latencies map[string][]time.Duration
	mu        sync.RWMutex
}

// ServiceMetrics is the snapshot for a single service.
type ServiceMetrics struct {
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	Tokens       int64   `json:"tokens,omitempty"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requests:  make(map[string]int64),
		errors:    make(map[string]int64),
		tokens:    make(map[string]int64),
		latencies: make(map[string][]time.Duration),
	}
}

// RecordRequest records a request
func (mc *MetricsCollector) RecordRequest(service string, success bool, latency time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.requests[service]++
	if !success {
		mc.errors[service]++
	}

	mc.latencies[service] = append(mc.latencies[service], latency)
	if len(mc.latencies[service]) > latencyWindow {
		mc.latencies[service] = mc.latencies[service][1:]
	}
}

// RecordTokens records token usage
func (mc *MetricsCollector) RecordTokens(service string, tokens int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.tokens[service] += int64(tokens)
}

// Snapshot returns a copy of the current metrics keyed by service.
func (mc *MetricsCollector) Snapshot() map[string]ServiceMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := make(map[string]ServiceMetrics, len(mc.requests))
	for service, count := range mc.requests {
		m := ServiceMetrics{
			Requests: count,
			Errors:   mc.errors[service],
			Tokens:   mc.tokens[service],
		}
		if latencies := mc.latencies[service]; len(latencies) > 0 {
			var total time.Duration
			for _, l := range latencies {
				total += l
			}
			m.AvgLatencyMs = float64(total.Milliseconds()) / float64(len(latencies))
		}
		snapshot[service] = m
	}
	return snapshot
}

// Reset resets all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.requests = make(map[string]int64)
	mc.errors = make(map[string]int64)
	mc.tokens = make(map[string]int64)
	mc.latencies = make(map[string][]time.Duration)
}
