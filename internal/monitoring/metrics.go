package monitoring

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metric names emitted by MetricsObservabilityHook.
const (
	MetricOperationStarted   = "savex.operation.started"
	MetricOperationSucceeded = "savex.operation.succeeded"
	MetricOperationFailed    = "savex.operation.failed"
	MetricOperationDuration  = "savex.operation.duration"
	MetricErrors             = "savex.errors"
	MetricBytesWritten       = "savex.bytes.written"
	MetricBytesRead          = "savex.bytes.read"
)

// MetricsCollector receives counters, gauges and timings.
type MetricsCollector interface {
	IncrementCounter(name string, tags map[string]string)
	IncrementCounterBy(name string, value int64, tags map[string]string)
	SetGauge(name string, value float64, tags map[string]string)
	RecordTiming(name string, duration time.Duration, tags map[string]string)
	Flush() error
}

type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) IncrementCounter(string, map[string]string) {}
func (NoOpMetricsCollector) IncrementCounterBy(string, int64, map[string]string) {}
func (NoOpMetricsCollector) SetGauge(string, float64, map[string]string) {}
func (NoOpMetricsCollector) RecordTiming(string, time.Duration, map[string]string) {}
func (NoOpMetricsCollector) Flush() error { return nil }

// InMemoryMetricsCollector keeps everything in maps, for tests and the CLI.
type InMemoryMetricsCollector struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string][]time.Duration
}

func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	m := &InMemoryMetricsCollector{}
	m.Reset()
	return m
}

func (m *InMemoryMetricsCollector) IncrementCounter(name string, tags map[string]string) {
	m.IncrementCounterBy(name, 1, tags)
}

func (m *InMemoryMetricsCollector) IncrementCounterBy(name string, value int64, tags map[string]string) {
	key := metricKey(name, tags)
	m.mu.Lock()
	m.counters[key] += value
	m.mu.Unlock()
}

func (m *InMemoryMetricsCollector) SetGauge(name string, value float64, tags map[string]string) {
	key := metricKey(name, tags)
	m.mu.Lock()
	m.gauges[key] = value
	m.mu.Unlock()
}

func (m *InMemoryMetricsCollector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	key := metricKey(name, tags)
	m.mu.Lock()
	m.timings[key] = append(m.timings[key], duration)
	m.mu.Unlock()
}

func (m *InMemoryMetricsCollector) Flush() error { return nil }

func (m *InMemoryMetricsCollector) Counter(name string, tags map[string]string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[metricKey(name, tags)]
}

// CounterTotal sums a counter across every tag combination.
func (m *InMemoryMetricsCollector) CounterTotal(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for key, v := range m.counters {
		if key == name || strings.HasPrefix(key, name+",") {
			total += v
		}
	}
	return total
}

func (m *InMemoryMetricsCollector) Gauge(name string, tags map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[metricKey(name, tags)]
}

func (m *InMemoryMetricsCollector) Timings(name string, tags map[string]string) []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.timings[metricKey(name, tags)]...)
}

func (m *InMemoryMetricsCollector) Reset() {
	m.mu.Lock()
	m.counters = make(map[string]int64)
	m.gauges = make(map[string]float64)
	m.timings = make(map[string][]time.Duration)
	m.mu.Unlock()
}

// metricKey renders name and tags sorted by tag name: "name,a=1,b=2".
func metricKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString(",")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(tags[k])
	}
	return b.String()
}
