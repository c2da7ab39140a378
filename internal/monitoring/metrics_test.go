package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoOpMetricsCollector(t *testing.T) {
	collector := NoOpMetricsCollector{}
	tags := map[string]string{"test": "value"}

	collector.IncrementCounter("c", tags)
	collector.IncrementCounterBy("c", 5, tags)
	collector.SetGauge("g", 42.5, tags)
	collector.RecordTiming("t", time.Millisecond, tags)
	assert.NoError(t, collector.Flush())
}

func TestInMemoryMetricsCollector(t *testing.T) {
	collector := NewInMemoryMetricsCollector()
	tags := map[string]string{"operation": "save", "location": "file"}

	collector.IncrementCounter("ops", tags)
	collector.IncrementCounterBy("ops", 4, tags)
	collector.IncrementCounter("ops", map[string]string{"operation": "load"})
	collector.SetGauge("entries", 3, nil)
	collector.RecordTiming("latency", 2*time.Millisecond, tags)
	collector.RecordTiming("latency", 3*time.Millisecond, tags)

	assert.Equal(t, int64(5), collector.Counter("ops", tags))
	assert.Equal(t, int64(6), collector.CounterTotal("ops"))
	assert.Equal(t, 3.0, collector.Gauge("entries", nil))
	assert.Equal(t, []time.Duration{2 * time.Millisecond, 3 * time.Millisecond}, collector.Timings("latency", tags))

	collector.Reset()
	assert.Zero(t, collector.CounterTotal("ops"))
}

func TestMetricKeyIsOrderIndependent(t *testing.T) {
	a := metricKey("m", map[string]string{"b": "2", "a": "1"})
	b := metricKey("m", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, "m,a=1,b=2", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "m", metricKey("m", nil))
}
