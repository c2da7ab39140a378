package savex

import (
	"io"

	"github.com/hengadev/savex/internal/monitoring"
)

// Logger is the engine's structured logger. Its info, warning and error
// channels are toggled independently.
type Logger = monitoring.Logger

type (
	LoggerConfig = monitoring.LoggerConfig
	LogChannels  = monitoring.Channels
	LogFormat    = monitoring.LogFormat
)

const (
	LogFormatJSON    = monitoring.FormatJSON
	LogFormatText    = monitoring.FormatText
	LogFormatConsole = monitoring.FormatConsole
)

func NewLogger(config LoggerConfig) *Logger { return monitoring.NewLogger(config) }

// NewConsoleLogger logs every channel except debug to w in console format.
func NewConsoleLogger(w io.Writer) *Logger {
	return monitoring.NewLogger(monitoring.LoggerConfig{
		Channels:  monitoring.AllChannels(),
		Format:    monitoring.FormatConsole,
		Output:    w,
		Component: "engine",
	})
}

// Operation identifies one archive call in hook callbacks.
type Operation = monitoring.Operation

// ObservabilityHook is notified around every archive operation.
type ObservabilityHook = monitoring.ObservabilityHook

// MetricsCollector receives the counters and timings of archive operations.
type MetricsCollector = monitoring.MetricsCollector

type (
	NoOpObservabilityHook    = monitoring.NoOpObservabilityHook
	NoOpMetricsCollector     = monitoring.NoOpMetricsCollector
	InMemoryMetricsCollector = monitoring.InMemoryMetricsCollector
)

func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return monitoring.NewInMemoryMetricsCollector()
}

// Metric names.
const (
	MetricOperationStarted   = monitoring.MetricOperationStarted
	MetricOperationSucceeded = monitoring.MetricOperationSucceeded
	MetricOperationFailed    = monitoring.MetricOperationFailed
	MetricOperationDuration  = monitoring.MetricOperationDuration
	MetricErrors             = monitoring.MetricErrors
	MetricBytesWritten       = monitoring.MetricBytesWritten
	MetricBytesRead          = monitoring.MetricBytesRead
)
