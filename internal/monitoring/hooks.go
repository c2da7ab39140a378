package monitoring

import (
	"context"
	"time"
)

// Operation identifies one archive call.
type Operation struct {
	Name     string
	Location string
	Path     string
	Key      string
}

func (o Operation) tags() map[string]string {
	return map[string]string{"operation": o.Name, "location": o.Location}
}

// ObservabilityHook is notified around every archive operation.
type ObservabilityHook interface {
	OnOperationStart(ctx context.Context, op Operation)
	OnOperationComplete(ctx context.Context, op Operation, duration time.Duration, err error)
	OnError(ctx context.Context, op Operation, err error)
}

type NoOpObservabilityHook struct{}

func (NoOpObservabilityHook) OnOperationStart(context.Context, Operation) {}
func (NoOpObservabilityHook) OnOperationComplete(context.Context, Operation, time.Duration, error) {
}
func (NoOpObservabilityHook) OnError(context.Context, Operation, error) {}

// LoggingObservabilityHook forwards completions to a Logger.
type LoggingObservabilityHook struct {
	logger *Logger
}

func NewLoggingObservabilityHook(logger *Logger) *LoggingObservabilityHook {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &LoggingObservabilityHook{logger: logger}
}

func (h *LoggingObservabilityHook) OnOperationStart(context.Context, Operation) {}

func (h *LoggingObservabilityHook) OnOperationComplete(ctx context.Context, op Operation, duration time.Duration, err error) {
	h.logger.LogOperation(ctx, op, duration, err)
}

func (h *LoggingObservabilityHook) OnError(context.Context, Operation, error) {}

// MetricsObservabilityHook turns operations into counters and timings.
type MetricsObservabilityHook struct {
	collector MetricsCollector
}

func NewMetricsObservabilityHook(collector MetricsCollector) *MetricsObservabilityHook {
	if collector == nil {
		collector = NoOpMetricsCollector{}
	}
	return &MetricsObservabilityHook{collector: collector}
}

func (h *MetricsObservabilityHook) OnOperationStart(_ context.Context, op Operation) {
	h.collector.IncrementCounter(MetricOperationStarted, op.tags())
}

func (h *MetricsObservabilityHook) OnOperationComplete(_ context.Context, op Operation, duration time.Duration, err error) {
	tags := op.tags()
	if err != nil {
		tags["status"] = "error"
		h.collector.IncrementCounter(MetricOperationFailed, tags)
	} else {
		tags["status"] = "success"
		h.collector.IncrementCounter(MetricOperationSucceeded, tags)
	}
	h.collector.RecordTiming(MetricOperationDuration, duration, tags)
}

func (h *MetricsObservabilityHook) OnError(_ context.Context, op Operation, err error) {
	tags := op.tags()
	tags["error_class"] = ErrorClass(err)
	h.collector.IncrementCounter(MetricErrors, tags)
}

// CompositeObservabilityHook fans out to several hooks in order.
type CompositeObservabilityHook struct {
	hooks []ObservabilityHook
}

func NewCompositeObservabilityHook(hooks ...ObservabilityHook) *CompositeObservabilityHook {
	return &CompositeObservabilityHook{hooks: hooks}
}

func (c *CompositeObservabilityHook) OnOperationStart(ctx context.Context, op Operation) {
	for _, hook := range c.hooks {
		hook.OnOperationStart(ctx, op)
	}
}

func (c *CompositeObservabilityHook) OnOperationComplete(ctx context.Context, op Operation, duration time.Duration, err error) {
	for _, hook := range c.hooks {
		hook.OnOperationComplete(ctx, op, duration, err)
	}
}

func (c *CompositeObservabilityHook) OnError(ctx context.Context, op Operation, err error) {
	for _, hook := range c.hooks {
		hook.OnError(ctx, op, err)
	}
}

// Observe runs fn between the start and completion callbacks of hook.
func Observe(ctx context.Context, hook ObservabilityHook, op Operation, fn func() error) error {
	start := time.Now()
	hook.OnOperationStart(ctx, op)
	err := fn()
	if err != nil {
		hook.OnError(ctx, op, err)
	}
	hook.OnOperationComplete(ctx, op, time.Since(start), err)
	return err
}
