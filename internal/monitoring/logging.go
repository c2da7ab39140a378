// Package monitoring provides the engine's logger and the observability
// hooks and metrics collectors wrapped around every archive operation.
package monitoring

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogFormat selects the slog handler used for output.
type LogFormat int

const (
	FormatJSON LogFormat = iota
	FormatText
	FormatConsole
)

func ParseLogFormat(s string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	case "console":
		return FormatConsole, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format %q", s)
}

// Channels toggles each severity independently. Debug output is only
// produced when Debug is set.
type Channels struct {
	Debug   bool
	Info    bool
	Warning bool
	Error   bool
}

// AllChannels enables info, warning and error output.
func AllChannels() Channels {
	return Channels{Info: true, Warning: true, Error: true}
}

// LoggerConfig configures a Logger.
type LoggerConfig struct {
	Channels  Channels
	Format    LogFormat
	Output    io.Writer
	Component string
	Fields    map[string]any
}

// Logger is a slog backed logger whose channels can be switched on and off
// at construction time.
type Logger struct {
	logger   *slog.Logger
	channels Channels
}

func NewLogger(config LoggerConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	var handler slog.Handler
	switch config.Format {
	case FormatText:
		handler = slog.NewTextHandler(config.Output, opts)
	case FormatConsole:
		handler = NewConsoleHandler(config.Output, opts)
	default:
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	attrs := []any{"service", "savex"}
	if config.Component != "" {
		attrs = append(attrs, "component", config.Component)
	}
	for k, v := range config.Fields {
		attrs = append(attrs, k, v)
	}

	return &Logger{logger: slog.New(handler).With(attrs...), channels: config.Channels}
}

// NewNopLogger discards everything.
func NewNopLogger() *Logger {
	return NewLogger(LoggerConfig{Output: io.Discard})
}

// With returns a logger carrying additional key/value attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), channels: l.channels}
}

func (l *Logger) Channels() Channels { return l.channels }

func (l *Logger) Debug(msg string, args ...any) {
	if l.channels.Debug {
		l.logger.Debug(msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...any) {
	if l.channels.Info {
		l.logger.Info(msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	if l.channels.Warning {
		l.logger.Warn(msg, args...)
	}
}

func (l *Logger) Error(msg string, args ...any) {
	if l.channels.Error {
		l.logger.Error(msg, args...)
	}
}

// LogOperation records the outcome of an archive operation: failures on the
// error channel, successes at debug.
func (l *Logger) LogOperation(ctx context.Context, op Operation, duration time.Duration, err error) {
	args := []any{
		"operation", op.Name,
		"location", op.Location,
		"path", op.Path,
		"duration_ms", duration.Milliseconds(),
	}
	if op.Key != "" {
		args = append(args, "key", op.Key)
	}
	if err != nil {
		if !l.channels.Error {
			return
		}
		args = append(args, "error", err.Error(), "error_class", ErrorClass(err))
		l.logger.ErrorContext(ctx, "archive operation failed", args...)
		return
	}
	if l.channels.Debug {
		l.logger.DebugContext(ctx, "archive operation completed", args...)
	}
}

// ConsoleHandler writes colorized single line records for terminals.
type ConsoleHandler struct {
	handler slog.Handler
	output  io.Writer
	attrs   []slog.Attr
}

func NewConsoleHandler(output io.Writer, opts *slog.HandlerOptions) *ConsoleHandler {
	return &ConsoleHandler{
		handler: slog.NewTextHandler(output, opts),
		output:  output,
	}
}

func (h *ConsoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *ConsoleHandler) Handle(_ context.Context, record slog.Record) error {
	var level string
	switch {
	case record.Level >= slog.LevelError:
		level = "\033[31mERROR\033[0m"
	case record.Level >= slog.LevelWarn:
		level = "\033[33mWARN\033[0m"
	case record.Level >= slog.LevelInfo:
		level = "\033[32mINFO\033[0m"
	default:
		level = "\033[36mDEBUG\033[0m"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", record.Time.Format("15:04:05.000"), level, record.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value)
	}
	record.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')

	_, err := io.WriteString(h.output, b.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ConsoleHandler{handler: h.handler.WithAttrs(attrs), output: h.output, attrs: merged}
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	return &ConsoleHandler{handler: h.handler.WithGroup(name), output: h.output, attrs: h.attrs}
}
