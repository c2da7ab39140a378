package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/savex/internal/archiverr"
)

func TestLoggerChannels(t *testing.T) {
	tests := []struct {
		name     string
		channels Channels
		want     []string
	}{
		{"all", AllChannels(), []string{"info", "warn", "error"}},
		{"errors only", Channels{Error: true}, []string{"error"}},
		{"none", Channels{}, nil},
		{"debug", Channels{Debug: true}, []string{"debug"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(LoggerConfig{Channels: tt.channels, Output: &buf, Format: FormatText})

			logger.Debug("debug")
			logger.Info("info")
			logger.Warn("warn")
			logger.Error("error")

			var got []string
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				if line == "" {
					continue
				}
				for _, msg := range []string{"debug", "info", "warn", "error"} {
					if strings.Contains(line, "msg="+msg) {
						got = append(got, msg)
					}
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{
		Channels:  AllChannels(),
		Output:    &buf,
		Component: "engine",
		Fields:    map[string]any{"platform": "linux"},
	})

	logger.With("path", "/tmp/Data.pak").Warn("skipped member", "member", "secret")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "savex", record["service"])
	assert.Equal(t, "engine", record["component"])
	assert.Equal(t, "linux", record["platform"])
	assert.Equal(t, "/tmp/Data.pak", record["path"])
	assert.Equal(t, "secret", record["member"])
	assert.Equal(t, "WARN", record["level"])
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Channels: AllChannels(), Output: &buf, Format: FormatConsole})
	logger.With("path", "a.pak").Info("saved", "key", "score")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "saved")
	assert.Contains(t, out, "path=a.pak")
	assert.Contains(t, out, "key=score")
}

func TestErrorClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{archiverr.NewKeyNotFoundError("k", "p"), "not_found"},
		{archiverr.ErrAppendTransform, "unsupported_operation"},
		{archiverr.ErrDecryptionFailed, "transform"},
		{archiverr.ErrMissingPassword, "configuration"},
		{fmt.Errorf("wrap: %w", archiverr.ErrTypeMismatch), "deserialization"},
		{archiverr.NewFormatError("a.bmp", ""), "format"},
		{archiverr.NewLocationMismatchError("file", "cache", archiverr.Copy), "location_mismatch"},
		{errors.New("disk full"), "io"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorClass(tt.err), "%v", tt.err)
	}
}

func TestObserve(t *testing.T) {
	collector := NewInMemoryMetricsCollector()
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Channels: AllChannels(), Output: &buf})
	hook := NewCompositeObservabilityHook(
		NewMetricsObservabilityHook(collector),
		NewLoggingObservabilityHook(logger),
	)
	op := Operation{Name: "save", Location: "file", Path: "/tmp/a.pak", Key: "score"}

	require.NoError(t, Observe(context.Background(), hook, op, func() error { return nil }))
	err := Observe(context.Background(), hook, op, func() error {
		return archiverr.NewKeyNotFoundError("score", "/tmp/a.pak")
	})
	require.Error(t, err)

	tags := map[string]string{"operation": "save", "location": "file"}
	assert.Equal(t, int64(2), collector.Counter(MetricOperationStarted, tags))
	assert.Equal(t, int64(1), collector.CounterTotal(MetricOperationSucceeded))
	assert.Equal(t, int64(1), collector.CounterTotal(MetricOperationFailed))
	assert.Equal(t, int64(1), collector.Counter(MetricErrors, map[string]string{
		"operation": "save", "location": "file", "error_class": "not_found",
	}))

	assert.Contains(t, buf.String(), "archive operation failed")
	assert.NotContains(t, buf.String(), "archive operation completed")
}
