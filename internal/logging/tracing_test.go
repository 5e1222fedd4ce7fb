package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Amund211/gqlcache/internal/logging"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceLogHandler(t *testing.T) {
	t.Parallel()

	decode := func(t *testing.T, buf *bytes.Buffer) map[string]any {
		t.Helper()
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		return entry
	}

	t.Run("adds span context", func(t *testing.T) {
		t.Parallel()

		traceID, err := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
		require.NoError(t, err)
		spanID, err := trace.SpanIDFromHex("0123456789abcdef")
		require.NoError(t, err)
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		})
		ctx := trace.ContextWithSpanContext(t.Context(), sc)

		buf := &bytes.Buffer{}
		logger := slog.New(logging.NewTraceLogHandler(slog.NewJSONHandler(buf, nil)))
		logger.With("group", "x").InfoContext(ctx, "traced")

		entry := decode(t, buf)
		require.Equal(t, "0123456789abcdef0123456789abcdef", entry["trace_id"])
		require.Equal(t, "0123456789abcdef", entry["span_id"])
		require.Equal(t, true, entry["trace_sampled"])
		require.Equal(t, "x", entry["group"])
	})

	t.Run("no span context", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		logger := slog.New(logging.NewTraceLogHandler(slog.NewJSONHandler(buf, nil)))
		logger.InfoContext(t.Context(), "untraced")

		entry := decode(t, buf)
		require.NotContains(t, entry, "trace_id")
		require.NotContains(t, entry, "span_id")
	})
}
