package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveTurn("continue", "ok")
	m.ObserveTurn("continue", "ok")
	m.ObserveTurn("empty", "degraded")
	m.ObserveStage("transcribe", 120*time.Millisecond, true)
	m.ObserveStage("complete", time.Second, false)
	m.SetActiveSessions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turns.WithLabelValues("continue", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageFailures.WithLabelValues("transcribe")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.stageFailures.WithLabelValues("complete")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSessions))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObservePrompt(4, 120)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "echomate_prompt_tokens_bucket"))
	assert.True(t, strings.Contains(string(body), "echomate_history_messages_count 1"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveTurn("continue", "ok")
	m.ObserveStage("complete", time.Second, true)
	m.ObservePrompt(1, 1)
	m.SetActiveSessions(1)
	m.ObserveHTTP("/chat", 200)
	assert.Nil(t, m.Registry())
}

func TestTracing_DisabledIsNoop(t *testing.T) {
	t.Parallel()

	tr, err := NewTracing(context.Background(), TracingConfig{ServiceName: "echomate"})
	require.NoError(t, err)

	_, span := tr.Tracer().Start(context.Background(), "turn")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, tr.Shutdown(context.Background()))
}
