// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing for
// the turn pipeline. A nil *Metrics is valid and records nothing.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "echomate"

// Metrics holds the pipeline's collectors.
type Metrics struct {
	registry *prometheus.Registry

	turns          *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	stageFailures  *prometheus.CounterVec
	historyLength  prometheus.Histogram
	promptTokens   prometheus.Histogram
	activeSessions prometheus.Gauge
	httpRequests   *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on a fresh registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversational turns handled, by intent and outcome.",
		}, []string{"intent", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Pipeline stage failures, recovered or fatal.",
		}, []string{"stage"}),
		historyLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_messages",
			Help:      "History messages sent with each completion request.",
			Buckets:   prometheus.LinearBuckets(0, 4, 11),
		}),
		promptTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_tokens",
			Help:      "Estimated prompt tokens per completion request.",
			Buckets:   prometheus.ExponentialBuckets(32, 2, 10),
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the gateway, by route and status code.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.turns,
		m.stageDuration,
		m.stageFailures,
		m.historyLength,
		m.promptTokens,
		m.activeSessions,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStage records a stage's duration and, if failed, its failure.
func (m *Metrics) ObserveStage(stage string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if failed {
		m.stageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveTurn counts a finished turn. outcome is "ok", "degraded" or an
// error kind.
func (m *Metrics) ObserveTurn(intent, outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(intent, outcome).Inc()
}

// ObservePrompt records the size of a completion request.
func (m *Metrics) ObservePrompt(historyMessages, tokens int) {
	if m == nil {
		return
	}
	m.historyLength.Observe(float64(historyMessages))
	m.promptTokens.Observe(float64(tokens))
}

// SetActiveSessions updates the live session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// ObserveHTTP counts one gateway response.
func (m *Metrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
