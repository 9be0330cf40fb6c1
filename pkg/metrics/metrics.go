// Package metrics exposes Prometheus collectors for provider calls, HTTP
// traffic, mention analysis, billing webhooks and MCP tool calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lookout"

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
)

// Metrics holds every collector the service records. All methods are safe
// to call on a nil *Metrics so tests and tools can run without a registry.
type Metrics struct {
	registry *prometheus.Registry

	providerCalls     *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec
	providerCircuit   *prometheus.GaugeVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	mentionRuns       *prometheus.CounterVec
	mentionsExtracted prometheus.Counter
	webhookEvents     *prometheus.CounterVec
	mcpToolCalls      *prometheus.CounterVec
}

// New creates a registry with the Go and process collectors plus Lookout's own metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "LLM provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "LLM provider call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"provider"}),
		providerCircuit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_circuit_state",
			Help:      "Provider circuit breaker state (0 closed, 1 open, 2 half-open).",
		}, []string{"provider"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		mentionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mention_analysis_runs_total",
			Help:      "Mention analysis runs by outcome.",
		}, []string{"outcome"}),
		mentionsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mentions_extracted_total",
			Help:      "Mentions stored by analysis runs.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_webhook_events_total",
			Help:      "Billing webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		mcpToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mcp_tool_calls_total",
			Help:      "MCP tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.providerCalls,
		m.providerLatency,
		m.providerCircuit,
		m.httpRequests,
		m.httpDuration,
		m.mentionRuns,
		m.mentionsExtracted,
		m.webhookEvents,
		m.mcpToolCalls,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveProviderCall records a single provider call.
func (m *Metrics) ObserveProviderCall(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
	if outcome != OutcomeRejected {
		m.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

// SetProviderCircuit records a provider's circuit breaker state.
func (m *Metrics) SetProviderCircuit(provider string, state int) {
	if m == nil {
		return
	}
	m.providerCircuit.WithLabelValues(provider).Set(float64(state))
}

// ObserveHTTPRequest records a served request. route is the mux pattern, not the raw path.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveMentionRun records a finished mention analysis run.
func (m *Metrics) ObserveMentionRun(outcome string, mentions int) {
	if m == nil {
		return
	}
	m.mentionRuns.WithLabelValues(outcome).Inc()
	if mentions > 0 {
		m.mentionsExtracted.Add(float64(mentions))
	}
}

// ObserveWebhookEvent records a processed billing webhook event.
func (m *Metrics) ObserveWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// ObserveMCPToolCall records an MCP tools/call request.
func (m *Metrics) ObserveMCPToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	if tool == "" {
		tool = "unknown"
	}
	m.mcpToolCalls.WithLabelValues(tool, outcome).Inc()
}
