// Package metrics provides the orchestrator-wide Prometheus metrics,
// separate from the per-agent admin JSON surface in spec §4.4. This is
// the cross-cutting observability layer a complete deployment carries
// even though traffic-event persistence and dashboards are out of scope.
package metrics

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors tracking the transport, proxy and attack
// engine.
type Metrics struct {
	// Transport (C6)
	TrafficEventsTotal   *prometheus.CounterVec
	AgentsOnline         prometheus.Gauge
	CommandSendTimeouts  *prometheus.CounterVec

	// Proxy (C5)
	ProxyRequestsTotal    *prometheus.CounterVec
	ActiveConnections     prometheus.Gauge
	InterceptionsPaused   prometheus.Counter

	// Attack engine (C10)
	AttackRequestsTotal  *prometheus.CounterVec
	AttackRequestSeconds *prometheus.HistogramVec
	AttacksActive        prometheus.Gauge

	// Flow engine (C12/C13)
	FlowStepsTotal   *prometheus.CounterVec
	FlowReplayErrors *prometheus.CounterVec
}

// New creates a Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against a custom
// registerer, useful for isolated tests.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		TrafficEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxxy_traffic_events_total",
				Help: "Total TrafficEvent frames received from agents, by kind.",
			},
			[]string{"agent_id", "kind"},
		),
		AgentsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxxy_agents_online",
			Help: "Current number of agents with status=online.",
		}),
		CommandSendTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxxy_command_send_timeouts_total",
				Help: "Times a command-channel send timed out rather than blocking the request handler.",
			},
			[]string{"agent_id"},
		),
		ProxyRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxxy_proxy_requests_total",
				Help: "Total HTTP transactions observed by the MITM proxy engine.",
			},
			[]string{"agent_id", "scope_action"},
		),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxxy_active_connections",
			Help: "Current number of live client connections on the proxy listener.",
		}),
		InterceptionsPaused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxxy_interceptions_paused_total",
			Help: "Total requests paused awaiting an intercept decision.",
		}),
		AttackRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxxy_attack_requests_total",
				Help: "Total dispatched attack requests, by outcome.",
			},
			[]string{"attack_id", "outcome"},
		),
		AttackRequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proxxy_attack_request_duration_seconds",
				Help:    "Attack request round-trip duration.",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"attack_id"},
		),
		AttacksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxxy_attacks_active",
			Help: "Current number of in-flight attacks.",
		}),
		FlowStepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxxy_flow_steps_total",
				Help: "Total flow steps replayed, by step kind and outcome.",
			},
			[]string{"step_kind", "outcome"},
		),
		FlowReplayErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxxy_flow_replay_errors_total",
				Help: "Total flow replay failures, by error kind.",
			},
			[]string{"kind"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.TrafficEventsTotal,
			m.AgentsOnline,
			m.CommandSendTimeouts,
			m.ProxyRequestsTotal,
			m.ActiveConnections,
			m.InterceptionsPaused,
			m.AttackRequestsTotal,
			m.AttackRequestSeconds,
			m.AttacksActive,
			m.FlowStepsTotal,
			m.FlowReplayErrors,
		)
	}

	return m
}

func (m *Metrics) RecordTrafficEvent(agentID, kind string) {
	m.TrafficEventsTotal.WithLabelValues(agentID, kind).Inc()
}

func (m *Metrics) RecordAttackRequest(attackID, outcome string, d time.Duration) {
	m.AttackRequestsTotal.WithLabelValues(attackID, outcome).Inc()
	m.AttackRequestSeconds.WithLabelValues(attackID).Observe(d.Seconds())
}

func (m *Metrics) RecordFlowStep(stepKind, outcome string) {
	m.FlowStepsTotal.WithLabelValues(stepKind, outcome).Inc()
}

// Enabled reports whether Prometheus collection should run, controlled by
// the METRICS_ENABLED environment variable (default: enabled).
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return true
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return true
}

var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance exactly once.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance, initializing a default one
// if Init was never called.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New("proxxy-orchestrator")
	}
	return globalMetrics
}
