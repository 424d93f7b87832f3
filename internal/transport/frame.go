// Package transport implements the agent↔orchestrator bidirectional
// stream (C6): a single gorilla/websocket connection multiplexing
// agent registration, the traffic-event stream, the command stream and
// intercept pause/resume notices, framed as JSON messages. The original design called for a
// gRPC bidirectional stream; this module carries the same framing and
// multiplexing semantics over gorilla/websocket, grounded on the rest
// of the example pack (the teacher's own go.mod lists gorilla/websocket
// only as an indirect dependency, so this is the first direct consumer
// of it in the style the pack otherwise establishes for JSON-framed
// real-time connections).
package transport

import "time"

// FrameKind discriminates the JSON envelope's payload.
type FrameKind string

const (
	FrameRegister       FrameKind = "register"
	FrameRegisterAck    FrameKind = "register_ack"
	FrameHeartbeat      FrameKind = "heartbeat"
	FrameTrafficEvent   FrameKind = "traffic_event"
	FrameSystemMetrics  FrameKind = "system_metrics"
	FrameCommand        FrameKind = "command"
	FrameInterceptPause FrameKind = "intercept_pause"
	FrameInterceptDone  FrameKind = "intercept_resume"
)

// Frame is the single envelope type carried over the socket in both
// directions; exactly one of its typed payload fields is populated,
// selected by Kind.
type Frame struct {
	Kind FrameKind `json:"kind"`

	Register       *RegisterRequest  `json:"register,omitempty"`
	RegisterAck    *RegisterAck      `json:"register_ack,omitempty"`
	TrafficEvent   *TrafficEvent     `json:"traffic_event,omitempty"`
	SystemMetrics  *SystemMetrics    `json:"system_metrics,omitempty"`
	Command        *CommandFrame     `json:"command,omitempty"`
	InterceptPause *InterceptPause   `json:"intercept_pause,omitempty"`
	InterceptDone  *InterceptResume  `json:"intercept_resume,omitempty"`
}

// RegisterRequest is the unary registration call an agent makes on
// connecting; the orchestrator responds with RegisterAck carrying the
// CA it should trust.
type RegisterRequest struct {
	AgentID    string `json:"agent_id"`
	Name       string `json:"name"`
	AuthToken  string `json:"auth_token"`
	ProxyAddr  string `json:"proxy_addr"`
	AgentAdmin string `json:"agent_admin_addr"`
}

// RegisterAck is the orchestrator's reply, containing the CA the agent
// should serve from its MITM listener.
type RegisterAck struct {
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason,omitempty"`
	CACertPEM []byte `json:"ca_cert_pem,omitempty"`
}

// TrafficEvent is one observed transaction reported upstream by an agent.
type TrafficEvent struct {
	RequestID  string            `json:"request_id"`
	AgentID    string            `json:"agent_id"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
	ObservedAt time.Time         `json:"observed_at"`
}

// SystemMetrics reports an agent's local resource usage. The frame kind
// is defined, but neither Client nor Server sends or handles it.
type SystemMetrics struct {
	AgentID           string    `json:"agent_id"`
	ActiveConnections int       `json:"active_connections"`
	CPUPercent        float64   `json:"cpu_percent"`
	MemoryBytes       uint64    `json:"memory_bytes"`
	ReportedAt        time.Time `json:"reported_at"`
}

// CommandFrame wraps a registry.Command for wire transmission.
type CommandFrame struct {
	Kind    string      `json:"command_kind"`
	Payload interface{} `json:"payload,omitempty"`
}

// InterceptPause notifies the orchestrator that requestID is paused
// awaiting a decision.
type InterceptPause struct {
	RequestID string `json:"request_id"`
	AgentID   string `json:"agent_id"`
}

// InterceptResume carries the operator's decision back down to the
// agent holding requestID paused.
type InterceptResume struct {
	RequestID       string            `json:"request_id"`
	Action          string            `json:"action"` // "forward" | "drop" | "modify"
	ModifiedMethod  string            `json:"modified_method,omitempty"`
	ModifiedURL     string            `json:"modified_url,omitempty"`
	ModifiedHeaders map[string]string `json:"modified_headers,omitempty"`
	ModifiedBody    []byte            `json:"modified_body,omitempty"`
}
