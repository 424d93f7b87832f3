// Package registry implements the Agent Registry (C7): tracking every
// connected agent, deriving its status from heartbeat recency, and
// delivering commands to it through a bounded, timeout-guarded channel.
// Grounded on the teacher's connection-bookkeeping style in
// infrastructure/ratelimit and cmd/gateway, generalized from HTTP
// clients to long-lived agent connections.
package registry

import (
	"sync"
	"time"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

// Status is computed from time-since-last-heartbeat, never stored
// directly, so it can never drift from the heartbeat clock.
type Status int

const (
	StatusOnline Status = iota
	StatusStale
	StatusOffline
)

const (
	staleAfter   = 15 * time.Second
	offlineAfter = 45 * time.Second

	commandQueueCapacity = 32
	commandSendTimeout   = 2 * time.Second
)

// Command is one instruction delivered to an agent (intercept decision,
// policy update, attack dispatch, or control signal); Payload is
// whatever the transport layer needs to frame it on the wire.
type Command struct {
	Kind    string
	Payload interface{}
}

// Record is everything the registry tracks about one connected agent.
type Record struct {
	AgentID       string
	Name          string
	RemoteAddr    string
	AgentAdminAddr string
	ConnectedAt   time.Time
	LastHeartbeat time.Time

	commands chan Command
}

// StatusAt derives this record's status from t, the moment being asked
// about: online within staleAfter of its last heartbeat, stale up to
// offlineAfter, offline beyond that.
func (r *Record) StatusAt(t time.Time) Status {
	age := t.Sub(r.LastHeartbeat)
	switch {
	case age <= staleAfter:
		return StatusOnline
	case age <= offlineAfter:
		return StatusStale
	default:
		return StatusOffline
	}
}

// Status derives this record's status as of now.
func (r *Record) Status() Status {
	return r.StatusAt(time.Now())
}

// Registry is the concurrent-safe table of connected agents.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Register adds or replaces the record for agentID, returning its
// command channel. Re-registering an already-known agent replaces its
// connection metadata and gives it a fresh command queue; the old queue
// is abandoned (any pending commands are dropped).
func (r *Registry) Register(agentID, name, remoteAddr string) *Record {
	now := time.Now()
	rec := &Record{
		AgentID:       agentID,
		Name:          name,
		RemoteAddr:    remoteAddr,
		ConnectedAt:   now,
		LastHeartbeat: now,
		commands:      make(chan Command, commandQueueCapacity),
	}
	r.mu.Lock()
	r.records[agentID] = rec
	r.mu.Unlock()
	return rec
}

// SetAgentAdmin records the agent-local admin HTTP address an agent
// advertised at registration time, used by the attack engine's agent
// manager to dispatch requests directly to the agent. A no-op if
// agentID is unknown.
func (r *Registry) SetAgentAdmin(agentID, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[agentID]; ok {
		rec.AgentAdminAddr = addr
	}
}

// Unregister removes agentID from the registry.
func (r *Registry) Unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, agentID)
}

// Heartbeat refreshes agentID's last-seen time. It is a no-op (but not
// an error) if agentID is unknown, since a heartbeat racing unregister
// is expected.
func (r *Registry) Heartbeat(agentID string) {
	r.mu.RLock()
	rec, ok := r.records[agentID]
	r.mu.RUnlock()
	if ok {
		r.mu.Lock()
		rec.LastHeartbeat = time.Now()
		r.mu.Unlock()
	}
}

// Get returns agentID's record, if connected.
func (r *Registry) Get(agentID string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[agentID]
	return rec, ok
}

// List returns every currently-registered record.
func (r *Registry) List() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// OnlineAgentIDs returns the IDs of every agent currently StatusOnline.
func (r *Registry) OnlineAgentIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	now := time.Now()
	for id, rec := range r.records {
		if rec.StatusAt(now) == StatusOnline {
			ids = append(ids, id)
		}
	}
	return ids
}

// SendCommand delivers cmd to agentID's command channel, blocking up to
// commandSendTimeout rather than the request handler indefinitely. It
// returns AgentUnavailable if agentID is unknown or the send times out
// because the agent's queue is full (a wedged or dead connection).
func (r *Registry) SendCommand(agentID string, cmd Command) error {
	r.mu.RLock()
	rec, ok := r.records[agentID]
	r.mu.RUnlock()
	if !ok {
		return errors.AgentUnavailable(agentID)
	}

	select {
	case rec.commands <- cmd:
		return nil
	case <-time.After(commandSendTimeout):
		return errors.AgentUnavailable(agentID)
	}
}

// Commands returns agentID's inbound command channel for the transport
// layer to drain, or false if agentID is unknown.
func (r *Registry) Commands(agentID string) (<-chan Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[agentID]
	if !ok {
		return nil, false
	}
	return rec.commands, true
}

// IsAvailable reports whether agentID is known and StatusOnline — the
// predicate the attack engine's AgentManager consults before dispatch.
func (r *Registry) IsAvailable(agentID string) bool {
	rec, ok := r.Get(agentID)
	return ok && rec.Status() == StatusOnline
}
