package attack

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
	"github.com/regaipserdar/proxxy-sub001/internal/logging"
	"github.com/regaipserdar/proxxy-sub001/internal/metrics"
	"github.com/regaipserdar/proxxy-sub001/internal/ratelimit"
)

// AgentManager selects and health-checks the agents an attack dispatches
// requests to.
type AgentManager interface {
	SelectAgent(candidates []string) (string, error)
	IsAgentAvailable(agentID string) bool
	Dispatch(ctx context.Context, agentID string, req AttackRequest) (*HTTPResponseData, error)
}

// ResultProcessor receives completed results and answers statistics
// queries for a running or finished attack.
type ResultProcessor interface {
	ProcessResult(result AttackResultData)
	Statistics(attackID uuid.UUID) (AttackStatistics, error)
}

// ResourceAllocation is the handle returned by a ResourceManager grant.
type ResourceAllocation struct {
	ID          uuid.UUID
	ModuleType  string
	AllocatedAt time.Time
}

// ResourceManager coordinates an attack's resource footprint with the
// rest of the system (concurrent-attack and per-agent request limits).
type ResourceManager interface {
	RequestAttackResources(ctx context.Context, moduleType string, agentCount, concurrentRequestsPerAgent int) (ResourceAllocation, error)
	ReleaseResources(allocation ResourceAllocation)
}

// SemaphoreResourceManager is the unified §5 resource scheme: it grants
// one permit from a shared attacks-in-flight semaphore per attack,
// regardless of module type or agent count.
type SemaphoreResourceManager struct {
	Attacks *ratelimit.Semaphore
}

func (r *SemaphoreResourceManager) RequestAttackResources(ctx context.Context, moduleType string, agentCount, concurrentRequestsPerAgent int) (ResourceAllocation, error) {
	if err := r.Attacks.Acquire(ctx, ratelimit.PriorityNormal); err != nil {
		return ResourceAllocation{}, err
	}
	return ResourceAllocation{ID: uuid.New(), ModuleType: moduleType, AllocatedAt: time.Now()}, nil
}

func (r *SemaphoreResourceManager) ReleaseResources(ResourceAllocation) {
	r.Attacks.Release()
}

// Engine is the attack execution engine: it resolves an agent per
// request, dispatches it, redistributes on agent failure, and folds
// every outcome into the active attack's statistics.
type Engine struct {
	agents      AgentManager
	results     ResultProcessor
	distributor PayloadDistributor
	resources   ResourceManager
	logger      *logging.Logger
	metrics     *metrics.Metrics

	mu     sync.RWMutex
	active map[uuid.UUID]AttackContext
}

// NewEngine builds an Engine. resources and metrics may be nil.
func NewEngine(agents AgentManager, results ResultProcessor, distributor PayloadDistributor, resources ResourceManager, logger *logging.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		agents:      agents,
		results:     results,
		distributor: distributor,
		resources:   resources,
		logger:      logger,
		metrics:     m,
		active:      make(map[uuid.UUID]AttackContext),
	}
}

// StartAttack registers context as active, requests resources if a
// ResourceManager is configured, executes every request (redistributing
// across the remaining target agents whenever one is unavailable), then
// unregisters the attack and releases resources.
func (e *Engine) StartAttack(ctx context.Context, attackCtx AttackContext, requests []AttackRequest) error {
	e.mu.Lock()
	e.active[attackCtx.AttackID] = attackCtx
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.AttacksActive.Inc()
	}

	defer func() {
		e.mu.Lock()
		delete(e.active, attackCtx.AttackID)
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.AttacksActive.Dec()
		}
	}()

	var allocation ResourceAllocation
	if e.resources != nil {
		agentCount := 1
		if len(requests) > 0 {
			agentCount = len(requests[0].TargetAgents)
		}
		alloc, err := e.resources.RequestAttackResources(ctx, attackCtx.ModuleType, agentCount, 10)
		if err != nil {
			return err
		}
		allocation = alloc
		defer e.resources.ReleaseResources(allocation)
	}

	e.executeAttackRequests(ctx, requests)
	return nil
}

func (e *Engine) executeAttackRequests(ctx context.Context, requests []AttackRequest) {
	preferred := e.preferredAgents(requests)
	for i, req := range requests {
		result := e.executeWithRedistribution(ctx, req, preferred[i])
		e.results.ProcessResult(result)
	}
}

// preferredAgents ranks, per request, which of its TargetAgents the
// configured PayloadDistributor would hand it to first. Requests are
// grouped by their (TargetAgents, DistributionStrategy) pair, since
// PayloadDistributor.DistributePayloads assigns a flat payload list
// across one agent set at a time; within a group, each request's index
// among its siblings stands in for the payload it carries, so
// RoundRobin/Batch/LoadBalanced spread across the whole attack the way
// §4.5 describes rather than per-request in isolation.
func (e *Engine) preferredAgents(requests []AttackRequest) []string {
	preferred := make([]string, len(requests))
	if e.distributor == nil {
		return preferred
	}

	type groupKey struct {
		agents string
		kind   DistributionKind
		batch  int
	}
	var order []groupKey
	groups := make(map[groupKey][]int)
	for i, req := range requests {
		if len(req.TargetAgents) == 0 {
			continue
		}
		key := groupKey{agents: strings.Join(req.TargetAgents, ","), kind: req.Distribution.Kind, batch: req.Distribution.BatchSize}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	for _, key := range order {
		indices := groups[key]
		agents := strings.Split(key.agents, ",")
		payloadIDs := make([]string, len(indices))
		for j, idx := range indices {
			payloadIDs[j] = strconv.Itoa(idx)
		}
		assignment, err := e.distributor.DistributePayloads(payloadIDs, agents, DistributionStrategy{Kind: key.kind, BatchSize: key.batch})
		if err != nil {
			continue
		}
		for agent, ids := range assignment {
			for _, idStr := range ids {
				idx, convErr := strconv.Atoi(idStr)
				if convErr == nil {
					preferred[idx] = agent
				}
			}
		}
	}
	return preferred
}

// executeWithRedistribution tries every target agent in turn, starting
// from the distributor's preferred agent for this request if one was
// resolved (moved to the front of the candidate list), then the
// original set minus any found unavailable, until one accepts the
// request or none remain; this preserves the multiset of requests while
// excluding failed agents, per the redistribution invariant.
func (e *Engine) executeWithRedistribution(ctx context.Context, req AttackRequest, preferredAgent string) AttackResultData {
	remaining := moveToFront(append([]string(nil), req.TargetAgents...), preferredAgent)

	for len(remaining) > 0 {
		agentID, err := e.agents.SelectAgent(remaining)
		if err != nil {
			return AttackResultData{RequestID: req.ID, Request: req.Template, Err: err, StartedAt: time.Now(), FinishedAt: time.Now()}
		}

		if !e.agents.IsAgentAvailable(agentID) {
			remaining = removeAgent(remaining, agentID)
			if e.logger != nil {
				e.logger.WithFields(map[string]interface{}{"agent_id": agentID, "request_id": req.ID.String()}).
					Warn("agent unavailable, redistributing request")
			}
			continue
		}

		start := time.Now()
		resp, err := e.agents.Dispatch(ctx, agentID, req)
		duration := time.Since(start)

		if err != nil && errors.Is(err, errors.KindAgentUnavailable) {
			remaining = removeAgent(remaining, agentID)
			continue
		}

		result := AttackResultData{
			RequestID:  req.ID,
			AgentID:    agentID,
			Request:    req.Template,
			Response:   resp,
			DurationMS: duration.Milliseconds(),
			Err:        err,
			StartedAt:  start,
			FinishedAt: start.Add(duration),
		}
		if e.metrics != nil {
			outcome := "success"
			if err != nil {
				outcome = "error"
			}
			e.metrics.RecordAttackRequest(req.ID.String(), outcome, duration)
		}
		return result
	}

	return AttackResultData{
		RequestID:  req.ID,
		Request:    req.Template,
		Err:        errors.AgentUnavailable("all target agents"),
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
}

// moveToFront reorders agents so preferred, if present, is tried first;
// a blank or absent preferred leaves the order untouched.
func moveToFront(agents []string, preferred string) []string {
	if preferred == "" {
		return agents
	}
	out := make([]string, 0, len(agents))
	found := false
	for _, a := range agents {
		if a == preferred {
			found = true
			continue
		}
		out = append(out, a)
	}
	if !found {
		return agents
	}
	return append([]string{preferred}, out...)
}

func removeAgent(agents []string, target string) []string {
	out := make([]string, 0, len(agents))
	for _, a := range agents {
		if a != target {
			out = append(out, a)
		}
	}
	return out
}

// StopAttack removes attackID from the active registry; in-flight
// requests already dispatched are not cancelled.
func (e *Engine) StopAttack(attackID uuid.UUID) {
	e.mu.Lock()
	delete(e.active, attackID)
	e.mu.Unlock()
}

// ActiveAttacks returns a snapshot of every currently-running attack.
func (e *Engine) ActiveAttacks() []AttackContext {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]AttackContext, 0, len(e.active))
	for _, ctx := range e.active {
		out = append(out, ctx)
	}
	return out
}

// Statistics returns the aggregated statistics for attackID.
func (e *Engine) Statistics(attackID uuid.UUID) (AttackStatistics, error) {
	return e.results.Statistics(attackID)
}
