package attack

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgentManager struct {
	mu          sync.Mutex
	unavailable map[string]bool
	dispatched  []string
}

func (f *fakeAgentManager) SelectAgent(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", assertErr("no candidates")
	}
	return candidates[0], nil
}

func (f *fakeAgentManager) IsAgentAvailable(agentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable[agentID]
}

func (f *fakeAgentManager) Dispatch(ctx context.Context, agentID string, req AttackRequest) (*HTTPResponseData, error) {
	f.mu.Lock()
	f.dispatched = append(f.dispatched, agentID)
	f.mu.Unlock()
	return &HTTPResponseData{StatusCode: 200, Body: []byte("ok")}, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

type fakeResultProcessor struct {
	mu      sync.Mutex
	results []AttackResultData
}

func (f *fakeResultProcessor) ProcessResult(result AttackResultData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

func (f *fakeResultProcessor) Statistics(attackID uuid.UUID) (AttackStatistics, error) {
	var stats AttackStatistics
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.results {
		stats.Record(r)
	}
	return stats, nil
}

func TestEngine_RedistributesAwayFromUnavailableAgent(t *testing.T) {
	agents := &fakeAgentManager{unavailable: map[string]bool{"agent1": true}}
	results := &fakeResultProcessor{}
	engine := NewEngine(agents, results, DefaultPayloadDistributor{}, nil, nil, nil)

	req := AttackRequest{ID: uuid.New(), TargetAgents: []string{"agent1", "agent2"}}
	err := engine.StartAttack(context.Background(), AttackContext{AttackID: uuid.New()}, []AttackRequest{req})
	require.NoError(t, err)

	require.Len(t, results.results, 1)
	assert.Equal(t, "agent2", results.results[0].AgentID)
	assert.NoError(t, results.results[0].Err)
}

func TestEngine_AllAgentsUnavailableReturnsAgentUnavailableError(t *testing.T) {
	agents := &fakeAgentManager{unavailable: map[string]bool{"agent1": true, "agent2": true}}
	results := &fakeResultProcessor{}
	engine := NewEngine(agents, results, DefaultPayloadDistributor{}, nil, nil, nil)

	req := AttackRequest{ID: uuid.New(), TargetAgents: []string{"agent1", "agent2"}}
	err := engine.StartAttack(context.Background(), AttackContext{AttackID: uuid.New()}, []AttackRequest{req})
	require.NoError(t, err)

	require.Len(t, results.results, 1)
	assert.Error(t, results.results[0].Err)
}

func TestEngine_ActiveAttacksTrackedDuringExecution(t *testing.T) {
	agents := &fakeAgentManager{unavailable: map[string]bool{}}
	results := &fakeResultProcessor{}
	engine := NewEngine(agents, results, DefaultPayloadDistributor{}, nil, nil, nil)

	attackID := uuid.New()
	req := AttackRequest{ID: uuid.New(), TargetAgents: []string{"agent1"}}
	require.NoError(t, engine.StartAttack(context.Background(), AttackContext{AttackID: attackID}, []AttackRequest{req}))

	// attack completed synchronously, so it should no longer be active
	assert.Empty(t, engine.ActiveAttacks())
}

func TestEngine_ExecuteAttackRequestsHonorsRoundRobinDistribution(t *testing.T) {
	agents := &fakeAgentManager{}
	results := &fakeResultProcessor{}
	engine := NewEngine(agents, results, DefaultPayloadDistributor{}, nil, nil, nil)

	requests := make([]AttackRequest, 3)
	for i := range requests {
		requests[i] = AttackRequest{ID: uuid.New(), TargetAgents: []string{"agent1", "agent2"}}
	}
	err := engine.StartAttack(context.Background(), AttackContext{AttackID: uuid.New()}, requests)
	require.NoError(t, err)

	// E2E-2: 3 payloads over 2 agents under RoundRobin dispatch as [A, B, A].
	require.Len(t, agents.dispatched, 3)
	assert.Equal(t, []string{"agent1", "agent2", "agent1"}, agents.dispatched)
}

func TestEngine_PreferredAgentFallsBackWhenUnavailable(t *testing.T) {
	agents := &fakeAgentManager{unavailable: map[string]bool{"agent1": true}}
	results := &fakeResultProcessor{}
	engine := NewEngine(agents, results, DefaultPayloadDistributor{}, nil, nil, nil)

	// RoundRobin would prefer agent1 for this lone request; it must fall
	// back to agent2 since agent1 is unavailable.
	req := AttackRequest{ID: uuid.New(), TargetAgents: []string{"agent1", "agent2"}}
	err := engine.StartAttack(context.Background(), AttackContext{AttackID: uuid.New()}, []AttackRequest{req})
	require.NoError(t, err)

	require.Len(t, results.results, 1)
	assert.Equal(t, "agent2", results.results[0].AgentID)
}

func TestAttackStatistics_RecordIsMonotoneExceptReset(t *testing.T) {
	var stats AttackStatistics
	stats.Record(AttackResultData{Response: &HTTPResponseData{StatusCode: 200, Body: []byte("x")}, DurationMS: 10})
	stats.Record(AttackResultData{Err: assertErr("boom")})

	assert.Equal(t, 2, stats.TotalRequests)
	assert.Equal(t, 1, stats.CompletedRequests)
	assert.Equal(t, 1, stats.FailedRequests)

	stats.Reset()
	assert.Equal(t, 0, stats.TotalRequests)
}
