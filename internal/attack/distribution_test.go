package attack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributePayloads_RoundRobin(t *testing.T) {
	d := DefaultPayloadDistributor{}
	result, err := d.DistributePayloads(
		[]string{"p1", "p2", "p3"},
		[]string{"agent1", "agent2"},
		DistributionStrategy{Kind: DistributionRoundRobin},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p3"}, result["agent1"])
	assert.Equal(t, []string{"p2"}, result["agent2"])
}

func TestDistributePayloads_Batch(t *testing.T) {
	d := DefaultPayloadDistributor{}
	result, err := d.DistributePayloads(
		[]string{"p1", "p2", "p3", "p4"},
		[]string{"agent1", "agent2"},
		DistributionStrategy{Kind: DistributionBatch, BatchSize: 2},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, result["agent1"])
	assert.Equal(t, []string{"p3", "p4"}, result["agent2"])
}

func TestDistributePayloads_NoAgents(t *testing.T) {
	d := DefaultPayloadDistributor{}
	_, err := d.DistributePayloads([]string{"p1"}, nil, DistributionStrategy{Kind: DistributionRoundRobin})
	assert.Error(t, err)
}

func TestCalculateBatchSize(t *testing.T) {
	d := DefaultPayloadDistributor{}
	assert.Equal(t, 4, d.CalculateBatchSize(10, 3))
	assert.Equal(t, 3, d.CalculateBatchSize(9, 3))
	assert.Equal(t, 3, d.CalculateBatchSize(5, 2))
	assert.Equal(t, 0, d.CalculateBatchSize(0, 5))
}

func TestDistributeLoadBalanced_PicksLowestLoadFirst(t *testing.T) {
	loads := []AgentLoad{
		{AgentID: "agent1", ActiveRequests: 2, AvgResponseTimeMS: 100},
		{AgentID: "agent2", ActiveRequests: 0, AvgResponseTimeMS: 200},
	}
	result, err := DistributeLoadBalanced([]string{"p1"}, loads)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, result["agent2"])
}

func TestDistributeLoadBalanced_TieBreaksByResponseTimeThenID(t *testing.T) {
	loads := []AgentLoad{
		{AgentID: "agent-b", ActiveRequests: 0, AvgResponseTimeMS: 50},
		{AgentID: "agent-a", ActiveRequests: 0, AvgResponseTimeMS: 50},
	}
	result, err := DistributeLoadBalanced([]string{"p1"}, loads)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, result["agent-a"])
}

func TestDistributeLoadBalanced_RebalancesAsLoadAccrues(t *testing.T) {
	loads := []AgentLoad{
		{AgentID: "agent1", ActiveRequests: 0},
		{AgentID: "agent2", ActiveRequests: 0},
	}
	result, err := DistributeLoadBalanced([]string{"p1", "p2", "p3"}, loads)
	require.NoError(t, err)
	assert.Len(t, result["agent1"], 2)
	assert.Len(t, result["agent2"], 1)
}

func TestDistributeLoadBalanced_NoAgents(t *testing.T) {
	_, err := DistributeLoadBalanced([]string{"p1"}, nil)
	assert.Error(t, err)
}
