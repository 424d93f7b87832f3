package attack

import (
	"sort"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

// DistributionKind selects how payloads are spread across target agents.
type DistributionKind int

const (
	DistributionRoundRobin DistributionKind = iota
	DistributionBatch
	DistributionLoadBalanced
)

// DistributionStrategy configures payload distribution; BatchSize only
// applies to DistributionBatch.
type DistributionStrategy struct {
	Kind      DistributionKind
	BatchSize int
}

// AgentLoad is the load/performance snapshot an agent contributes to a
// load-balanced distribution decision.
type AgentLoad struct {
	AgentID             string
	ActiveRequests      int
	AvgResponseTimeMS   float64
}

// PayloadDistributor assigns a flat payload list across target agents.
type PayloadDistributor interface {
	DistributePayloads(payloads []string, agents []string, strategy DistributionStrategy) (map[string][]string, error)
	CalculateBatchSize(payloadCount, agentCount int) int
}

// DefaultPayloadDistributor implements RoundRobin and Batch exactly as
// the original attack engine does. It holds no live agent-load data, so
// DistributionLoadBalanced is assigned round-robin here, the same as
// DistributionRoundRobin. The lowest-load assignment (fewest active
// requests, then lowest average response time, then lowest agent ID
// lexicographically) is DistributeLoadBalanced, which takes AgentLoad
// snapshots and is not called by this distributor.
type DefaultPayloadDistributor struct{}

func (DefaultPayloadDistributor) DistributePayloads(payloads []string, agents []string, strategy DistributionStrategy) (map[string][]string, error) {
	if len(agents) == 0 {
		return nil, errors.InvalidAttackConfig("no agents available for payload distribution")
	}

	distribution := make(map[string][]string)

	switch strategy.Kind {
	case DistributionRoundRobin:
		for i, p := range payloads {
			agent := agents[i%len(agents)]
			distribution[agent] = append(distribution[agent], p)
		}
	case DistributionBatch:
		batchSize := strategy.BatchSize
		if batchSize < 1 {
			batchSize = 1
		}
		agentIndex := 0
		for start := 0; start < len(payloads); start += batchSize {
			end := start + batchSize
			if end > len(payloads) {
				end = len(payloads)
			}
			agent := agents[agentIndex%len(agents)]
			distribution[agent] = append(distribution[agent], payloads[start:end]...)
			agentIndex++
		}
	case DistributionLoadBalanced:
		// Equal initial load across all agents: degrades to round-robin
		// when no live AgentLoad snapshot is supplied.
		for i, p := range payloads {
			agent := agents[i%len(agents)]
			distribution[agent] = append(distribution[agent], p)
		}
	}

	return distribution, nil
}

func (DefaultPayloadDistributor) CalculateBatchSize(payloadCount, agentCount int) int {
	if agentCount == 0 {
		return payloadCount
	}
	return (payloadCount + agentCount - 1) / agentCount // ceiling division
}

// DistributeLoadBalanced assigns each payload, in order, to the agent
// with the lowest current load at that moment: fewest active requests,
// tie-broken by lowest average response time, then by lowest agent ID
// lexicographically. A working copy of loads is updated to reflect the
// hypothetical requests assigned so the next payload sees an updated
// picture; the caller's slice is not modified.
func DistributeLoadBalanced(payloads []string, loads []AgentLoad) (map[string][]string, error) {
	if len(loads) == 0 {
		return nil, errors.InvalidAttackConfig("no agents available for payload distribution")
	}

	// Work on a local copy so callers' snapshots are untouched.
	working := make([]AgentLoad, len(loads))
	copy(working, loads)

	distribution := make(map[string][]string)
	for _, p := range payloads {
		best := bestAgentIndex(working)
		agent := working[best].AgentID
		distribution[agent] = append(distribution[agent], p)
		working[best].ActiveRequests++
	}
	return distribution, nil
}

func bestAgentIndex(loads []AgentLoad) int {
	best := 0
	for i := 1; i < len(loads); i++ {
		if isBetterAgent(loads[i], loads[best]) {
			best = i
		}
	}
	return best
}

func isBetterAgent(a, b AgentLoad) bool {
	if a.ActiveRequests != b.ActiveRequests {
		return a.ActiveRequests < b.ActiveRequests
	}
	if a.AvgResponseTimeMS != b.AvgResponseTimeMS {
		return a.AvgResponseTimeMS < b.AvgResponseTimeMS
	}
	return a.AgentID < b.AgentID
}

// SortedAgentIDs returns the agent IDs of loads ordered by current
// preference (best first).
func SortedAgentIDs(loads []AgentLoad) []string {
	working := make([]AgentLoad, len(loads))
	copy(working, loads)
	sort.Slice(working, func(i, j int) bool { return isBetterAgent(working[i], working[j]) })
	ids := make([]string, len(working))
	for i, l := range working {
		ids[i] = l.AgentID
	}
	return ids
}
