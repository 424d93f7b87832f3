package attack

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryResultProcessor_StatisticsUnknownAttackErrors(t *testing.T) {
	p := NewInMemoryResultProcessor()
	_, err := p.Statistics(uuid.New())
	assert.Error(t, err)
}

func TestInMemoryResultProcessor_ProcessResultForAccumulatesPerAttack(t *testing.T) {
	p := NewInMemoryResultProcessor()
	attackA := uuid.New()
	attackB := uuid.New()

	p.ProcessResultFor(attackA, AttackResultData{Response: &HTTPResponseData{StatusCode: 200}})
	p.ProcessResultFor(attackA, AttackResultData{Response: &HTTPResponseData{StatusCode: 500}})
	p.ProcessResultFor(attackB, AttackResultData{Err: assertErr("boom")})

	statsA, err := p.Statistics(attackA)
	require.NoError(t, err)
	assert.Equal(t, 2, statsA.TotalRequests)
	assert.Equal(t, 2, statsA.CompletedRequests)

	statsB, err := p.Statistics(attackB)
	require.NoError(t, err)
	assert.Equal(t, 1, statsB.TotalRequests)
	assert.Equal(t, 1, statsB.FailedRequests)
}

func TestInMemoryResultProcessor_ResetClearsOneAttackOnly(t *testing.T) {
	p := NewInMemoryResultProcessor()
	attackA := uuid.New()
	p.ProcessResultFor(attackA, AttackResultData{Response: &HTTPResponseData{StatusCode: 200}})

	p.Reset(attackA)

	_, err := p.Statistics(attackA)
	assert.Error(t, err)
}

func TestScopedResultProcessor_AttributesToItsOwnAttackID(t *testing.T) {
	parent := NewInMemoryResultProcessor()
	attackID := uuid.New()
	scoped := &ScopedResultProcessor{AttackID: attackID, Parent: parent}

	scoped.ProcessResult(AttackResultData{Response: &HTTPResponseData{StatusCode: 201}})

	stats, err := scoped.Statistics(uuid.New()) // argument ignored, scopes to AttackID
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRequests)

	parentStats, err := parent.Statistics(attackID)
	require.NoError(t, err)
	assert.Equal(t, 1, parentStats.TotalRequests)
}
