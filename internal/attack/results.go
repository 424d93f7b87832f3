package attack

import (
	"sync"

	"github.com/google/uuid"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

// InMemoryResultProcessor folds every completed AttackResultData into a
// per-attack AttackStatistics, keyed by attack ID. It never persists
// anything past process lifetime — a complete deployment would back this
// with a store, but nothing in this system requires attack history to
// survive a restart.
type InMemoryResultProcessor struct {
	mu    sync.Mutex
	stats map[uuid.UUID]*AttackStatistics
}

// NewInMemoryResultProcessor builds an empty InMemoryResultProcessor.
func NewInMemoryResultProcessor() *InMemoryResultProcessor {
	return &InMemoryResultProcessor{stats: make(map[uuid.UUID]*AttackStatistics)}
}

// ProcessResult folds result into a shared bucket keyed by uuid.Nil.
// Engine.StartAttack calls ResultProcessor.ProcessResult without an
// attack ID, so attributing a result to a specific attack requires
// wrapping this processor in a ScopedResultProcessor per attack rather
// than calling this method directly against a multi-attack engine.
func (p *InMemoryResultProcessor) ProcessResult(result AttackResultData) {
	p.ProcessResultFor(uuid.Nil, result)
}

// ProcessResultFor folds result into attackID's running statistics.
func (p *InMemoryResultProcessor) ProcessResultFor(attackID uuid.UUID, result AttackResultData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stats[attackID]
	if !ok {
		s = &AttackStatistics{}
		p.stats[attackID] = s
	}
	s.Record(result)
}

// Statistics returns a copy of attackID's accumulated statistics, or an
// InvalidAttackConfig error if nothing has ever been recorded for it.
func (p *InMemoryResultProcessor) Statistics(attackID uuid.UUID) (AttackStatistics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stats[attackID]
	if !ok {
		return AttackStatistics{}, errors.InvalidAttackConfig("no statistics recorded for attack " + attackID.String())
	}
	return *s, nil
}

// Reset clears attackID's accumulated statistics, if any.
func (p *InMemoryResultProcessor) Reset(attackID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.stats, attackID)
}

// ScopedResultProcessor adapts a shared InMemoryResultProcessor to the
// ResultProcessor interface for exactly one attack. Engine's
// ProcessResult call carries no attack ID, so the orchestrator's control
// API builds one Engine per StartAttack call with a fresh
// ScopedResultProcessor closing over that attack's ID.
type ScopedResultProcessor struct {
	AttackID uuid.UUID
	Parent   *InMemoryResultProcessor
}

func (s *ScopedResultProcessor) ProcessResult(result AttackResultData) {
	s.Parent.ProcessResultFor(s.AttackID, result)
}

func (s *ScopedResultProcessor) Statistics(uuid.UUID) (AttackStatistics, error) {
	return s.Parent.Statistics(s.AttackID)
}
