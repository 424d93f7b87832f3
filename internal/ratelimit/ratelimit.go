// Package ratelimit provides token-bucket rate limiting and a
// priority-aware weighted semaphore. The orchestrator uses the semaphore
// to bound concurrent attacks; no component uses this package to limit
// browsers, recording sessions or per-agent requests.
package ratelimit

import (
	"container/heap"
	"context"
	"sync"

	"golang.org/x/time/rate"

	proxxyerrors "github.com/regaipserdar/proxxy-sub001/internal/errors"
)

// RateLimitConfig configures a token-bucket limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 100, Burst: 200}
}

// RateLimiter wraps golang.org/x/time/rate, adding a Reset hook; no
// component in this repository calls Reset.
type RateLimiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
	config  RateLimitConfig
}

func New(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		config:  cfg,
	}
}

func (r *RateLimiter) Allow() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiter.Allow()
}

func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.RLock()
	l := r.limiter
	r.mu.RUnlock()
	return l.Wait(ctx)
}

func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter = rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst)
}

// Priority of a semaphore waiter. Higher values are served first among
// queued callers once a permit frees up.
type Priority int

const (
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
)

// Semaphore is a weighted, priority-aware counting semaphore bounding one
// of the §5 resource pools. A caller that does not want to queue gets
// ErrNoPermits immediately when the pool is exhausted; a caller willing to
// queue waits, and is served in priority order (ties broken FIFO).
type Semaphore struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	waiters  waiterHeap
	seq      int
}

var ErrNoPermits = proxxyerrors.InvalidAttackConfig("no permits available")

// NewSemaphore creates a semaphore with the given capacity (e.g. 10
// concurrent browsers, 3 concurrent recordings, 10 concurrent attacks, 50
// requests per agent).
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 1
	}
	return &Semaphore{capacity: capacity}
}

type waiter struct {
	priority Priority
	seq      int
	ready    chan struct{}
}

type waiterHeap []*waiter

func (h waiterHeap) Len() int { return len(h) }
func (h waiterHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h waiterHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *waiterHeap) Push(x any)        { *h = append(*h, x.(*waiter)) }
func (h *waiterHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TryAcquire acquires a permit without blocking, returning ErrNoPermits if
// the pool is exhausted.
func (s *Semaphore) TryAcquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inUse >= s.capacity {
		return ErrNoPermits
	}
	s.inUse++
	return nil
}

// Acquire blocks until a permit is available, ctx is cancelled, or the
// caller is woken and served in priority order.
func (s *Semaphore) Acquire(ctx context.Context, priority Priority) error {
	s.mu.Lock()
	if s.inUse < s.capacity && s.waiters.Len() == 0 {
		s.inUse++
		s.mu.Unlock()
		return nil
	}
	s.seq++
	w := &waiter{priority: priority, seq: s.seq, ready: make(chan struct{})}
	heap.Push(&s.waiters, w)
	s.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		s.removeWaiter(w)
		s.mu.Unlock()
		return ctx.Err()
	}
}

func (s *Semaphore) removeWaiter(target *waiter) {
	for i, w := range s.waiters {
		if w == target {
			heap.Remove(&s.waiters, i)
			return
		}
	}
}

// Release returns a permit to the pool, waking the highest-priority waiter.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiters.Len() > 0 {
		w := heap.Pop(&s.waiters).(*waiter)
		close(w.ready)
		return
	}
	if s.inUse > 0 {
		s.inUse--
	}
}

// InUse returns the current number of outstanding permits.
func (s *Semaphore) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}
