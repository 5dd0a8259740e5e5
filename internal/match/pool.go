package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

// DefaultPoolTTL is how long a fetched candidate list is reused before the
// backing pool is read again.
const DefaultPoolTTL = 5 * time.Minute

// CandidatePool lists the people currently eligible for assignment.
type CandidatePool interface {
	List(ctx context.Context) ([]*domain.Candidate, error)
}

// CachedPool wraps a CandidatePool with a short TTL cache so successive
// ranking calls don't hammer storage. Staleness only affects ranking
// freshness, never task-state correctness, so the cache is best-effort:
// a fetch error with a warm (even expired) cache falls back to the cached
// list. Explicitly constructed and invalidatable — no package state.
type CachedPool struct {
	inner CandidatePool
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	cached    []*domain.Candidate
	fetchedAt time.Time
}

// PoolOption configures a CachedPool.
type PoolOption func(*CachedPool)

// WithPoolTTL overrides the cache TTL.
func WithPoolTTL(d time.Duration) PoolOption { return func(p *CachedPool) { p.ttl = d } }

// WithPoolClock overrides the time source. Used by tests.
func WithPoolClock(now func() time.Time) PoolOption { return func(p *CachedPool) { p.now = now } }

// NewCachedPool wraps inner with a TTL cache.
func NewCachedPool(inner CandidatePool, opts ...PoolOption) *CachedPool {
	p := &CachedPool{inner: inner, ttl: DefaultPoolTTL, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ CandidatePool = (*CachedPool)(nil)

// List returns the cached candidate list, refreshing it from the backing
// pool when the TTL has elapsed.
func (p *CachedPool) List(ctx context.Context) ([]*domain.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.now().Sub(p.fetchedAt) < p.ttl {
		return p.cached, nil
	}

	fresh, err := p.inner.List(ctx)
	if err != nil {
		if p.cached != nil {
			// Serve stale rather than fail the ranking.
			return p.cached, nil
		}
		return nil, fmt.Errorf("candidate pool fetch: %w", err)
	}
	p.cached = fresh
	p.fetchedAt = p.now()
	return p.cached, nil
}

// Invalidate drops the cached list; the next List call hits the backing pool.
func (p *CachedPool) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = nil
	p.fetchedAt = time.Time{}
}

// Close releases the cache.
func (p *CachedPool) Close() error {
	p.Invalidate()
	return nil
}

// StaticPool is a fixed candidate list. Used by tests and local runs.
type StaticPool struct {
	Candidates []*domain.Candidate
}

func (s *StaticPool) List(_ context.Context) ([]*domain.Candidate, error) {
	return s.Candidates, nil
}
