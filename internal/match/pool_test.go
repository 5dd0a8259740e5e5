package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

// countingPool records how many times the backing store was read.
type countingPool struct {
	mu         sync.Mutex
	calls      int
	candidates []*domain.Candidate
	err        error
}

func (p *countingPool) List(_ context.Context) ([]*domain.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.candidates, nil
}

func (p *countingPool) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestCachedPool_ReusesWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	backing := &countingPool{candidates: []*domain.Candidate{{UserID: "u-1"}}}
	pool := NewCachedPool(backing, WithPoolTTL(5*time.Minute), WithPoolClock(clock.Now))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		got, err := pool.List(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
	assert.Equal(t, 1, backing.callCount())
}

func TestCachedPool_RefreshesAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	backing := &countingPool{candidates: []*domain.Candidate{{UserID: "u-1"}}}
	pool := NewCachedPool(backing, WithPoolTTL(5*time.Minute), WithPoolClock(clock.Now))

	ctx := context.Background()
	_, err := pool.List(ctx)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	_, err = pool.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, backing.callCount())
}

func TestCachedPool_InvalidateForcesRefetch(t *testing.T) {
	backing := &countingPool{candidates: []*domain.Candidate{{UserID: "u-1"}}}
	pool := NewCachedPool(backing)

	ctx := context.Background()
	_, _ = pool.List(ctx)
	pool.Invalidate()
	_, _ = pool.List(ctx)

	assert.Equal(t, 2, backing.callCount())
}

func TestCachedPool_ServesStaleOnFetchError(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	backing := &countingPool{candidates: []*domain.Candidate{{UserID: "u-1"}}}
	pool := NewCachedPool(backing, WithPoolTTL(time.Minute), WithPoolClock(clock.Now))

	ctx := context.Background()
	_, err := pool.List(ctx)
	require.NoError(t, err)

	backing.err = errors.New("storage down")
	clock.Advance(2 * time.Minute)

	got, err := pool.List(ctx)
	require.NoError(t, err, "warm cache absorbs the fetch error")
	assert.Len(t, got, 1)
}

func TestCachedPool_ErrorWithColdCache(t *testing.T) {
	backing := &countingPool{err: errors.New("storage down")}
	pool := NewCachedPool(backing)

	_, err := pool.List(context.Background())
	assert.Error(t, err)
}
