package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAdmitCreation_DuplicateWithinWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	g := New(WithWindow(5*time.Minute), WithClock(clock.Now))

	h := CreationHash("Fix login bug", "the session cookie expires early", "u-1")

	assert.True(t, g.AdmitCreation(h), "first admit")
	assert.False(t, g.AdmitCreation(h), "duplicate inside window")
}

func TestAdmitCreation_ReadmittedAfterWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	g := New(WithWindow(5*time.Minute), WithClock(clock.Now))

	h := CreationHash("title", "desc", "u-1")

	assert.True(t, g.AdmitCreation(h))
	assert.False(t, g.AdmitCreation(h))

	clock.Advance(5 * time.Minute)
	assert.True(t, g.AdmitCreation(h), "window elapsed, same hash admitted again")
}

func TestAdmitCreation_ExpiredEntriesSwept(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	g := New(WithWindow(time.Minute), WithClock(clock.Now))

	for i := 0; i < 50; i++ {
		g.AdmitCreation(fmt.Sprintf("hash-%d", i))
	}
	clock.Advance(2 * time.Minute)

	// Next admit sweeps everything expired.
	g.AdmitCreation("fresh")
	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Len(t, g.creations, 1)
}

func TestAdmitMessage_DuplicateRejected(t *testing.T) {
	g := New()

	assert.True(t, g.AdmitMessage("om_abc"))
	assert.False(t, g.AdmitMessage("om_abc"))
	assert.True(t, g.AdmitMessage("om_def"))
}

func TestAdmitMessage_BoundedEviction(t *testing.T) {
	g := New(WithMessageCap(10))

	for i := 0; i < 11; i++ {
		assert.True(t, g.AdmitMessage(fmt.Sprintf("m-%d", i)))
	}

	// Overflow evicted the oldest half (m-0..m-4); they are admissible again.
	assert.True(t, g.AdmitMessage("m-0"))
	// Recent IDs survived the eviction.
	assert.False(t, g.AdmitMessage("m-10"))

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.LessOrEqual(t, len(g.messages), 10+1)
}

func TestGuard_ClearResetsState(t *testing.T) {
	g := New()
	g.AdmitCreation("h1")
	g.AdmitMessage("m1")

	g.Clear()

	assert.True(t, g.AdmitCreation("h1"))
	assert.True(t, g.AdmitMessage("m1"))
}

func TestGuard_ConcurrentAdmits(t *testing.T) {
	g := New(WithMessageCap(100))

	var wg sync.WaitGroup
	admitted := make([]bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// All goroutines race on the same creation hash; IDs differ.
			g.AdmitCreation("same-hash")
			admitted[i] = g.AdmitMessage(fmt.Sprintf("m-%d", i))
		}(i)
	}
	wg.Wait()

	for i, ok := range admitted {
		assert.True(t, ok, "message m-%d should have been admitted once", i)
	}
}

func TestLayered_LocalShortCircuitsShared(t *testing.T) {
	local := New()
	shared := New()
	layered := &Layered{Local: local, Shared: shared}

	assert.True(t, layered.AdmitMessage("m-1"))
	assert.False(t, layered.AdmitMessage("m-1"))
	// The shared guard saw the first admit, so it rejects directly too.
	assert.False(t, shared.AdmitMessage("m-1"))

	// A hash the shared guard already holds is rejected even when the local
	// guard (say, a fresh instance) admits it.
	shared.AdmitCreation("h-1")
	assert.False(t, layered.AdmitCreation("h-1"))
	assert.True(t, layered.AdmitCreation("h-2"))
}

func TestCreationHash_NormalizesContent(t *testing.T) {
	a := CreationHash("Fix Login", "  desc  ", "u-1")
	b := CreationHash("  fix login ", "desc", "u-1")
	c := CreationHash("fix login", "desc", "u-2")

	assert.Equal(t, a, b, "case and whitespace must not change the hash")
	assert.NotEqual(t, a, c, "different creator yields a different hash")
}
