// Package dedup absorbs the duplicate creation requests and re-delivered
// inbound messages produced by at-least-once chat transports. Both checks are
// plain admit/reject calls so webhook handlers can gate early and cheaply.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultWindow is how long an identical creation request is suppressed.
	DefaultWindow = 5 * time.Minute
	// DefaultMessageCap bounds the seen message-ID set.
	DefaultMessageCap = 1000
)

// Admitter is the guard contract consumed by handlers. Implementations must
// be safe for concurrent use.
type Admitter interface {
	AdmitCreation(hash string) bool
	AdmitMessage(messageID string) bool
}

// Guard is the in-process Admitter. Creation hashes live in a sliding time
// window swept lazily on admit; message IDs live in a bounded set that drops
// its oldest half (insertion order) on overflow. All state is instance-local
// so tests can construct isolated guards.
type Guard struct {
	mu sync.Mutex

	window    time.Duration
	creations map[string]time.Time

	messageCap int
	messages   map[string]struct{}
	order      []string // message IDs in admission order, for deterministic eviction

	now func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithWindow overrides the creation dedup window.
func WithWindow(d time.Duration) Option { return func(g *Guard) { g.window = d } }

// WithMessageCap overrides the seen-message capacity.
func WithMessageCap(n int) Option { return func(g *Guard) { g.messageCap = n } }

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option { return func(g *Guard) { g.now = now } }

// New constructs a Guard with the given options.
func New(opts ...Option) *Guard {
	g := &Guard{
		window:     DefaultWindow,
		creations:  make(map[string]time.Time),
		messageCap: DefaultMessageCap,
		messages:   make(map[string]struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AdmitCreation returns false, with no side effect, when an identical hash was
// admitted within the window. Otherwise it records the hash and returns true.
// Expired entries are swept on every call, so nothing is retained past the
// window plus one admit.
func (g *Guard) AdmitCreation(hash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for h, seen := range g.creations {
		if now.Sub(seen) >= g.window {
			delete(g.creations, h)
		}
	}

	if _, dup := g.creations[hash]; dup {
		return false
	}
	g.creations[hash] = now
	return true
}

// AdmitMessage returns false when messageID was already seen. On overflow the
// oldest half of the set is evicted in admission order — not LRU-exact, but
// bounded and deterministic.
func (g *Guard) AdmitMessage(messageID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, dup := g.messages[messageID]; dup {
		return false
	}
	g.messages[messageID] = struct{}{}
	g.order = append(g.order, messageID)

	if len(g.messages) > g.messageCap {
		drop := g.order[:g.messageCap/2]
		for _, id := range drop {
			delete(g.messages, id)
		}
		g.order = append([]string(nil), g.order[g.messageCap/2:]...)
	}
	return true
}

// Clear drops all guard state.
func (g *Guard) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creations = make(map[string]time.Time)
	g.messages = make(map[string]struct{})
	g.order = nil
}

// Close releases the guard. Present so the guard can sit behind the same
// lifecycle as its Redis-backed sibling.
func (g *Guard) Close() error {
	g.Clear()
	return nil
}

// Layered stacks a local Admitter in front of a shared one. The local guard
// absorbs duplicates this process has already seen without a network round
// trip; anything it admits is still checked against the shared guard, which
// stays authoritative across instances.
type Layered struct {
	Local  Admitter
	Shared Admitter
}

var _ Admitter = (*Layered)(nil)

func (l *Layered) AdmitCreation(hash string) bool {
	if !l.Local.AdmitCreation(hash) {
		return false
	}
	return l.Shared.AdmitCreation(hash)
}

func (l *Layered) AdmitMessage(messageID string) bool {
	if !l.Local.AdmitMessage(messageID) {
		return false
	}
	return l.Shared.AdmitMessage(messageID)
}

// CreationHash derives a stable dedup key from the normalized creation
// request content: title, description and creator, lowercased and
// whitespace-trimmed.
func CreationHash(title, description, creatorID string) string {
	norm := strings.ToLower(strings.TrimSpace(title)) + "\x00" +
		strings.ToLower(strings.TrimSpace(description)) + "\x00" +
		strings.TrimSpace(creatorID)
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}
