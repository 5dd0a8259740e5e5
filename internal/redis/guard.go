// Package redis holds the Redis-backed siblings of the in-process components:
// a dedup guard shared across replicas and a task snapshot store for fast
// status reads.
package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/justDance-everybody/Taskbot-MVP/internal/dedup"
)

// NewClient creates and returns a new Redis client.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
}

func creationKey(hash string) string    { return "dedup:creation:" + hash }
func messageKey(messageID string) string { return "dedup:message:" + messageID }

// Guard is the multi-replica dedup guard: SET NX with a TTL gives the same
// admit-once semantics as the in-process guard, shared across instances.
// Redis errors fail open — a duplicate slipping through is recoverable, a
// creation request silently dropped is not.
type Guard struct {
	client     *redis.Client
	window     time.Duration
	messageTTL time.Duration
	logger     *slog.Logger
}

var _ dedup.Admitter = (*Guard)(nil)

// Option configures a Guard.
type Option func(*Guard)

// WithWindow overrides the creation dedup window.
func WithWindow(d time.Duration) Option { return func(g *Guard) { g.window = d } }

// WithMessageTTL overrides how long seen message IDs are retained. The TTL
// replaces the in-process guard's capacity bound; Redis evicts by expiry.
func WithMessageTTL(d time.Duration) Option { return func(g *Guard) { g.messageTTL = d } }

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Guard) { g.logger = l } }

// NewGuard builds a Redis-backed Admitter.
func NewGuard(client *redis.Client, opts ...Option) *Guard {
	g := &Guard{
		client:     client,
		window:     dedup.DefaultWindow,
		messageTTL: time.Hour,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AdmitCreation returns false when an identical creation hash was admitted
// within the window on any replica.
func (g *Guard) AdmitCreation(hash string) bool {
	return g.admit(creationKey(hash), g.window)
}

// AdmitMessage returns false when the message ID was already seen.
func (g *Guard) AdmitMessage(messageID string) bool {
	return g.admit(messageKey(messageID), g.messageTTL)
}

func (g *Guard) admit(key string, ttl time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := g.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		g.logger.Error("dedup guard redis error, admitting",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return true
	}
	return ok
}

// Clear drops all guard keys. Used by tests.
func (g *Guard) Clear(ctx context.Context) error {
	for _, pattern := range []string{"dedup:creation:*", "dedup:message:*"} {
		iter := g.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := g.client.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying client.
func (g *Guard) Close() error {
	return g.client.Close()
}
