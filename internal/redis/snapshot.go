package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
	"github.com/justDance-everybody/Taskbot-MVP/internal/notify"
)

const snapshotTTL = 24 * time.Hour

func statusKey(taskID string) string   { return "task:status:" + taskID }
func snapshotKey(taskID string) string { return "task:snapshot:" + taskID }

// SnapshotStore caches the latest task state in Redis so chat handlers can
// answer status queries without touching PostgreSQL. It is a read-through
// cache, never the source of truth.
type SnapshotStore struct {
	client *redis.Client
}

// NewSnapshotStore creates a Redis-backed SnapshotStore.
func NewSnapshotStore(client *redis.Client) *SnapshotStore {
	return &SnapshotStore{client: client}
}

// SetTask stores the full task snapshot plus a separate status key for cheap
// status-only reads.
func (s *SnapshotStore) SetTask(ctx context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task snapshot: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, snapshotKey(task.ID), data, snapshotTTL)
	pipe.Set(ctx, statusKey(task.ID), string(task.Status), snapshotTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set snapshot for %s: %w", task.ID, err)
	}
	return nil
}

// GetTask returns the cached snapshot, or NotFoundError when none exists.
func (s *SnapshotStore) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := s.client.Get(ctx, snapshotKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &domain.NotFoundError{TaskID: taskID}
		}
		return nil, fmt.Errorf("redis get snapshot for %s: %w", taskID, err)
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task snapshot: %w", err)
	}
	return &task, nil
}

// GetStatus returns just the cached status.
func (s *SnapshotStore) GetStatus(ctx context.Context, taskID string) (domain.Status, error) {
	val, err := s.client.Get(ctx, statusKey(taskID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", &domain.NotFoundError{TaskID: taskID}
		}
		return "", fmt.Errorf("redis get status for %s: %w", taskID, err)
	}
	return domain.Status(val), nil
}

// Notifier keeps the snapshot store current by subscribing to lifecycle
// events. A failed write only costs cache freshness, so it is logged and
// dropped.
type Notifier struct {
	store  *SnapshotStore
	logger *slog.Logger
}

var _ notify.Notifier = (*Notifier)(nil)

// NewNotifier builds a lifecycle sink that mirrors tasks into the snapshot
// store.
func NewNotifier(store *SnapshotStore, logger *slog.Logger) *Notifier {
	return &Notifier{store: store, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, ev notify.Event) {
	if err := n.store.SetTask(ctx, ev.Task); err != nil {
		n.logger.Warn("snapshot update failed",
			slog.String("task_id", ev.Task.ID),
			slog.String("transition", string(ev.Transition)),
			slog.String("error", err.Error()),
		)
	}
}
