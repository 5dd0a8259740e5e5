package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

// MemoryStore is a mutex-guarded in-memory TaskStore. Tasks are copied on
// every read and write so callers never share mutable state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*domain.Task)}
}

var _ TaskStore = (*MemoryStore)(nil)

func (s *MemoryStore) Create(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = clone(task)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, &domain.NotFoundError{TaskID: id}
	}
	return clone(t), nil
}

func (s *MemoryStore) UpdateIf(_ context.Context, task *domain.Task, expect domain.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[task.ID]
	if !ok {
		return false, &domain.NotFoundError{TaskID: task.ID}
	}
	if cur.Status != expect {
		return false, nil
	}
	s.tasks[task.ID] = clone(task)
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Task
	for _, t := range s.tasks {
		if f.Matches(t) {
			out = append(out, clone(t))
		}
	}
	// Newest first, matching the postgres ORDER BY created_at DESC.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func clone(t *domain.Task) *domain.Task {
	c := *t
	c.RequiredSkills = append([]string(nil), t.RequiredSkills...)
	c.Score = clonePtrInt(t.Score)
	c.AssignedAt = clonePtrTime(t.AssignedAt)
	c.SubmittedAt = clonePtrTime(t.SubmittedAt)
	c.CompletedAt = clonePtrTime(t.CompletedAt)
	c.RejectedAt = clonePtrTime(t.RejectedAt)
	c.CancelledAt = clonePtrTime(t.CancelledAt)
	return &c
}

func clonePtrInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clonePtrTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
