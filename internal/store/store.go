// Package store defines the task persistence contract consumed by the
// orchestrator, plus an in-memory implementation for tests and single-node
// runs. The durable implementation lives in internal/postgres.
package store

import (
	"context"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Statuses   []domain.Status
	AssigneeID string
	CreatorID  string
	Limit      int
}

// Matches reports whether t satisfies the filter.
func (f Filter) Matches(t *domain.Task) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if t.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.AssigneeID != "" && t.AssigneeID != f.AssigneeID {
		return false
	}
	if f.CreatorID != "" && t.CreatorID != f.CreatorID {
		return false
	}
	return true
}

// TaskStore abstracts task persistence. UpdateIf is the compare-and-swap
// primitive the orchestrator relies on: the write applies only while the
// stored status still equals expect, so racing transitions on one task cannot
// both commit.
type TaskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id string) (*domain.Task, error)
	UpdateIf(ctx context.Context, task *domain.Task, expect domain.Status) (bool, error)
	List(ctx context.Context, f Filter) ([]*domain.Task, error)
}
