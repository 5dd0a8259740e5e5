// Package notify carries task lifecycle events from the orchestrator to
// whatever wants them: the log, a Kafka topic for downstream bots, the Redis
// snapshot store. Subscribers are fanned out synchronously; a failing sink
// never blocks a transition from committing.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

// Transition names the lifecycle edge an event describes.
type Transition string

const (
	TransitionCreated   Transition = "created"
	TransitionAssigned  Transition = "assigned"
	TransitionAccepted  Transition = "accepted"
	TransitionSubmitted Transition = "submitted"
	TransitionReturned  Transition = "returned" // review failed, retries remain
	TransitionCompleted Transition = "completed"
	TransitionRejected  Transition = "rejected"
	TransitionCancelled Transition = "cancelled"
)

// Event is one lifecycle notification: the task after the transition, plus
// the transition name.
type Event struct {
	Transition Transition   `json:"transition"`
	Task       *domain.Task `json:"task"`
	At         time.Time    `json:"at"`
}

// Notifier receives lifecycle events. Implementations must tolerate
// concurrent calls and must not block indefinitely.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Fanout delivers each event to every registered notifier in order.
type Fanout struct {
	sinks []Notifier
}

// NewFanout builds a Fanout over the given sinks.
func NewFanout(sinks ...Notifier) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Notify(ctx context.Context, ev Event) {
	for _, s := range f.sinks {
		s.Notify(ctx, ev)
	}
}

// LogNotifier writes every lifecycle event to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) {
	n.Logger.Info("task lifecycle event",
		slog.String("transition", string(ev.Transition)),
		slog.String("task_id", ev.Task.ID),
		slog.String("status", string(ev.Task.Status)),
	)
}

// Discard drops all events. Used by tests.
type Discard struct{}

func (Discard) Notify(context.Context, Event) {}
