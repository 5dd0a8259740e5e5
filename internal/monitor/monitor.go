// Package monitor watches task deadlines and nudges assignees before they
// slip. It also publishes a daily status report on a cron schedule.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
	"github.com/justDance-everybody/Taskbot-MVP/internal/store"
	"github.com/justDance-everybody/Taskbot-MVP/pkg/telemetry"
)

const (
	// DefaultInterval is how often deadlines are swept.
	DefaultInterval = 10 * time.Minute
	// DefaultReportSchedule publishes the daily report at 09:00.
	DefaultReportSchedule = "0 9 * * *"
	// finalWindow is how close to the deadline the final reminder fires.
	finalWindow = 6 * time.Hour
	// progressFraction is how far into the task's lifetime the first
	// reminder fires.
	progressFraction = 0.8
)

// Stage identifies which reminder a task has reached.
type Stage string

const (
	StageProgress Stage = "progress" // 80% of the time budget spent
	StageFinal    Stage = "final"    // under 6h remaining
	StageOverdue  Stage = "overdue"  // deadline passed, task still open
)

// Reminder is one deadline nudge for a task.
type Reminder struct {
	Task      *domain.Task
	Stage     Stage
	Remaining time.Duration // negative when overdue
}

// ReminderSink receives reminders. Implementations must tolerate concurrent
// calls.
type ReminderSink interface {
	Remind(ctx context.Context, r Reminder)
}

// ReportSink receives the daily status report.
type ReportSink interface {
	Publish(ctx context.Context, rep StatusReport)
}

// StatusReport is the daily aggregate snapshot of the task board.
type StatusReport struct {
	GeneratedAt    time.Time              `json:"generated_at"`
	Total          int                    `json:"total"`
	ByStatus       map[domain.Status]int  `json:"by_status"`
	ByUrgency      map[domain.Urgency]int `json:"by_urgency"`
	Overdue        int                    `json:"overdue"`
	CompletionRate float64                `json:"completion_rate"`
}

// FanoutSink delivers each reminder to every sink in order.
type FanoutSink []ReminderSink

func (f FanoutSink) Remind(ctx context.Context, r Reminder) {
	for _, s := range f {
		s.Remind(ctx, r)
	}
}

// LogSink writes reminders to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) Remind(_ context.Context, r Reminder) {
	s.Logger.Warn("task deadline reminder",
		slog.String("task_id", r.Task.ID),
		slog.String("stage", string(r.Stage)),
		slog.String("assignee_id", r.Task.AssigneeID),
		slog.Duration("remaining", r.Remaining),
	)
}

// Monitor sweeps open tasks and fires each reminder stage at most once per
// task. Sent-stage bookkeeping is in-memory; after a restart a stage may fire
// again, which is acceptable for a nudge.
type Monitor struct {
	store    store.TaskStore
	sink     ReminderSink
	reports  ReportSink // nil keeps the report log-only
	logger   *slog.Logger
	interval time.Duration
	schedule string
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]map[Stage]bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides the sweep interval.
func WithInterval(d time.Duration) Option { return func(m *Monitor) { m.interval = d } }

// WithReportSchedule overrides the daily report cron expression.
func WithReportSchedule(expr string) Option { return func(m *Monitor) { m.schedule = expr } }

// WithReportSink publishes the daily report beyond the log.
func WithReportSink(s ReportSink) Option { return func(m *Monitor) { m.reports = s } }

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option { return func(m *Monitor) { m.logger = l } }

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

// New constructs a Monitor over the given store and reminder sink.
func New(ts store.TaskStore, sink ReminderSink, opts ...Option) *Monitor {
	m := &Monitor{
		store:    ts,
		sink:     sink,
		logger:   slog.Default(),
		interval: DefaultInterval,
		schedule: DefaultReportSchedule,
		now:      time.Now,
		sent:     make(map[string]map[Stage]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run sweeps deadlines on the interval and publishes the daily report on the
// cron schedule until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(m.schedule, func() { m.Report(ctx) }); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

var openStatuses = []domain.Status{
	domain.StatusPending,
	domain.StatusAssigned,
	domain.StatusInProgress,
	domain.StatusSubmitted,
	domain.StatusReviewing,
}

// Sweep fires due reminders for every open task.
func (m *Monitor) Sweep(ctx context.Context) {
	tasks, err := m.store.List(ctx, store.Filter{Statuses: openStatuses})
	if err != nil {
		m.logger.Error("deadline sweep failed", slog.String("error", err.Error()))
		return
	}

	now := m.now()
	open := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		open[task.ID] = true
		stage, ok := dueStage(task, now)
		if !ok || m.alreadySent(task.ID, stage) {
			continue
		}
		m.markSent(task.ID, stage)
		telemetry.RemindersSentTotal.WithLabelValues(string(stage)).Inc()
		m.sink.Remind(ctx, Reminder{Task: task, Stage: stage, Remaining: task.Deadline.Sub(now)})
	}
	m.prune(open)
}

// dueStage picks the most urgent stage the task has reached, or false if none.
func dueStage(task *domain.Task, now time.Time) (Stage, bool) {
	if task.Deadline.IsZero() {
		return "", false
	}
	remaining := task.Deadline.Sub(now)
	switch {
	case remaining <= 0:
		return StageOverdue, true
	case remaining <= finalWindow:
		return StageFinal, true
	}
	total := task.Deadline.Sub(task.CreatedAt)
	if total > 0 && float64(now.Sub(task.CreatedAt))/float64(total) >= progressFraction {
		return StageProgress, true
	}
	return "", false
}

func (m *Monitor) alreadySent(taskID string, stage Stage) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[taskID][stage]
}

func (m *Monitor) markSent(taskID string, stage Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent[taskID] == nil {
		m.sent[taskID] = make(map[Stage]bool)
	}
	m.sent[taskID][stage] = true
}

// prune drops bookkeeping for tasks that are no longer open.
func (m *Monitor) prune(open map[string]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.sent {
		if !open[id] {
			delete(m.sent, id)
		}
	}
}

// Report aggregates a snapshot of task counts, logs it and publishes it
// through the report sink when one is configured.
func (m *Monitor) Report(ctx context.Context) {
	tasks, err := m.store.List(ctx, store.Filter{})
	if err != nil {
		m.logger.Error("daily report failed", slog.String("error", err.Error()))
		return
	}
	now := m.now()
	rep := StatusReport{
		GeneratedAt: now,
		Total:       len(tasks),
		ByStatus:    make(map[domain.Status]int),
		ByUrgency:   make(map[domain.Urgency]int),
	}
	for _, task := range tasks {
		rep.ByStatus[task.Status]++
		rep.ByUrgency[task.Urgency]++
		if !task.Status.IsTerminal() && !task.Deadline.IsZero() && task.Deadline.Before(now) {
			rep.Overdue++
		}
	}
	closed := rep.ByStatus[domain.StatusCompleted] + rep.ByStatus[domain.StatusRejected]
	if closed > 0 {
		rep.CompletionRate = float64(rep.ByStatus[domain.StatusCompleted]) / float64(closed)
	}

	m.logger.Info("daily task report",
		slog.Int("total", rep.Total),
		slog.Int("pending", rep.ByStatus[domain.StatusPending]),
		slog.Int("assigned", rep.ByStatus[domain.StatusAssigned]),
		slog.Int("in_progress", rep.ByStatus[domain.StatusInProgress]),
		slog.Int("reviewing", rep.ByStatus[domain.StatusSubmitted]+rep.ByStatus[domain.StatusReviewing]),
		slog.Int("completed", rep.ByStatus[domain.StatusCompleted]),
		slog.Int("rejected", rep.ByStatus[domain.StatusRejected]),
		slog.Int("cancelled", rep.ByStatus[domain.StatusCancelled]),
		slog.Int("overdue", rep.Overdue),
		slog.Float64("completion_rate", rep.CompletionRate),
		slog.Int("high_urgency", rep.ByUrgency[domain.UrgencyHigh]+rep.ByUrgency[domain.UrgencyUrgent]),
	)
	if m.reports != nil {
		m.reports.Publish(ctx, rep)
	}
}
