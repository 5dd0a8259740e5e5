package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Orchestrator ────────────────────────────────────────────────────────────

	TasksCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "orchestrator",
		Name:      "tasks_created_total",
		Help:      "Total tasks created, labelled by urgency.",
	}, []string{"urgency"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "orchestrator",
		Name:      "transitions_total",
		Help:      "Total committed status transitions, labelled by target status.",
	}, []string{"to"})

	ReviewFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "orchestrator",
		Name:      "review_failures_total",
		Help:      "Total evaluator failures that left a task flagged for manual review.",
	})

	// ─── Matcher ─────────────────────────────────────────────────────────────────

	MatchRankTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "match",
		Name:      "rank_total",
		Help:      "Total ranking calls, labelled by the path that produced the result (ai | rules).",
	}, []string{"path"})

	MatchFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "match",
		Name:      "fallback_total",
		Help:      "Total AI ranking attempts that fell back to the rule-based path.",
	})

	MatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "taskbot",
		Subsystem: "match",
		Name:      "rank_duration_seconds",
		Help:      "End-to-end candidate ranking time in seconds.",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 3, 5},
	})

	// ─── Dedup guard ─────────────────────────────────────────────────────────────

	DedupHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "dedup",
		Name:      "hits_total",
		Help:      "Total duplicate requests suppressed, labelled by kind (creation | message).",
	}, []string{"kind"})

	// ─── Notifications ───────────────────────────────────────────────────────────

	NotifyPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "notify",
		Name:      "published_total",
		Help:      "Total events published, labelled by kind (a lifecycle transition, reminder, or report).",
	}, []string{"kind"})

	NotifyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "notify",
		Name:      "failures_total",
		Help:      "Total events dropped after exhausting publish retries.",
	})

	// ─── Deadline monitor ────────────────────────────────────────────────────────

	RemindersSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "monitor",
		Name:      "reminders_sent_total",
		Help:      "Total deadline reminders sent, labelled by stage (progress | final | overdue).",
	}, []string{"stage"})
)
