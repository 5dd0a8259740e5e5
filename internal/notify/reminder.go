package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/justDance-everybody/Taskbot-MVP/internal/kafka"
	"github.com/justDance-everybody/Taskbot-MVP/internal/monitor"
	"github.com/justDance-everybody/Taskbot-MVP/pkg/retry"
	"github.com/justDance-everybody/Taskbot-MVP/pkg/telemetry"
)

// ReminderEvent is the wire shape of one deadline reminder, consumed by the
// chat transport that nudges the assignee.
type ReminderEvent struct {
	TaskID           string    `json:"task_id"`
	Title            string    `json:"title"`
	AssigneeID       string    `json:"assignee_id"`
	Stage            string    `json:"stage"`
	Deadline         time.Time `json:"deadline"`
	RemainingSeconds int64     `json:"remaining_seconds"` // negative when overdue
}

// KafkaReminderSink publishes deadline reminders and the daily report to the
// reminders topic. Failures are counted and logged, never propagated: a
// missed nudge must not stop the sweep.
type KafkaReminderSink struct {
	producer kafka.Producer
	topic    string
	logger   *slog.Logger
	retryCfg retry.Config
}

var (
	_ monitor.ReminderSink = (*KafkaReminderSink)(nil)
	_ monitor.ReportSink   = (*KafkaReminderSink)(nil)
)

// NewKafkaReminderSink builds a sink over producer. An empty topic selects
// kafka.TopicReminders.
func NewKafkaReminderSink(producer kafka.Producer, topic string, logger *slog.Logger) *KafkaReminderSink {
	if topic == "" {
		topic = kafka.TopicReminders
	}
	return &KafkaReminderSink{
		producer: producer,
		topic:    topic,
		logger:   logger,
		retryCfg: retry.Config{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond},
	}
}

// Remind publishes one reminder keyed by task ID.
func (s *KafkaReminderSink) Remind(ctx context.Context, r monitor.Reminder) {
	s.publish(ctx, "reminder", r.Task.ID, ReminderEvent{
		TaskID:           r.Task.ID,
		Title:            r.Task.Title,
		AssigneeID:       r.Task.AssigneeID,
		Stage:            string(r.Stage),
		Deadline:         r.Task.Deadline,
		RemainingSeconds: int64(r.Remaining.Seconds()),
	})
}

// Publish publishes the daily report under a fixed key.
func (s *KafkaReminderSink) Publish(ctx context.Context, rep monitor.StatusReport) {
	s.publish(ctx, "report", "daily-report", rep)
}

func (s *KafkaReminderSink) publish(ctx context.Context, kind, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal "+kind, slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	err = retry.Do(ctx, s.retryCfg, func() error {
		return s.producer.Publish(ctx, s.topic, key, payload)
	})
	if err != nil {
		telemetry.NotifyFailuresTotal.Inc()
		s.logger.Error(kind+" publish failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	telemetry.NotifyPublishedTotal.WithLabelValues(kind).Inc()
}
