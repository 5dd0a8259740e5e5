package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/justDance-everybody/Taskbot-MVP/internal/kafka"
	"github.com/justDance-everybody/Taskbot-MVP/pkg/retry"
	"github.com/justDance-everybody/Taskbot-MVP/pkg/telemetry"
)

// KafkaNotifier publishes lifecycle events to the lifecycle topic, keyed by
// task ID so per-task ordering holds. Publishing is retried briefly; a
// definitive failure is counted and logged but never propagated — the
// transition has already committed.
type KafkaNotifier struct {
	producer kafka.Producer
	topic    string
	logger   *slog.Logger
	retryCfg retry.Config
}

var _ Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier builds a notifier over producer. An empty topic selects
// kafka.TopicLifecycle.
func NewKafkaNotifier(producer kafka.Producer, topic string, logger *slog.Logger) *KafkaNotifier {
	if topic == "" {
		topic = kafka.TopicLifecycle
	}
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		logger:   logger,
		retryCfg: retry.Config{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond},
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("marshal lifecycle event",
			slog.String("task_id", ev.Task.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	err = retry.Do(ctx, n.retryCfg, func() error {
		return n.producer.Publish(ctx, n.topic, ev.Task.ID, payload)
	})
	if err != nil {
		telemetry.NotifyFailuresTotal.Inc()
		n.logger.Error("lifecycle event publish failed",
			slog.String("task_id", ev.Task.ID),
			slog.String("transition", string(ev.Transition)),
			slog.String("error", err.Error()),
		)
		return
	}
	telemetry.NotifyPublishedTotal.WithLabelValues(string(ev.Transition)).Inc()
}
