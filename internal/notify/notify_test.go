package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
	"github.com/justDance-everybody/Taskbot-MVP/internal/kafka"
	"github.com/justDance-everybody/Taskbot-MVP/internal/monitor"
)

type capturingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (c *capturingNotifier) Notify(_ context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []struct {
		topic, key string
		value      []byte
	}
	failures int // fail this many publishes before succeeding
}

var _ kafka.Producer = (*fakeProducer)(nil)

func (f *fakeProducer) Publish(_ context.Context, topic, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("broker unavailable")
	}
	f.messages = append(f.messages, struct {
		topic, key string
		value      []byte
	}{topic, key, value})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func testEvent() Event {
	return Event{
		Transition: TransitionCompleted,
		Task:       &domain.Task{ID: "t-1", Status: domain.StatusCompleted},
		At:         time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestFanoutDeliversInOrder(t *testing.T) {
	a := &capturingNotifier{}
	b := &capturingNotifier{}
	f := NewFanout(a, b)

	f.Notify(context.Background(), testEvent())
	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, TransitionCompleted, a.events[0].Transition)
}

func TestKafkaNotifierPublishesKeyedByTask(t *testing.T) {
	prod := &fakeProducer{}
	n := NewKafkaNotifier(prod, "", slog.Default())

	n.Notify(context.Background(), testEvent())
	require.Len(t, prod.messages, 1)
	assert.Equal(t, kafka.TopicLifecycle, prod.messages[0].topic)
	assert.Equal(t, "t-1", prod.messages[0].key)

	var ev Event
	require.NoError(t, json.Unmarshal(prod.messages[0].value, &ev))
	assert.Equal(t, TransitionCompleted, ev.Transition)
	assert.Equal(t, "t-1", ev.Task.ID)
}

func TestKafkaNotifierRetriesTransientFailure(t *testing.T) {
	prod := &fakeProducer{failures: 2}
	n := NewKafkaNotifier(prod, "events", slog.Default())
	n.retryCfg.BaseDelay = time.Millisecond

	n.Notify(context.Background(), testEvent())
	require.Len(t, prod.messages, 1)
	assert.Equal(t, "events", prod.messages[0].topic)
}

func TestKafkaReminderSinkPublishesReminder(t *testing.T) {
	prod := &fakeProducer{}
	s := NewKafkaReminderSink(prod, "", slog.Default())

	deadline := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	s.Remind(context.Background(), monitor.Reminder{
		Task: &domain.Task{
			ID:         "t-9",
			Title:      "Ship weekly digest",
			AssigneeID: "u-7",
			Deadline:   deadline,
		},
		Stage:     monitor.StageFinal,
		Remaining: 4 * time.Hour,
	})

	require.Len(t, prod.messages, 1)
	assert.Equal(t, kafka.TopicReminders, prod.messages[0].topic)
	assert.Equal(t, "t-9", prod.messages[0].key)

	var ev ReminderEvent
	require.NoError(t, json.Unmarshal(prod.messages[0].value, &ev))
	assert.Equal(t, string(monitor.StageFinal), ev.Stage)
	assert.Equal(t, "u-7", ev.AssigneeID)
	assert.Equal(t, int64(4*60*60), ev.RemainingSeconds)
}

func TestKafkaReminderSinkPublishesReport(t *testing.T) {
	prod := &fakeProducer{}
	s := NewKafkaReminderSink(prod, "", slog.Default())

	s.Publish(context.Background(), monitor.StatusReport{
		GeneratedAt: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
		Total:       4,
		ByStatus: map[domain.Status]int{
			domain.StatusCompleted:  3,
			domain.StatusInProgress: 1,
		},
		CompletionRate: 1,
	})

	require.Len(t, prod.messages, 1)
	assert.Equal(t, kafka.TopicReminders, prod.messages[0].topic)
	assert.Equal(t, "daily-report", prod.messages[0].key)

	var rep monitor.StatusReport
	require.NoError(t, json.Unmarshal(prod.messages[0].value, &rep))
	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, 3, rep.ByStatus[domain.StatusCompleted])
}

func TestKafkaReminderSinkGivesUpSilently(t *testing.T) {
	prod := &fakeProducer{failures: 10}
	s := NewKafkaReminderSink(prod, "", slog.Default())
	s.retryCfg.BaseDelay = time.Millisecond

	s.Remind(context.Background(), monitor.Reminder{
		Task:  &domain.Task{ID: "t-1"},
		Stage: monitor.StageOverdue,
	})
	assert.Empty(t, prod.messages)
}

func TestKafkaNotifierGivesUpSilently(t *testing.T) {
	prod := &fakeProducer{failures: 10}
	n := NewKafkaNotifier(prod, "events", slog.Default())
	n.retryCfg.BaseDelay = time.Millisecond

	// must not panic or block; the transition already committed
	n.Notify(context.Background(), testEvent())
	assert.Empty(t, prod.messages)
}
