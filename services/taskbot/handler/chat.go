package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/justDance-everybody/Taskbot-MVP/internal/dedup"
	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
	"github.com/justDance-everybody/Taskbot-MVP/internal/kafka"
	"github.com/justDance-everybody/Taskbot-MVP/internal/orchestrator"
	"github.com/justDance-everybody/Taskbot-MVP/pkg/telemetry"
)

// ChatEvent is one inbound event from the chat transport. The transport
// adapter normalizes platform payloads into this shape before publishing to
// the chat-events topic.
type ChatEvent struct {
	MessageID string `json:"message_id"`
	Type      string `json:"type"`
	SenderID  string `json:"sender_id"`

	// task.create
	Title          string     `json:"title,omitempty"`
	Description    string     `json:"description,omitempty"`
	RequiredSkills []string   `json:"required_skills,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	Urgency        string     `json:"urgency,omitempty"`

	// task.accept / task.submit / task.cancel
	TaskID        string `json:"task_id,omitempty"`
	SubmissionURL string `json:"submission_url,omitempty"`
}

// Chat consumes chat events and maps them onto orchestrator operations.
// Delivery is at-least-once, so every event passes the message dedup guard
// before any side effect.
type Chat struct {
	orc    *orchestrator.Orchestrator
	guard  dedup.Admitter
	logger *slog.Logger
}

// NewChat creates the chat-event handler.
func NewChat(orc *orchestrator.Orchestrator, guard dedup.Admitter, logger *slog.Logger) *Chat {
	return &Chat{orc: orc, guard: guard, logger: logger}
}

// Handle implements the consumer contract. It returns nil for events it can
// never process (malformed, unknown type, duplicates) so they are committed
// rather than redelivered forever.
func (h *Chat) Handle(ctx context.Context, msg kafka.Message) error {
	var ev ChatEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		h.logger.Warn("malformed chat event, dropping",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if ev.MessageID == "" {
		h.logger.Warn("chat event without message id, dropping", slog.Int64("offset", msg.Offset))
		return nil
	}

	if !h.guard.AdmitMessage(ev.MessageID) {
		telemetry.DedupHitsTotal.WithLabelValues("message").Inc()
		return nil
	}

	if err := h.dispatch(ctx, ev); err != nil {
		// Domain rejections are final; infrastructure errors are retried.
		var (
			validationErr *domain.ValidationError
			notFoundErr   *domain.NotFoundError
			transitionErr *domain.InvalidTransitionError
			authErr       *domain.AuthorizationError
		)
		if errors.Is(err, orchestrator.ErrDuplicateRequest) ||
			errors.As(err, &validationErr) || errors.As(err, &notFoundErr) ||
			errors.As(err, &transitionErr) || errors.As(err, &authErr) {
			h.logger.Warn("chat event rejected",
				slog.String("message_id", ev.MessageID),
				slog.String("type", ev.Type),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return err
	}
	return nil
}

func (h *Chat) dispatch(ctx context.Context, ev ChatEvent) error {
	switch ev.Type {
	case "task.create":
		spec := orchestrator.CreateSpec{
			Title:          ev.Title,
			Description:    ev.Description,
			RequiredSkills: ev.RequiredSkills,
			Urgency:        domain.Urgency(ev.Urgency),
			CreatorID:      ev.SenderID,
		}
		if ev.Deadline != nil {
			spec.Deadline = *ev.Deadline
		}
		result, err := h.orc.Create(ctx, spec)
		if err != nil {
			return err
		}
		h.logger.Info("task created from chat",
			slog.String("task_id", result.Task.ID),
			slog.String("creator_id", ev.SenderID),
			slog.Int("ranked_candidates", len(result.Ranking.Results)),
		)
		return nil

	case "task.accept":
		_, err := h.orc.Accept(ctx, ev.TaskID, ev.SenderID)
		return err

	case "task.submit":
		_, err := h.orc.Submit(ctx, ev.TaskID, ev.SenderID, ev.SubmissionURL)
		return err

	case "task.cancel":
		_, err := h.orc.Cancel(ctx, ev.TaskID)
		return err

	default:
		h.logger.Warn("unknown chat event type, dropping",
			slog.String("message_id", ev.MessageID),
			slog.String("type", ev.Type),
		)
		return nil
	}
}

// Run subscribes the handler to the chat-events topic until ctx is cancelled.
func (h *Chat) Run(ctx context.Context, consumer kafka.Consumer) error {
	if err := consumer.Subscribe(ctx, h.Handle); err != nil {
		return fmt.Errorf("chat consumer: %w", err)
	}
	return nil
}
