// Package orchestrator owns the task lifecycle state machine. Every task
// mutation in the system goes through one of its operations; each operation
// is linearized per task with a keyed lock and committed with a
// compare-and-swap on the stored status, so racing transitions on one task
// never both succeed.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/justDance-everybody/Taskbot-MVP/internal/dedup"
	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
	"github.com/justDance-everybody/Taskbot-MVP/internal/match"
	"github.com/justDance-everybody/Taskbot-MVP/internal/notify"
	"github.com/justDance-everybody/Taskbot-MVP/internal/review"
	"github.com/justDance-everybody/Taskbot-MVP/internal/store"
	"github.com/justDance-everybody/Taskbot-MVP/pkg/telemetry"
)

const (
	// DefaultPassThreshold is the minimum review score for COMPLETED.
	DefaultPassThreshold = review.DefaultPassThreshold
	// DefaultMaxReviewRetries bounds the REVIEWING → IN_PROGRESS loop.
	DefaultMaxReviewRetries = 2
	// DefaultEvalTimeout bounds one synchronous review evaluation.
	DefaultEvalTimeout = 30 * time.Second
)

// ErrDuplicateRequest is returned by Create when the dedup guard has already
// admitted an identical creation request within its window.
var ErrDuplicateRequest = errors.New("duplicate creation request")

// Ranker produces a candidate ranking for a task. Satisfied by match.Matcher.
type Ranker interface {
	Rank(ctx context.Context, task *domain.Task) (match.RankOutcome, error)
}

// CreateSpec is the input to Create.
type CreateSpec struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	RequiredSkills []string       `json:"required_skills"`
	Deadline       time.Time      `json:"deadline"`
	Urgency        domain.Urgency `json:"urgency"`
	CreatorID      string         `json:"creator_id"`
}

// CreateResult is the task persisted by Create plus the candidate ranking
// produced for it. Ranking may be empty when no ranker is configured or the
// candidate pool was unreadable; creation itself never fails on ranking.
type CreateResult struct {
	Task    *domain.Task      `json:"task"`
	Ranking match.RankOutcome `json:"ranking"`
}

// Orchestrator drives tasks through the lifecycle state machine.
type Orchestrator struct {
	store     store.TaskStore
	ranker    Ranker         // nil disables ranking on create
	evaluator review.Evaluator // nil disables the synchronous review step
	guard     dedup.Admitter // nil disables creation dedup
	notifier  notify.Notifier

	passThreshold    int
	maxReviewRetries int
	evalTimeout      time.Duration

	locks  *keyedMutex
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRanker enables candidate ranking on create.
func WithRanker(r Ranker) Option { return func(o *Orchestrator) { o.ranker = r } }

// WithEvaluator enables the synchronous review step after submit.
func WithEvaluator(e review.Evaluator) Option { return func(o *Orchestrator) { o.evaluator = e } }

// WithGuard enables creation deduplication.
func WithGuard(g dedup.Admitter) Option { return func(o *Orchestrator) { o.guard = g } }

// WithNotifier sets the lifecycle event sink.
func WithNotifier(n notify.Notifier) Option { return func(o *Orchestrator) { o.notifier = n } }

// WithPassThreshold overrides the review pass threshold.
func WithPassThreshold(n int) Option { return func(o *Orchestrator) { o.passThreshold = n } }

// WithMaxReviewRetries overrides the resubmission budget.
func WithMaxReviewRetries(n int) Option { return func(o *Orchestrator) { o.maxReviewRetries = n } }

// WithEvalTimeout overrides the review evaluation budget.
func WithEvalTimeout(d time.Duration) Option { return func(o *Orchestrator) { o.evalTimeout = d } }

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// New constructs an Orchestrator over the given task store.
func New(ts store.TaskStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:            ts,
		notifier:         notify.Discard{},
		passThreshold:    DefaultPassThreshold,
		maxReviewRetries: DefaultMaxReviewRetries,
		evalTimeout:      DefaultEvalTimeout,
		locks:            newKeyedMutex(),
		logger:           slog.Default(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Create validates the spec, dedups it, persists the task in PENDING and
// ranks candidates for it. Returns ErrDuplicateRequest when the guard rejects
// the request.
func (o *Orchestrator) Create(ctx context.Context, spec CreateSpec) (*CreateResult, error) {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "orchestrator.create")
	defer span.End()

	if err := o.validateSpec(spec); err != nil {
		return nil, err
	}
	urgency := spec.Urgency
	if urgency == "" {
		urgency = domain.UrgencyNormal
	}

	if o.guard != nil {
		if !o.guard.AdmitCreation(dedup.CreationHash(spec.Title, spec.Description, spec.CreatorID)) {
			telemetry.DedupHitsTotal.WithLabelValues("creation").Inc()
			o.logger.Info("duplicate creation suppressed",
				slog.String("creator_id", spec.CreatorID),
				slog.String("title", spec.Title),
			)
			return nil, ErrDuplicateRequest
		}
	}

	now := o.now()
	task := &domain.Task{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(spec.Title),
		Description:    strings.TrimSpace(spec.Description),
		RequiredSkills: append([]string(nil), spec.RequiredSkills...),
		Deadline:       spec.Deadline,
		Urgency:        urgency,
		Status:         domain.StatusPending,
		CreatorID:      spec.CreatorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.store.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("persist task: %w", err)
	}
	span.SetAttributes(attribute.String("task.id", task.ID))
	telemetry.TasksCreatedTotal.WithLabelValues(string(urgency)).Inc()
	o.notifier.Notify(ctx, notify.Event{Transition: notify.TransitionCreated, Task: task, At: now})

	result := &CreateResult{Task: task}
	if o.ranker != nil {
		outcome, err := o.ranker.Rank(ctx, task)
		if err != nil {
			// A ranking failure never fails creation; the task just ships
			// without a suggested candidate list.
			o.logger.Warn("candidate ranking unavailable",
				slog.String("task_id", task.ID),
				slog.String("error", err.Error()),
			)
		} else {
			result.Ranking = outcome
		}
	}
	return result, nil
}

func (o *Orchestrator) validateSpec(spec CreateSpec) error {
	if strings.TrimSpace(spec.Title) == "" {
		return &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(spec.Description) == "" {
		return &domain.ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if len(spec.RequiredSkills) == 0 {
		return &domain.ValidationError{Field: "required_skills", Reason: "must not be empty"}
	}
	if !spec.Deadline.After(o.now()) {
		return &domain.ValidationError{Field: "deadline", Reason: "must be in the future"}
	}
	if spec.Urgency != "" && !spec.Urgency.Valid() {
		return &domain.ValidationError{Field: "urgency", Reason: fmt.Sprintf("unknown urgency %q", spec.Urgency)}
	}
	if strings.TrimSpace(spec.CreatorID) == "" {
		return &domain.ValidationError{Field: "creator_id", Reason: "must not be empty"}
	}
	return nil
}

// Assign moves a PENDING task to ASSIGNED. Re-assigning the same candidate to
// an already ASSIGNED task is an idempotent no-op.
func (o *Orchestrator) Assign(ctx context.Context, taskID, candidateID string) (*domain.Task, error) {
	if strings.TrimSpace(candidateID) == "" {
		return nil, &domain.ValidationError{Field: "candidate_id", Reason: "must not be empty"}
	}

	unlock := o.locks.Lock(taskID)
	defer unlock()

	task, err := o.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == domain.StatusAssigned && task.AssigneeID == candidateID {
		return task, nil
	}
	if task.Status != domain.StatusPending {
		return nil, &domain.InvalidTransitionError{TaskID: taskID, From: task.Status, Op: "assign"}
	}

	now := o.now()
	task.AssigneeID = candidateID
	task.Status = domain.StatusAssigned
	task.AssignedAt = &now
	task.UpdatedAt = now
	if err := o.commit(ctx, task, domain.StatusPending, "assign"); err != nil {
		return nil, err
	}
	o.afterTransition(ctx, task, notify.TransitionAssigned, now)
	return task, nil
}

// Accept moves an ASSIGNED task to IN_PROGRESS. Only the assignee may accept.
func (o *Orchestrator) Accept(ctx context.Context, taskID, userID string) (*domain.Task, error) {
	unlock := o.locks.Lock(taskID)
	defer unlock()

	task, err := o.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == domain.StatusInProgress && task.AssigneeID == userID {
		return task, nil
	}
	if task.Status != domain.StatusAssigned {
		return nil, &domain.InvalidTransitionError{TaskID: taskID, From: task.Status, Op: "accept"}
	}
	if task.AssigneeID != userID {
		return nil, &domain.AuthorizationError{TaskID: taskID, UserID: userID, Op: "accept"}
	}

	now := o.now()
	task.Status = domain.StatusInProgress
	task.UpdatedAt = now
	if err := o.commit(ctx, task, domain.StatusAssigned, "accept"); err != nil {
		return nil, err
	}
	o.afterTransition(ctx, task, notify.TransitionAccepted, now)
	return task, nil
}

// Submit records the assignee's deliverable and enters review. The task moves
// IN_PROGRESS → SUBMITTED → REVIEWING synchronously; when an evaluator is
// configured the evaluation also runs synchronously, bounded by the eval
// timeout, and its verdict is applied before Submit returns. The per-task
// lock is NOT held across the evaluator call, so a concurrent Cancel can win
// the race — in that case the verdict is discarded.
func (o *Orchestrator) Submit(ctx context.Context, taskID, userID, submissionURL string) (*domain.Task, error) {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "orchestrator.submit")
	defer span.End()
	span.SetAttributes(attribute.String("task.id", taskID))

	task, already, err := o.beginReview(ctx, taskID, userID, submissionURL)
	if err != nil {
		return nil, err
	}
	if already || o.evaluator == nil {
		return task, nil
	}

	o.runReview(ctx, task)
	return o.store.Get(ctx, taskID)
}

// beginReview moves the task through SUBMITTED into REVIEWING under the task
// lock. already is true when the identical submission was applied before.
func (o *Orchestrator) beginReview(ctx context.Context, taskID, userID, submissionURL string) (task *domain.Task, already bool, err error) {
	if strings.TrimSpace(submissionURL) == "" {
		return nil, false, &domain.ValidationError{Field: "submission_url", Reason: "must not be empty"}
	}

	unlock := o.locks.Lock(taskID)
	defer unlock()

	task, err = o.store.Get(ctx, taskID)
	if err != nil {
		return nil, false, err
	}
	inReview := task.Status == domain.StatusSubmitted || task.Status == domain.StatusReviewing
	if inReview && task.AssigneeID == userID && task.SubmissionURL == submissionURL {
		return task, true, nil
	}
	if task.Status != domain.StatusInProgress {
		return nil, false, &domain.InvalidTransitionError{TaskID: taskID, From: task.Status, Op: "submit"}
	}
	if task.AssigneeID != userID {
		return nil, false, &domain.AuthorizationError{TaskID: taskID, UserID: userID, Op: "submit"}
	}

	now := o.now()
	task.SubmissionURL = submissionURL
	task.SubmittedAt = &now
	task.Status = domain.StatusSubmitted
	task.UpdatedAt = now
	if err := o.commit(ctx, task, domain.StatusInProgress, "submit"); err != nil {
		return nil, false, err
	}
	o.afterTransition(ctx, task, notify.TransitionSubmitted, now)

	task.Status = domain.StatusReviewing
	task.UpdatedAt = o.now()
	if err := o.commit(ctx, task, domain.StatusSubmitted, "submit"); err != nil {
		return nil, false, err
	}
	telemetry.TransitionsTotal.WithLabelValues(string(domain.StatusReviewing)).Inc()
	return task, false, nil
}

// runReview performs one bounded evaluation and applies the verdict. An
// evaluator failure leaves the task in REVIEWING with a note for manual
// intervention; it is never surfaced as a submit failure.
func (o *Orchestrator) runReview(ctx context.Context, task *domain.Task) {
	evalCtx, cancel := context.WithTimeout(ctx, o.evalTimeout)
	defer cancel()

	out, err := o.evaluator.Evaluate(evalCtx, task)
	if err != nil {
		o.logger.Error("review evaluation unavailable",
			slog.String("task_id", task.ID),
			slog.String("evaluator", o.evaluator.Name()),
			slog.String("error", err.Error()),
		)
		o.markReviewDegraded(ctx, task.ID, err)
		return
	}

	reasons := out.FailedReasons
	if len(out.Suggestions) > 0 {
		reasons = append(append([]string(nil), reasons...), out.Suggestions...)
	}
	if _, err := o.Evaluate(ctx, task.ID, out.Score, reasons); err != nil {
		// Most likely a cancel won the race while the evaluator ran.
		o.logger.Warn("review verdict not applied",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
}

// markReviewDegraded flags a REVIEWING task whose evaluation failed, so an
// operator can evaluate it manually through the review callback.
func (o *Orchestrator) markReviewDegraded(ctx context.Context, taskID string, cause error) {
	unlock := o.locks.Lock(taskID)
	defer unlock()

	task, err := o.store.Get(ctx, taskID)
	if err != nil || task.Status != domain.StatusReviewing {
		return
	}
	task.ReviewNote = "automatic review unavailable, manual evaluation required: " + cause.Error()
	task.UpdatedAt = o.now()
	if _, err := o.store.UpdateIf(ctx, task, domain.StatusReviewing); err != nil {
		o.logger.Error("failed to flag degraded review",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
	}
}

// Evaluate applies a review verdict to a REVIEWING task: pass → COMPLETED;
// fail with retries remaining → back to IN_PROGRESS with the reasons
// attached; fail with the budget exhausted → REJECTED.
func (o *Orchestrator) Evaluate(ctx context.Context, taskID string, score int, reasons []string) (*domain.Task, error) {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "orchestrator.evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("task.id", taskID), attribute.Int("review.score", score))

	if score < 0 || score > 100 {
		return nil, &domain.ValidationError{Field: "score", Reason: "must be between 0 and 100"}
	}

	unlock := o.locks.Lock(taskID)
	defer unlock()

	task, err := o.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	// Re-delivered verdicts that already closed the task are no-ops.
	closed := task.Status == domain.StatusCompleted || task.Status == domain.StatusRejected
	if closed && task.Score != nil && *task.Score == score {
		return task, nil
	}
	if task.Status != domain.StatusReviewing {
		return nil, &domain.InvalidTransitionError{TaskID: taskID, From: task.Status, Op: "evaluate"}
	}

	now := o.now()
	note := strings.Join(reasons, "; ")

	switch {
	case score >= o.passThreshold:
		task.Status = domain.StatusCompleted
		task.Score = &score
		task.CompletedAt = &now
		task.ReviewNote = ""
		task.UpdatedAt = now
		if err := o.commit(ctx, task, domain.StatusReviewing, "evaluate"); err != nil {
			return nil, err
		}
		o.afterTransition(ctx, task, notify.TransitionCompleted, now)

	case task.ReviewAttempts < o.maxReviewRetries:
		telemetry.ReviewFailuresTotal.Inc()
		task.ReviewAttempts++
		task.Status = domain.StatusInProgress
		task.ReviewNote = note
		task.UpdatedAt = now
		if err := o.commit(ctx, task, domain.StatusReviewing, "evaluate"); err != nil {
			return nil, err
		}
		o.afterTransition(ctx, task, notify.TransitionReturned, now)

	default:
		telemetry.ReviewFailuresTotal.Inc()
		task.Status = domain.StatusRejected
		task.Score = &score
		task.RejectedAt = &now
		task.ReviewNote = note
		task.UpdatedAt = now
		if err := o.commit(ctx, task, domain.StatusReviewing, "evaluate"); err != nil {
			return nil, err
		}
		o.afterTransition(ctx, task, notify.TransitionRejected, now)
	}
	return task, nil
}

// Cancel moves any non-terminal task to CANCELLED. Cancelling an already
// cancelled task is an idempotent no-op.
func (o *Orchestrator) Cancel(ctx context.Context, taskID string) (*domain.Task, error) {
	unlock := o.locks.Lock(taskID)
	defer unlock()

	task, err := o.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == domain.StatusCancelled {
		return task, nil
	}
	if task.Status.IsTerminal() {
		return nil, &domain.InvalidTransitionError{TaskID: taskID, From: task.Status, Op: "cancel"}
	}

	now := o.now()
	from := task.Status
	task.Status = domain.StatusCancelled
	task.CancelledAt = &now
	task.UpdatedAt = now
	if err := o.commit(ctx, task, from, "cancel"); err != nil {
		return nil, err
	}
	o.afterTransition(ctx, task, notify.TransitionCancelled, now)
	return task, nil
}

// Get returns a task by ID.
func (o *Orchestrator) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	return o.store.Get(ctx, taskID)
}

// List returns tasks matching the filter, newest first.
func (o *Orchestrator) List(ctx context.Context, f store.Filter) ([]*domain.Task, error) {
	return o.store.List(ctx, f)
}

// commit writes the transition with a CAS on the previous status. A lost CAS
// means a concurrent transition won; the caller's operation is reported as
// illegal from the now-current status.
func (o *Orchestrator) commit(ctx context.Context, task *domain.Task, expect domain.Status, op string) error {
	ok, err := o.store.UpdateIf(ctx, task, expect)
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	if !ok {
		current, gerr := o.store.Get(ctx, task.ID)
		if gerr != nil {
			return gerr
		}
		return &domain.InvalidTransitionError{TaskID: task.ID, From: current.Status, Op: op}
	}
	return nil
}

func (o *Orchestrator) afterTransition(ctx context.Context, task *domain.Task, tr notify.Transition, at time.Time) {
	telemetry.TransitionsTotal.WithLabelValues(string(task.Status)).Inc()
	o.notifier.Notify(ctx, notify.Event{Transition: tr, Task: task, At: at})
}
