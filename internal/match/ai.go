package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
	"github.com/justDance-everybody/Taskbot-MVP/pkg/telemetry"
)

// DefaultAITimeout is the hard budget for one AI ranking attempt.
const DefaultAITimeout = 3 * time.Second

// AIProvider ranks candidates externally. Implementations may block until
// ctx is done; the Matcher enforces the timeout.
type AIProvider interface {
	Rank(ctx context.Context, task *domain.Task, candidates []*domain.Candidate) ([]domain.MatchResult, error)
	Name() string
}

// Path records which ranking path produced a result.
type Path string

const (
	PathAI    Path = "ai"
	PathRules Path = "rules"
)

// RankOutcome is the result of one ranking call. When the AI path failed and
// the deterministic path took over, FallbackCause holds the provider failure;
// the outcome itself is never an error.
type RankOutcome struct {
	Results       []domain.MatchResult
	Path          Path
	FallbackCause error
}

// Matcher ranks candidates for a task. With no provider configured it is
// purely rule-based; with one, the provider gets a single bounded attempt and
// the rule-based ranking covers every failure mode. The two paths are never
// mixed within one call.
type Matcher struct {
	pool     CandidatePool
	provider AIProvider // nil disables the AI path
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithProvider enables the AI-assisted path.
func WithProvider(p AIProvider) MatcherOption { return func(m *Matcher) { m.provider = p } }

// WithTimeout overrides the AI attempt budget.
func WithTimeout(d time.Duration) MatcherOption { return func(m *Matcher) { m.timeout = d } }

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) MatcherOption { return func(m *Matcher) { m.logger = l } }

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) MatcherOption { return func(m *Matcher) { m.now = now } }

// NewMatcher constructs a Matcher reading candidates from pool.
func NewMatcher(pool CandidatePool, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		pool:    pool,
		timeout: DefaultAITimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Rank returns the top candidates for task. The returned error is non-nil
// only when the candidate pool itself is unreadable; provider failures are
// absorbed into the fallback path.
func (m *Matcher) Rank(ctx context.Context, task *domain.Task) (RankOutcome, error) {
	ctx, span := otel.Tracer("match").Start(ctx, "match.rank")
	defer span.End()
	span.SetAttributes(attribute.String("task.id", task.ID))

	start := m.now()
	candidates, err := m.pool.List(ctx)
	if err != nil {
		return RankOutcome{}, err
	}
	if len(candidates) == 0 {
		m.logger.Warn("no candidates available", slog.String("task_id", task.ID))
		return RankOutcome{Path: PathRules}, nil
	}

	outcome := m.rank(ctx, task, candidates)

	span.SetAttributes(attribute.String("match.path", string(outcome.Path)))
	telemetry.MatchRankTotal.WithLabelValues(string(outcome.Path)).Inc()
	telemetry.MatchDurationSeconds.Observe(m.now().Sub(start).Seconds())
	return outcome, nil
}

func (m *Matcher) rank(ctx context.Context, task *domain.Task, candidates []*domain.Candidate) RankOutcome {
	if m.provider == nil {
		return RankOutcome{Results: rankByRules(task, candidates, m.now()), Path: PathRules}
	}

	results, provErr := m.tryProvider(ctx, task, candidates)
	if provErr == nil {
		return RankOutcome{Results: results, Path: PathAI}
	}

	// One attempt only: no provider retry, straight to the deterministic path.
	m.logger.Warn("ai ranking failed, using rule-based ranking",
		slog.String("task_id", task.ID),
		slog.String("provider", m.provider.Name()),
		slog.String("error", provErr.Error()),
	)
	telemetry.MatchFallbackTotal.Inc()
	return RankOutcome{
		Results:       rankByRules(task, candidates, m.now()),
		Path:          PathRules,
		FallbackCause: provErr,
	}
}

// tryProvider runs the provider in a goroutine under the timeout budget.
// A late result after the deadline is discarded (the buffered channel lets
// the goroutine finish without leaking).
func (m *Matcher) tryProvider(ctx context.Context, task *domain.Task, candidates []*domain.Candidate) ([]domain.MatchResult, error) {
	provCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	type reply struct {
		results []domain.MatchResult
		err     error
	}
	done := make(chan reply, 1)
	go func() {
		results, err := m.provider.Rank(provCtx, task, candidates)
		done <- reply{results, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, &domain.ProviderError{Provider: m.provider.Name(), Err: r.err}
		}
		if err := validateAIResults(r.results, candidates); err != nil {
			return nil, &domain.ProviderError{Provider: m.provider.Name(), Err: err}
		}
		return r.results, nil
	case <-provCtx.Done():
		return nil, &domain.ProviderTimeoutError{Provider: m.provider.Name(), Timeout: m.timeout}
	}
}

// validateAIResults rejects empty or malformed provider output so a bad AI
// response can never leak into the ranking.
func validateAIResults(results []domain.MatchResult, candidates []*domain.Candidate) error {
	if len(results) == 0 {
		return fmt.Errorf("empty ranking")
	}
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.UserID] = true
	}
	for _, r := range results {
		if !known[r.CandidateID] {
			return fmt.Errorf("unknown candidate %q in ranking", r.CandidateID)
		}
		if r.TotalScore < 0 || r.TotalScore > 100 {
			return fmt.Errorf("score %d for candidate %q out of range", r.TotalScore, r.CandidateID)
		}
	}
	return nil
}
