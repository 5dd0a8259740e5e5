package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeProvider is a scriptable AIProvider.
type fakeProvider struct {
	results []domain.MatchResult
	err     error
	block   bool // never answer; wait for ctx cancellation
	calls   int
	mu      sync.Mutex
}

func (p *fakeProvider) Name() string { return "fake-ai" }

func (p *fakeProvider) Rank(ctx context.Context, _ *domain.Task, _ []*domain.Candidate) ([]domain.MatchResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p.results, p.err
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func rankingPool() CandidatePool {
	return &StaticPool{Candidates: []*domain.Candidate{
		{UserID: "u-1", SkillTags: []string{"Go"}, HoursAvailable: 40, PerformanceScore: 90, LastCompletedAt: daysAgo(2)},
		{UserID: "u-2", SkillTags: []string{"Python"}, HoursAvailable: 10, PerformanceScore: 70},
		{UserID: "u-3", SkillTags: []string{"Go", "Kafka"}, HoursAvailable: 25, PerformanceScore: 82, LastCompletedAt: daysAgo(40)},
	}}
}

func TestMatcher_RulesOnlyWithoutProvider(t *testing.T) {
	m := NewMatcher(rankingPool())
	task := testTask([]string{"Go"}, domain.UrgencyNormal)

	out, err := m.Rank(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, PathRules, out.Path)
	assert.NoError(t, out.FallbackCause)
	require.Len(t, out.Results, 3)
	assert.Equal(t, "u-1", out.Results[0].CandidateID)
}

func TestMatcher_AIPathUsedOnSuccess(t *testing.T) {
	prov := &fakeProvider{results: []domain.MatchResult{
		{CandidateID: "u-2", TotalScore: 88, Reasons: []string{"ai pick"}},
		{CandidateID: "u-1", TotalScore: 70},
	}}
	m := NewMatcher(rankingPool(), WithProvider(prov))
	task := testTask([]string{"Go"}, domain.UrgencyNormal)

	out, err := m.Rank(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, PathAI, out.Path)
	assert.Equal(t, "u-2", out.Results[0].CandidateID)
}

func TestMatcher_TimeoutFallsBackWithinBudget(t *testing.T) {
	prov := &fakeProvider{block: true}
	m := NewMatcher(rankingPool(), WithProvider(prov), WithTimeout(50*time.Millisecond))
	task := testTask([]string{"Go"}, domain.UrgencyNormal)

	start := time.Now()
	out, err := m.Rank(context.Background(), task)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, PathRules, out.Path)
	var timeoutErr *domain.ProviderTimeoutError
	assert.True(t, errors.As(out.FallbackCause, &timeoutErr))
	assert.Less(t, elapsed, 500*time.Millisecond, "fallback must not block past the budget")

	// Result equals the pure rule-based ranking for the same inputs.
	rules := NewMatcher(rankingPool())
	want, err := rules.Rank(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, want.Results, out.Results)
}

func TestMatcher_ProviderErrorFallsBackWithoutRetry(t *testing.T) {
	prov := &fakeProvider{err: errors.New("upstream 500")}
	m := NewMatcher(rankingPool(), WithProvider(prov))
	task := testTask([]string{"Go"}, domain.UrgencyNormal)

	out, err := m.Rank(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, PathRules, out.Path)
	var provErr *domain.ProviderError
	assert.True(t, errors.As(out.FallbackCause, &provErr))
	assert.Equal(t, 1, prov.callCount(), "failed provider must not be retried")
}

func TestMatcher_MalformedAIResultRejected(t *testing.T) {
	tests := []struct {
		name    string
		results []domain.MatchResult
	}{
		{"empty", nil},
		{"unknown candidate", []domain.MatchResult{{CandidateID: "ghost", TotalScore: 80}}},
		{"score out of range", []domain.MatchResult{{CandidateID: "u-1", TotalScore: 140}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(rankingPool(), WithProvider(&fakeProvider{results: tt.results}))
			out, err := m.Rank(context.Background(), testTask([]string{"Go"}, domain.UrgencyNormal))
			require.NoError(t, err)
			assert.Equal(t, PathRules, out.Path, "malformed AI output must fall back")
			assert.Error(t, out.FallbackCause)
		})
	}
}

func TestMatcher_EmptyPool(t *testing.T) {
	m := NewMatcher(&StaticPool{})
	out, err := m.Rank(context.Background(), testTask([]string{"Go"}, domain.UrgencyNormal))
	require.NoError(t, err)
	assert.Empty(t, out.Results)
}
