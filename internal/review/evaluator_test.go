package review

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
	"github.com/justDance-everybody/Taskbot-MVP/internal/llm"
)

func reviewServer(t *testing.T, reply evaluatorReply) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		content, _ := json.Marshal(reply)
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": string(content)}},
			},
		})
		_, _ = w.Write(body)
	}))
}

func TestEvaluatePassing(t *testing.T) {
	srv := reviewServer(t, evaluatorReply{Score: 92, Passed: true, Suggestions: []string{"add tests next time"}})
	defer srv.Close()

	e := NewLLMEvaluator(llm.NewClient(srv.URL, "k"), 0)
	task := &domain.Task{ID: "t-1", Title: "Write docs", SubmissionURL: "https://example.com/pr/1"}
	out, err := e.Evaluate(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, 92, out.Score)
	assert.Empty(t, out.FailedReasons)
}

func TestEvaluateFailing(t *testing.T) {
	srv := reviewServer(t, evaluatorReply{
		Score:         55,
		Passed:        false,
		FailedReasons: []string{"missing error handling"},
		Suggestions:   []string{"handle the timeout path"},
	})
	defer srv.Close()

	e := NewLLMEvaluator(llm.NewClient(srv.URL, "k"), 80)
	out, err := e.Evaluate(context.Background(), &domain.Task{ID: "t-1"})
	require.NoError(t, err)
	assert.False(t, out.Passed)
	assert.Equal(t, []string{"missing error handling"}, out.FailedReasons)
	assert.Equal(t, []string{"handle the timeout path"}, out.Suggestions)
}

// The threshold decides the verdict even when the model's passed flag
// disagrees with its own score.
func TestEvaluateThresholdOverridesModelVerdict(t *testing.T) {
	srv := reviewServer(t, evaluatorReply{Score: 85, Passed: false, FailedReasons: []string{"model says no"}})
	defer srv.Close()

	e := NewLLMEvaluator(llm.NewClient(srv.URL, "k"), 80)
	out, err := e.Evaluate(context.Background(), &domain.Task{ID: "t-1"})
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Empty(t, out.FailedReasons)
}

func TestEvaluateScoreOutOfRange(t *testing.T) {
	srv := reviewServer(t, evaluatorReply{Score: 140, Passed: true})
	defer srv.Close()

	e := NewLLMEvaluator(llm.NewClient(srv.URL, "k"), 80)
	_, err := e.Evaluate(context.Background(), &domain.Task{ID: "t-1"})
	require.Error(t, err)
}
