package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

func chatServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(b)
}

func TestCompleteReturnsContent(t *testing.T) {
	srv := chatServer(t, http.StatusOK, completion(`{"ok":true}`))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	got, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, got)
}

func TestCompleteAPIError(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	var provErr *domain.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Contains(t, provErr.Error(), "rate limited")
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"choices":[]}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.Complete(context.Background(), "sys", "user")
	var provErr *domain.ProviderError
	require.True(t, errors.As(err, &provErr))
}

func TestCompleteContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, "sys", "user")
	var timeoutErr *domain.ProviderTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"padded", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestRankerParsesRanking(t *testing.T) {
	reply := completion(`{"ranking":[{"candidate_id":"u-1","total_score":92,"reasons":["strong skill match"]},{"candidate_id":"u-2","total_score":75,"reasons":["available"]}]}`)
	srv := chatServer(t, http.StatusOK, reply)
	defer srv.Close()

	ranker := NewRanker(NewClient(srv.URL, "test-key"))
	task := &domain.Task{ID: "t-1", Title: "Fix login", RequiredSkills: []string{"go"}, Urgency: domain.UrgencyNormal, Deadline: time.Now().Add(24 * time.Hour)}
	results, err := ranker.Rank(context.Background(), task, []*domain.Candidate{
		{UserID: "u-1"}, {UserID: "u-2"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "u-1", results[0].CandidateID)
	assert.Equal(t, 92, results[0].TotalScore)
	assert.Equal(t, []string{"strong skill match"}, results[0].Reasons)
}

func TestRankerMalformedReply(t *testing.T) {
	srv := chatServer(t, http.StatusOK, completion("not json at all"))
	defer srv.Close()

	ranker := NewRanker(NewClient(srv.URL, "test-key"))
	task := &domain.Task{ID: "t-1", Deadline: time.Now().Add(time.Hour)}
	_, err := ranker.Rank(context.Background(), task, []*domain.Candidate{{UserID: "u-1"}})
	require.Error(t, err)
}
