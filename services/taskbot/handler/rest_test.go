package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
	"github.com/justDance-everybody/Taskbot-MVP/internal/match"
	"github.com/justDance-everybody/Taskbot-MVP/internal/orchestrator"
	"github.com/justDance-everybody/Taskbot-MVP/internal/store"
)

func newTestRouter(t *testing.T, opts ...orchestrator.Option) (*chi.Mux, *orchestrator.Orchestrator) {
	t.Helper()
	orc := orchestrator.New(store.NewMemoryStore(), opts...)
	rest := NewREST(orc, nil, nil, nil, slog.Default())

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tasks", rest.CreateTask)
		r.Get("/tasks", rest.ListTasks)
		r.Get("/tasks/{id}", rest.GetTask)
		r.Post("/tasks/{id}/assign", rest.AssignTask)
		r.Post("/tasks/{id}/accept", rest.AcceptTask)
		r.Post("/tasks/{id}/submit", rest.SubmitTask)
		r.Post("/tasks/{id}/cancel", rest.CancelTask)
	})
	return r, orc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createBody() map[string]any {
	return map[string]any{
		"title":           "Fix login flow",
		"description":     "Users get logged out after 5 minutes",
		"required_skills": []string{"go", "oauth"},
		"deadline":        time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"urgency":         "normal",
		"creator_id":      "u-creator",
	}
}

func TestCreateTaskEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tasks", createBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var result orchestrator.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.Task.ID)
	assert.Equal(t, domain.StatusPending, result.Task.Status)
}

func TestCreateTaskValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	body := createBody()
	body["title"] = ""
	rec := doJSON(t, router, http.MethodPost, "/api/v1/tasks", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "title")
}

func TestCreateTaskIncludesRanking(t *testing.T) {
	pool := &match.StaticPool{Candidates: []*domain.Candidate{
		{UserID: "u-1", Name: "Ada", SkillTags: []string{"go", "oauth"}, HoursAvailable: 40, PerformanceScore: 92},
	}}
	router, _ := newTestRouter(t, orchestrator.WithRanker(match.NewMatcher(pool)))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tasks", createBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var result orchestrator.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Ranking.Results, 1)
	assert.Equal(t, "u-1", result.Ranking.Results[0].CandidateID)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tasks", createBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created orchestrator.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Task.ID

	rec = doJSON(t, router, http.MethodPost, "/api/v1/tasks/"+id+"/assign", map[string]string{"candidate_id": "u-worker"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/tasks/"+id+"/accept", map[string]string{"user_id": "u-worker"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/tasks/"+id+"/submit",
		map[string]string{"user_id": "u-worker", "submission_url": "https://example.com/pr/1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var task domain.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, domain.StatusReviewing, task.Status)
}

func TestErrorMapping(t *testing.T) {
	router, orc := newTestRouter(t)
	ctx := context.Background()

	res, err := orc.Create(ctx, orchestrator.CreateSpec{
		Title: "T", Description: "D", RequiredSkills: []string{"go"},
		Deadline: time.Now().Add(time.Hour), Urgency: domain.UrgencyLow, CreatorID: "u-c",
	})
	require.NoError(t, err)
	_, err = orc.Assign(ctx, res.Task.ID, "u-worker")
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"not found", http.MethodGet, "/api/v1/tasks/unknown", nil, http.StatusNotFound},
		{"invalid transition", http.MethodPost, "/api/v1/tasks/" + res.Task.ID + "/assign",
			map[string]string{"candidate_id": "u-other"}, http.StatusConflict},
		{"authorization", http.MethodPost, "/api/v1/tasks/" + res.Task.ID + "/accept",
			map[string]string{"user_id": "u-intruder"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestListTasksFilters(t *testing.T) {
	router, orc := newTestRouter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := orc.Create(ctx, orchestrator.CreateSpec{
			Title: fmt.Sprintf("Task %d", i), Description: "D", RequiredSkills: []string{"go"},
			Deadline: time.Now().Add(time.Hour), Urgency: domain.UrgencyLow, CreatorID: "u-c",
		})
		require.NoError(t, err)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/tasks?status=PENDING&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tasks []*domain.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tasks, 2)
}

func TestReviewCallbackWebhook(t *testing.T) {
	orc := orchestrator.New(store.NewMemoryStore())
	wh := NewWebhook(orc, "secret", slog.Default())
	router := chi.NewRouter()
	router.Post("/webhooks/review", wh.ReviewCallback)

	ctx := context.Background()
	res, err := orc.Create(ctx, orchestrator.CreateSpec{
		Title: "T", Description: "D", RequiredSkills: []string{"go"},
		Deadline: time.Now().Add(time.Hour), Urgency: domain.UrgencyLow, CreatorID: "u-c",
	})
	require.NoError(t, err)
	_, err = orc.Assign(ctx, res.Task.ID, "u-worker")
	require.NoError(t, err)
	_, err = orc.Accept(ctx, res.Task.ID, "u-worker")
	require.NoError(t, err)
	_, err = orc.Submit(ctx, res.Task.ID, "u-worker", "https://example.com/pr/1")
	require.NoError(t, err)

	body, _ := json.Marshal(ReviewCallbackRequest{TaskID: res.Task.ID, Score: 90})

	t.Run("rejects bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/review", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("applies verdict", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/review", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var task domain.Task
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
		assert.Equal(t, domain.StatusCompleted, task.Status)
	})
}
