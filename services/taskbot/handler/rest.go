// Package handler holds the HTTP surface of taskbot: the task REST API, the
// review callback webhook, and the chat-event consumer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
	"github.com/justDance-everybody/Taskbot-MVP/internal/match"
	"github.com/justDance-everybody/Taskbot-MVP/internal/orchestrator"
	redisstore "github.com/justDance-everybody/Taskbot-MVP/internal/redis"
	"github.com/justDance-everybody/Taskbot-MVP/internal/store"
)

// CandidateWriter is the roster write contract the REST layer needs.
type CandidateWriter interface {
	Upsert(ctx context.Context, c *domain.Candidate) error
}

// REST handles the HTTP task API.
type REST struct {
	orc        *orchestrator.Orchestrator
	snapshots  *redisstore.SnapshotStore // nil when Redis is not configured
	candidates CandidateWriter           // nil disables roster endpoints
	pool       *match.CachedPool         // nil when the pool is not cached
	logger     *slog.Logger
}

// NewREST creates the REST handler. snapshots, candidates and pool are
// optional.
func NewREST(orc *orchestrator.Orchestrator, snapshots *redisstore.SnapshotStore, candidates CandidateWriter, pool *match.CachedPool, logger *slog.Logger) *REST {
	return &REST{orc: orc, snapshots: snapshots, candidates: candidates, pool: pool, logger: logger}
}

// CreateTaskRequest is the JSON body for POST /api/v1/tasks.
type CreateTaskRequest struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	RequiredSkills []string  `json:"required_skills"`
	Deadline       time.Time `json:"deadline"`
	Urgency        string    `json:"urgency"`
	CreatorID      string    `json:"creator_id"`
}

// CreateTask handles POST /api/v1/tasks: create the task and return it with
// the top-ranked candidates.
func (h *REST) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orc.Create(r.Context(), orchestrator.CreateSpec{
		Title:          req.Title,
		Description:    req.Description,
		RequiredSkills: req.RequiredSkills,
		Deadline:       req.Deadline,
		Urgency:        domain.Urgency(req.Urgency),
		CreatorID:      req.CreatorID,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GetTask handles GET /api/v1/tasks/{id}. The Redis snapshot is the fast
// path; a miss falls through to the store.
func (h *REST) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	ctx := r.Context()

	if h.snapshots != nil {
		if task, err := h.snapshots.GetTask(ctx, taskID); err == nil {
			writeJSON(w, http.StatusOK, task)
			return
		}
	}

	task, err := h.orc.Get(ctx, taskID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ListTasks handles GET /api/v1/tasks with optional status, assignee_id,
// creator_id and limit query parameters.
func (h *REST) ListTasks(w http.ResponseWriter, r *http.Request) {
	f := store.Filter{
		AssigneeID: r.URL.Query().Get("assignee_id"),
		CreatorID:  r.URL.Query().Get("creator_id"),
	}
	for _, s := range r.URL.Query()["status"] {
		f.Statuses = append(f.Statuses, domain.Status(s))
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	tasks, err := h.orc.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// AssignTask handles POST /api/v1/tasks/{id}/assign.
func (h *REST) AssignTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CandidateID string `json:"candidate_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	task, err := h.orc.Assign(r.Context(), chi.URLParam(r, "id"), req.CandidateID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// AcceptTask handles POST /api/v1/tasks/{id}/accept.
func (h *REST) AcceptTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	task, err := h.orc.Accept(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// SubmitTask handles POST /api/v1/tasks/{id}/submit.
func (h *REST) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string `json:"user_id"`
		SubmissionURL string `json:"submission_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	task, err := h.orc.Submit(r.Context(), chi.URLParam(r, "id"), req.UserID, req.SubmissionURL)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CancelTask handles POST /api/v1/tasks/{id}/cancel.
func (h *REST) CancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.orc.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpsertCandidate handles PUT /api/v1/candidates/{id} and invalidates the
// matcher's pool cache so the change shows up in the next ranking.
func (h *REST) UpsertCandidate(w http.ResponseWriter, r *http.Request) {
	if h.candidates == nil {
		writeError(w, http.StatusNotImplemented, "candidate roster is not configured")
		return
	}
	var c domain.Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c.UserID = chi.URLParam(r, "id")
	if c.UserID == "" || c.Name == "" {
		writeError(w, http.StatusBadRequest, "user id and name are required")
		return
	}
	if err := h.candidates.Upsert(r.Context(), &c); err != nil {
		h.logger.Error("candidate upsert failed", slog.String("user_id", c.UserID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to save candidate")
		return
	}
	if h.pool != nil {
		h.pool.Invalidate()
	}
	writeJSON(w, http.StatusOK, &c)
}

// Healthz handles GET /healthz.
func (h *REST) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz — verifies the task store answers.
func (h *REST) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.orc.List(ctx, store.Filter{Limit: 1}); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		transitionErr *domain.InvalidTransitionError
		authErr       *domain.AuthorizationError
	)
	switch {
	case errors.Is(err, orchestrator.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, "duplicate creation request")
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &notFoundErr):
		writeError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, transitionErr.Error())
	case errors.As(err, &authErr):
		writeError(w, http.StatusForbidden, authErr.Error())
	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
