package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/justDance-everybody/Taskbot-MVP/internal/orchestrator"
)

// Webhook receives review verdicts from external reviewers (CI pipelines,
// human review tools). It is the manual-resolution path for tasks whose
// automatic review degraded.
type Webhook struct {
	orc    *orchestrator.Orchestrator
	token  string // empty disables auth
	logger *slog.Logger
}

// NewWebhook creates the webhook handler. token, when non-empty, must match
// the Authorization bearer token on every request.
func NewWebhook(orc *orchestrator.Orchestrator, token string, logger *slog.Logger) *Webhook {
	return &Webhook{orc: orc, token: token, logger: logger}
}

// ReviewCallbackRequest is the JSON body for POST /webhooks/review.
type ReviewCallbackRequest struct {
	TaskID  string   `json:"task_id"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// ReviewCallback handles POST /webhooks/review.
func (h *Webhook) ReviewCallback(w http.ResponseWriter, r *http.Request) {
	if h.token != "" {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != h.token {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
	}

	var req ReviewCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "field 'task_id' is required")
		return
	}

	task, err := h.orc.Evaluate(r.Context(), req.TaskID, req.Score, req.Reasons)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("review callback applied",
		slog.String("task_id", req.TaskID),
		slog.Int("score", req.Score),
		slog.String("status", string(task.Status)),
	)
	writeJSON(w, http.StatusOK, task)
}
