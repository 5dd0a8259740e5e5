package review

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
	"github.com/justDance-everybody/Taskbot-MVP/internal/llm"
)

const evaluatorSystemPrompt = `You review task submissions for quality.
Given the task requirements and the submitted deliverable URL, score the
submission 0-100 against the stated requirements. A score of %d or higher
passes. Respond with JSON only:
{"score":0,"passed":false,"failed_reasons":["..."],"suggestions":["..."]}
Leave failed_reasons empty when the submission passes. Always give at least
one concrete suggestion when it fails.`

// LLMEvaluator scores submissions with the chat-completions API.
type LLMEvaluator struct {
	client    *llm.Client
	threshold int
}

// NewLLMEvaluator builds an evaluator over client. threshold <= 0 selects
// DefaultPassThreshold.
func NewLLMEvaluator(client *llm.Client, threshold int) *LLMEvaluator {
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	return &LLMEvaluator{client: client, threshold: threshold}
}

// Name identifies the evaluator in logs and the degraded-review note.
func (e *LLMEvaluator) Name() string { return e.client.Name() }

type evaluatorReply struct {
	Score         int      `json:"score"`
	Passed        bool     `json:"passed"`
	FailedReasons []string `json:"failed_reasons"`
	Suggestions   []string `json:"suggestions"`
}

// Evaluate sends one review request. Passed is recomputed locally from the
// threshold so a model that contradicts its own score cannot flip a verdict.
func (e *LLMEvaluator) Evaluate(ctx context.Context, task *domain.Task) (Outcome, error) {
	content, err := e.client.Complete(ctx,
		fmt.Sprintf(evaluatorSystemPrompt, e.threshold),
		evaluatorUserPrompt(task),
	)
	if err != nil {
		return Outcome{}, err
	}

	var reply evaluatorReply
	if err := json.Unmarshal([]byte(llm.ExtractJSON(content)), &reply); err != nil {
		return Outcome{}, fmt.Errorf("parse review reply: %w", err)
	}
	if reply.Score < 0 || reply.Score > 100 {
		return Outcome{}, fmt.Errorf("review score %d out of range", reply.Score)
	}

	out := Outcome{
		Score:         reply.Score,
		Passed:        reply.Score >= e.threshold,
		FailedReasons: reply.FailedReasons,
		Suggestions:   reply.Suggestions,
	}
	if out.Passed {
		out.FailedReasons = nil
	}
	return out, nil
}

func evaluatorUserPrompt(task *domain.Task) string {
	return fmt.Sprintf("Task: %s\nRequirements: %s\nSubmission: %s\n",
		task.Title, task.Description, task.SubmissionURL)
}
