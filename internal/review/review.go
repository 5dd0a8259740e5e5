// Package review scores task submissions. The orchestrator applies the
// verdict; evaluators only produce it.
package review

import (
	"context"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

// DefaultPassThreshold is the minimum score a submission needs to pass.
const DefaultPassThreshold = 80

// Outcome is one evaluation verdict.
type Outcome struct {
	// Score is the quality score in [0, 100].
	Score int `json:"score"`
	// Passed reports whether the submission met the threshold.
	Passed bool `json:"passed"`
	// FailedReasons lists what fell short. Empty when Passed.
	FailedReasons []string `json:"failed_reasons,omitempty"`
	// Suggestions tells the assignee what to improve before resubmitting.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Evaluator scores a submitted task. Implementations block until ctx is done;
// the caller owns the deadline. An error means the evaluation could not be
// performed at all, not that the submission failed.
type Evaluator interface {
	Evaluate(ctx context.Context, task *domain.Task) (Outcome, error)
	Name() string
}
