package domain

import (
	"fmt"
	"time"
)

// ValidationError is returned when task creation input is malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// NotFoundError is returned when a task ID does not exist.
type NotFoundError struct {
	TaskID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// InvalidTransitionError is returned when an operation is not legal from the
// task's current status. The operation is rejected with no side effect.
type InvalidTransitionError struct {
	TaskID string
	From   Status
	Op     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: operation %q not allowed from status %s", e.TaskID, e.Op, e.From)
}

// AuthorizationError is returned when the acting user is not entitled to
// perform the transition (e.g. submitting someone else's task).
type AuthorizationError struct {
	TaskID string
	UserID string
	Op     string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %s may not %s task %s", e.UserID, e.Op, e.TaskID)
}

// ProviderError is returned when an external provider (AI ranking, review
// evaluation) fails outright.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ProviderTimeoutError is returned when an external provider does not answer
// within its timeout budget.
type ProviderTimeoutError struct {
	Provider string
	Timeout  time.Duration
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("provider %s timed out after %s", e.Provider, e.Timeout)
}
