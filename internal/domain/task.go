package domain

import "time"

// Status represents the states a task moves through between creation and a
// terminal outcome.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
	StatusReviewing  Status = "REVIEWING"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
	StatusCancelled  Status = "CANCELLED"
)

// IsTerminal returns true if no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// transitions is the full edge set of the task state machine. The only cycle
// is REVIEWING → IN_PROGRESS (resubmission), bounded by the orchestrator's
// review retry budget.
var transitions = map[Status][]Status{
	StatusPending:    {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusSubmitted, StatusCancelled},
	StatusSubmitted:  {StatusReviewing, StatusCancelled},
	StatusReviewing:  {StatusCompleted, StatusInProgress, StatusRejected, StatusCancelled},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Urgency is the priority band of a task. It drives the required-hours tier
// used by the availability subscore.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Valid reports whether u is one of the known urgency bands.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

// Task is the core domain entity: a unit of work assigned to a candidate and
// tracked through the lifecycle state machine. RequiredSkills is immutable
// after creation; Score is set only when the task reaches COMPLETED or
// REJECTED. One timestamp is recorded per transition actually taken.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	RequiredSkills []string   `json:"required_skills"`
	Deadline       time.Time  `json:"deadline"`
	Urgency        Urgency    `json:"urgency"`
	Status         Status     `json:"status"`
	CreatorID      string     `json:"creator_id"`
	AssigneeID     string     `json:"assignee_id,omitempty"`
	SubmissionURL  string     `json:"submission_url,omitempty"`
	Score          *int       `json:"score,omitempty"`
	ReviewAttempts int        `json:"review_attempts"`
	ReviewNote     string     `json:"review_note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
}
