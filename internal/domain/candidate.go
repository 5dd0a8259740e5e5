package domain

import "time"

// DefaultPerformance is assumed for candidates with no scored history.
const DefaultPerformance = 70.0

// Candidate is a person eligible for task assignment.
type Candidate struct {
	UserID           string     `json:"user_id"`
	Name             string     `json:"name"`
	SkillTags        []string   `json:"skill_tags"`
	HoursAvailable   float64    `json:"hours_available"`
	PerformanceScore float64    `json:"performance_score"`
	LastCompletedAt  *time.Time `json:"last_completed_at,omitempty"`
}

// Subscores is the per-dimension breakdown behind a match score.
type Subscores struct {
	Skill        float64 `json:"skill"`
	Availability float64 `json:"availability"`
	Performance  float64 `json:"performance"`
	Recency      float64 `json:"recency"`
}

// MatchResult is a candidate's computed ranking for a specific task.
// TotalScore is the weighted integer total in [0, 100]; Reasons explains the
// ranking in the order the subscores were computed.
type MatchResult struct {
	CandidateID string    `json:"candidate_id"`
	TotalScore  int       `json:"total_score"`
	Breakdown   Subscores `json:"breakdown"`
	Reasons     []string  `json:"reasons"`
}
