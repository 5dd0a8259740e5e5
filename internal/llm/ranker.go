package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

const rankerSystemPrompt = `You rank candidates for a task assignment system.
Given a task and a candidate list, score each candidate 0-100 on overall fit
considering skill match, availability against the deadline, past performance
and how recently they completed work. Respond with JSON only:
{"ranking":[{"candidate_id":"...","total_score":0,"reasons":["..."]}]}
Order the ranking best first and include at most 3 candidates.`

// Ranker asks the LLM to rank candidates. It satisfies the matcher's provider
// contract: single attempt, blocks until ctx is done, structured output or
// error. Validation and fallback live in the matcher, not here.
type Ranker struct {
	client *Client
}

// NewRanker builds a Ranker over client.
func NewRanker(client *Client) *Ranker {
	return &Ranker{client: client}
}

// Name identifies the provider in logs and metrics.
func (r *Ranker) Name() string { return r.client.Name() }

type rankerReply struct {
	Ranking []struct {
		CandidateID string   `json:"candidate_id"`
		TotalScore  int      `json:"total_score"`
		Reasons     []string `json:"reasons"`
	} `json:"ranking"`
}

// Rank sends one ranking request and parses the reply.
func (r *Ranker) Rank(ctx context.Context, task *domain.Task, candidates []*domain.Candidate) ([]domain.MatchResult, error) {
	content, err := r.client.Complete(ctx, rankerSystemPrompt, rankerUserPrompt(task, candidates))
	if err != nil {
		return nil, err
	}

	var reply rankerReply
	if err := json.Unmarshal([]byte(ExtractJSON(content)), &reply); err != nil {
		return nil, fmt.Errorf("parse ranking reply: %w", err)
	}

	results := make([]domain.MatchResult, 0, len(reply.Ranking))
	for _, entry := range reply.Ranking {
		results = append(results, domain.MatchResult{
			CandidateID: entry.CandidateID,
			TotalScore:  entry.TotalScore,
			Reasons:     entry.Reasons,
		})
	}
	return results, nil
}

func rankerUserPrompt(task *domain.Task, candidates []*domain.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	fmt.Fprintf(&b, "Description: %s\n", task.Description)
	fmt.Fprintf(&b, "Required skills: %s\n", strings.Join(task.RequiredSkills, ", "))
	fmt.Fprintf(&b, "Urgency: %s\n", task.Urgency)
	fmt.Fprintf(&b, "Deadline: %s\n\nCandidates:\n", task.Deadline.Format(time.RFC3339))
	for _, c := range candidates {
		last := "never"
		if c.LastCompletedAt != nil {
			last = c.LastCompletedAt.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "- id=%s skills=[%s] hours_available=%.1f performance=%.0f last_completed=%s\n",
			c.UserID, strings.Join(c.SkillTags, ", "), c.HoursAvailable, c.PerformanceScore, last)
	}
	return b.String()
}
