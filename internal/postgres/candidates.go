package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

// CandidateStore reads and writes the candidate roster. Reads go through the
// matcher's TTL cache; writes come from the roster admin endpoints.
type CandidateStore struct {
	pool *pgxpool.Pool
}

// NewCandidateStore wraps a pgxpool with candidate access.
func NewCandidateStore(pool *pgxpool.Pool) *CandidateStore {
	return &CandidateStore{pool: pool}
}

// List returns the full candidate roster.
func (s *CandidateStore) List(ctx context.Context) ([]*domain.Candidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, name, skill_tags, hours_available, performance_score, last_completed_at
		FROM candidates
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.UserID, &c.Name, &c.SkillTags, &c.HoursAvailable,
			&c.PerformanceScore, &c.LastCompletedAt); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, &c)
	}
	return candidates, rows.Err()
}

// Upsert inserts or replaces a candidate keyed on user_id.
func (s *CandidateStore) Upsert(ctx context.Context, c *domain.Candidate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO candidates (user_id, name, skill_tags, hours_available, performance_score, last_completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name,
		    skill_tags = EXCLUDED.skill_tags,
		    hours_available = EXCLUDED.hours_available,
		    performance_score = EXCLUDED.performance_score,
		    last_completed_at = EXCLUDED.last_completed_at
	`, c.UserID, c.Name, c.SkillTags, c.HoursAvailable, c.PerformanceScore, c.LastCompletedAt)
	if err != nil {
		return fmt.Errorf("upsert candidate %s: %w", c.UserID, err)
	}
	return nil
}

// MarkCompleted stamps a candidate's last completion time, feeding the
// recency subscore on future rankings.
func (s *CandidateStore) MarkCompleted(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE candidates SET last_completed_at = now() WHERE user_id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("mark candidate %s completed: %w", userID, err)
	}
	return nil
}
