// Package postgres is the durable TaskStore and CandidatePool. The store's
// UpdateIf maps the orchestrator's compare-and-swap onto a conditional UPDATE
// keyed on the current status.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
	"github.com/justDance-everybody/Taskbot-MVP/internal/store"
)

// NewPool creates a pgxpool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// TaskStore persists tasks in PostgreSQL.
type TaskStore struct {
	pool *pgxpool.Pool
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore wraps a pgxpool with the TaskStore contract.
func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

const taskColumns = `id, title, description, required_skills, deadline, urgency, status,
       creator_id, assignee_id, submission_url, score, review_attempts, review_note,
       created_at, updated_at, assigned_at, submitted_at, completed_at, rejected_at, cancelled_at`

func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks
			(id, title, description, required_skills, deadline, urgency, status,
			 creator_id, assignee_id, submission_url, score, review_attempts, review_note,
			 created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		task.ID, task.Title, task.Description, task.RequiredSkills,
		task.Deadline, string(task.Urgency), string(task.Status),
		task.CreatorID, task.AssigneeID, task.SubmissionURL,
		task.Score, task.ReviewAttempts, task.ReviewNote,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task %s: %w", task.ID, err)
	}
	return nil
}

func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1
	`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{TaskID: id}
		}
		return nil, err
	}
	return task, nil
}

// UpdateIf writes the full task row only while the stored status still equals
// expect. Returns false with no error when a concurrent transition won.
func (s *TaskStore) UpdateIf(ctx context.Context, task *domain.Task, expect domain.Status) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, required_skills = $3, deadline = $4,
		    urgency = $5, status = $6, creator_id = $7, assignee_id = $8,
		    submission_url = $9, score = $10, review_attempts = $11, review_note = $12,
		    updated_at = $13, assigned_at = $14, submitted_at = $15,
		    completed_at = $16, rejected_at = $17, cancelled_at = $18
		WHERE id = $19 AND status = $20
	`,
		task.Title, task.Description, task.RequiredSkills, task.Deadline,
		string(task.Urgency), string(task.Status), task.CreatorID, task.AssigneeID,
		task.SubmissionURL, task.Score, task.ReviewAttempts, task.ReviewNote,
		task.UpdatedAt, task.AssignedAt, task.SubmittedAt,
		task.CompletedAt, task.RejectedAt, task.CancelledAt,
		task.ID, string(expect),
	)
	if err != nil {
		return false, fmt.Errorf("update task %s: %w", task.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a lost CAS from a missing row.
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, task.ID).Scan(&exists); err != nil {
			return false, fmt.Errorf("check task %s: %w", task.ID, err)
		}
		if !exists {
			return false, &domain.NotFoundError{TaskID: task.ID}
		}
		return false, nil
	}
	return true, nil
}

func (s *TaskStore) List(ctx context.Context, f store.Filter) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var (
		conds []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if f.AssigneeID != "" {
		args = append(args, f.AssigneeID)
		conds = append(conds, fmt.Sprintf("assignee_id = $%d", len(args)))
	}
	if f.CreatorID != "" {
		args = append(args, f.CreatorID)
		conds = append(conds, fmt.Sprintf("creator_id = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC, id ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// scanTask reads a task row from any pgx row type.
func scanTask(row interface {
	Scan(...any) error
}) (*domain.Task, error) {
	var task domain.Task
	var urgencyStr, statusStr string
	err := row.Scan(
		&task.ID, &task.Title, &task.Description, &task.RequiredSkills,
		&task.Deadline, &urgencyStr, &statusStr,
		&task.CreatorID, &task.AssigneeID, &task.SubmissionURL,
		&task.Score, &task.ReviewAttempts, &task.ReviewNote,
		&task.CreatedAt, &task.UpdatedAt, &task.AssignedAt, &task.SubmittedAt,
		&task.CompletedAt, &task.RejectedAt, &task.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	task.Urgency = domain.Urgency(urgencyStr)
	task.Status = domain.Status(statusStr)
	return &task, nil
}
