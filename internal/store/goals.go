package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lernio/studysync/internal/record"
)

// PutGoal inserts or overwrites a study goal keyed by its explicit id.
func (s *Store) PutGoal(ctx context.Context, goal *record.StudyGoal) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := goal.Validate(); err != nil {
		return fmt.Errorf("invalid study goal: %w", err)
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO study_goals (id, owner_id, text, completed, due_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			text = excluded.text,
			completed = excluded.completed,
			due_at = excluded.due_at,
			created_at = excluded.created_at`,
		goal.ID,
		goal.OwnerID,
		goal.Text,
		boolToInt(goal.Completed),
		timeToNullString(goal.DueAt),
		goal.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return wrapAbort(ctx, fmt.Errorf("failed to upsert study goal %s: %w", goal.ID, err))
	}
	return nil
}

// GetGoal retrieves a study goal by id. Returns ErrNotFound if no goal with
// that id exists.
func (s *Store) GetGoal(ctx context.Context, id string) (*record.StudyGoal, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	row := s.conn.QueryRowContext(ctx, `
		SELECT id, owner_id, text, completed, due_at, created_at
		FROM study_goals
		WHERE id = ?`, id)

	goal, err := scanGoal(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: study goal %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, wrapAbort(ctx, err)
	}
	return goal, nil
}

// ListGoals returns all study goals for the owner, oldest first.
func (s *Store) ListGoals(ctx context.Context, ownerID string) ([]*record.StudyGoal, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, owner_id, text, completed, due_at, created_at
		FROM study_goals
		WHERE owner_id = ?
		ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, wrapAbort(ctx, fmt.Errorf("failed to query study goals: %w", err))
	}
	defer rows.Close()

	var goals []*record.StudyGoal
	for rows.Next() {
		goal, err := scanGoal(rows.Scan)
		if err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapAbort(ctx, fmt.Errorf("error iterating study goals: %w", err))
	}
	return goals, nil
}

// SetGoalCompleted updates only the completion flag of a goal. The sync
// engine uses this to apply the server-authoritative value locally.
func (s *Store) SetGoalCompleted(ctx context.Context, id string, completed bool) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	res, err := s.conn.ExecContext(ctx,
		`UPDATE study_goals SET completed = ? WHERE id = ?`, boolToInt(completed), id)
	if err != nil {
		return wrapAbort(ctx, fmt.Errorf("failed to update study goal %s: %w", id, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: study goal %s", ErrNotFound, id)
	}
	return nil
}

// DeleteGoal removes a study goal by id. Deleting a missing goal is a no-op.
func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM study_goals WHERE id = ?`, id); err != nil {
		return wrapAbort(ctx, fmt.Errorf("failed to delete study goal %s: %w", id, err))
	}
	return nil
}

// CountGoals returns the number of study goals for the owner.
func (s *Store) CountGoals(ctx context.Context, ownerID string) (int, error) {
	return s.countByOwner(ctx, "study_goals", ownerID)
}

// ClearGoals removes all study goals for the owner. Used only by the
// explicit full-pull restore.
func (s *Store) ClearGoals(ctx context.Context, ownerID string) error {
	return s.clearByOwner(ctx, "study_goals", ownerID)
}

func scanGoal(scan func(...any) error) (*record.StudyGoal, error) {
	var goal record.StudyGoal
	var completed int
	var dueAt sql.NullString
	var createdAt string

	err := scan(&goal.ID, &goal.OwnerID, &goal.Text, &completed, &dueAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan study goal: %w", err)
	}

	goal.Completed = completed != 0
	goal.DueAt = nullStringToTime(dueAt)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		goal.CreatedAt = t
	}
	return &goal, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
