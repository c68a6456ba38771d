package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lernio/studysync/internal/record"
)

// InsertAchievement appends an achievement for its owner and fills in the
// assigned local id.
func (s *Store) InsertAchievement(ctx context.Context, a *record.Achievement) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid achievement: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO achievements (owner_id, title, description, icon, points, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.OwnerID,
		a.Title,
		a.Description,
		a.Icon,
		a.Points,
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return wrapAbort(ctx, fmt.Errorf("failed to insert achievement: %w", err))
	}

	if id, err := res.LastInsertId(); err == nil {
		a.LocalID = id
	}
	return nil
}

// ListAchievements returns all achievements for the owner, newest first.
func (s *Store) ListAchievements(ctx context.Context, ownerID string) ([]*record.Achievement, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, owner_id, title, description, icon, points, created_at
		FROM achievements
		WHERE owner_id = ?
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, wrapAbort(ctx, fmt.Errorf("failed to query achievements: %w", err))
	}
	defer rows.Close()

	var achievements []*record.Achievement
	for rows.Next() {
		var a record.Achievement
		var description, icon sql.NullString
		var createdAt string

		err := rows.Scan(&a.LocalID, &a.OwnerID, &a.Title, &description, &icon, &a.Points, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}

		a.Description = description.String
		a.Icon = icon.String
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			a.CreatedAt = t
		}

		achievements = append(achievements, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapAbort(ctx, fmt.Errorf("error iterating achievements: %w", err))
	}
	return achievements, nil
}

// CountAchievements returns the number of achievements for the owner.
func (s *Store) CountAchievements(ctx context.Context, ownerID string) (int, error) {
	return s.countByOwner(ctx, "achievements", ownerID)
}

// ClearAchievements removes all achievements for the owner. Used only by
// the explicit full-pull restore.
func (s *Store) ClearAchievements(ctx context.Context, ownerID string) error {
	return s.clearByOwner(ctx, "achievements", ownerID)
}
