package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lernio/studysync/internal/record"
)

// InsertPerformance appends a performance record for its owner and fills in
// the assigned local id.
func (s *Store) InsertPerformance(ctx context.Context, rec *record.PerformanceRecord) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid performance record: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO performance (owner_id, subject, chapter, score, completed_at, assessment_type, difficulty)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.OwnerID,
		rec.Subject,
		rec.Chapter,
		rec.Score,
		rec.CompletedAt.UTC().Format(time.RFC3339),
		rec.AssessmentType,
		rec.Difficulty,
	)
	if err != nil {
		return wrapAbort(ctx, fmt.Errorf("failed to insert performance record: %w", err))
	}

	if id, err := res.LastInsertId(); err == nil {
		rec.LocalID = id
	}
	return nil
}

// ListPerformance returns all performance records for the owner, newest
// completion first.
func (s *Store) ListPerformance(ctx context.Context, ownerID string) ([]*record.PerformanceRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, owner_id, subject, chapter, score, completed_at, assessment_type, difficulty
		FROM performance
		WHERE owner_id = ?
		ORDER BY completed_at DESC`, ownerID)
	if err != nil {
		return nil, wrapAbort(ctx, fmt.Errorf("failed to query performance records: %w", err))
	}
	defer rows.Close()

	var recs []*record.PerformanceRecord
	for rows.Next() {
		var rec record.PerformanceRecord
		var completedAt string
		var assessment, difficulty sql.NullString

		err := rows.Scan(
			&rec.LocalID,
			&rec.OwnerID,
			&rec.Subject,
			&rec.Chapter,
			&rec.Score,
			&completedAt,
			&assessment,
			&difficulty,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan performance record: %w", err)
		}

		if t, err := time.Parse(time.RFC3339, completedAt); err == nil {
			rec.CompletedAt = t
		}
		rec.AssessmentType = assessment.String
		rec.Difficulty = difficulty.String

		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapAbort(ctx, fmt.Errorf("error iterating performance records: %w", err))
	}
	return recs, nil
}

// CountPerformance returns the number of performance records for the owner.
func (s *Store) CountPerformance(ctx context.Context, ownerID string) (int, error) {
	return s.countByOwner(ctx, "performance", ownerID)
}

// ClearPerformance removes all performance records for the owner. Used only
// by the explicit full-pull restore.
func (s *Store) ClearPerformance(ctx context.Context, ownerID string) error {
	return s.clearByOwner(ctx, "performance", ownerID)
}

// countByOwner counts rows in a collection scoped to one owner.
func (s *Store) countByOwner(ctx context.Context, table, ownerID string) (int, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	var count int
	err := s.conn.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE owner_id = ?", table), ownerID).Scan(&count)
	if err != nil {
		return 0, wrapAbort(ctx, fmt.Errorf("failed to count %s: %w", table, err))
	}
	return count, nil
}

// clearByOwner deletes all rows in a collection scoped to one owner.
func (s *Store) clearByOwner(ctx context.Context, table, ownerID string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if _, err := s.conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE owner_id = ?", table), ownerID); err != nil {
		return wrapAbort(ctx, fmt.Errorf("failed to clear %s: %w", table, err))
	}
	return nil
}
