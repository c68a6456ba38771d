package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lernio/studysync/internal/record"
)

// PutQuestion inserts or overwrites a question keyed by its explicit id.
func (s *Store) PutQuestion(ctx context.Context, q *record.Question) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := q.Validate(); err != nil {
		return fmt.Errorf("invalid question: %w", err)
	}

	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO questions (id, owner_id, subject, chapter, concept, text, response, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			subject = excluded.subject,
			chapter = excluded.chapter,
			concept = excluded.concept,
			text = excluded.text,
			response = excluded.response,
			resolved = excluded.resolved`,
		q.ID,
		q.OwnerID,
		q.Subject,
		q.Chapter,
		q.Concept,
		q.Text,
		q.Response,
		boolToInt(q.Resolved),
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return wrapAbort(ctx, fmt.Errorf("failed to upsert question %s: %w", q.ID, err))
	}
	return nil
}

// GetQuestion retrieves a question by id. Returns ErrNotFound if no
// question with that id exists.
func (s *Store) GetQuestion(ctx context.Context, id string) (*record.Question, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	row := s.conn.QueryRowContext(ctx, `
		SELECT id, owner_id, subject, chapter, concept, text, response, resolved, created_at
		FROM questions
		WHERE id = ?`, id)

	q, err := scanQuestion(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: question %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, wrapAbort(ctx, err)
	}
	return q, nil
}

// ListQuestions returns all questions for the owner, newest first.
func (s *Store) ListQuestions(ctx context.Context, ownerID string) ([]*record.Question, error) {
	return s.queryQuestions(ctx, `
		SELECT id, owner_id, subject, chapter, concept, text, response, resolved, created_at
		FROM questions
		WHERE owner_id = ?
		ORDER BY created_at DESC`, ownerID)
}

// ListQuestionsByConcept returns the owner's questions about one concept,
// using the owner+concept index.
func (s *Store) ListQuestionsByConcept(ctx context.Context, ownerID, concept string) ([]*record.Question, error) {
	return s.queryQuestions(ctx, `
		SELECT id, owner_id, subject, chapter, concept, text, response, resolved, created_at
		FROM questions
		WHERE owner_id = ? AND concept = ?
		ORDER BY created_at DESC`, ownerID, concept)
}

// CountQuestions returns the number of questions for the owner.
func (s *Store) CountQuestions(ctx context.Context, ownerID string) (int, error) {
	return s.countByOwner(ctx, "questions", ownerID)
}

// ClearQuestions removes all questions for the owner. Used only by the
// explicit full-pull restore.
func (s *Store) ClearQuestions(ctx context.Context, ownerID string) error {
	return s.clearByOwner(ctx, "questions", ownerID)
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...any) ([]*record.Question, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapAbort(ctx, fmt.Errorf("failed to query questions: %w", err))
	}
	defer rows.Close()

	var questions []*record.Question
	for rows.Next() {
		q, err := scanQuestion(rows.Scan)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapAbort(ctx, fmt.Errorf("error iterating questions: %w", err))
	}
	return questions, nil
}

func scanQuestion(scan func(...any) error) (*record.Question, error) {
	var q record.Question
	var chapter, response sql.NullString
	var resolved int
	var createdAt string

	err := scan(&q.ID, &q.OwnerID, &q.Subject, &chapter, &q.Concept, &q.Text, &response, &resolved, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan question: %w", err)
	}

	q.Chapter = chapter.String
	q.Response = response.String
	q.Resolved = resolved != 0
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		q.CreatedAt = t
	}
	return &q, nil
}
