package remote

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/lernio/studysync/internal/record"
)

// TursoStore is a Store backed by a hosted libSQL (Turso) database, for
// deployments whose cloud store is a shared database rather than an API
// service. The connection goes over the network, so database errors are
// reported as transport failures; only validation problems are rejections.
type TursoStore struct {
	conn   *sql.DB
	logger *log.Logger
}

// OpenTurso connects to a Turso database. The URL has the form
// libsql://<name>.turso.io and authToken authenticates the device.
func OpenTurso(dbURL, authToken string, logger *log.Logger) (*TursoStore, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[turso] ", log.LstdFlags)
	}

	connStr := dbURL
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", dbURL, authToken)
	}

	conn, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open turso database: %w", err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetConnMaxIdleTime(time.Minute)

	return &TursoStore{conn: conn, logger: logger}, nil
}

// Close closes the database connection.
func (t *TursoStore) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// EnsureSchema creates the cloud-side tables if they don't exist. Safe to
// call from any device; first caller wins, the rest are no-ops.
func (t *TursoStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS performance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		chapter TEXT NOT NULL,
		score INTEGER NOT NULL,
		completed_at TEXT NOT NULL,
		assessment_type TEXT,
		difficulty TEXT
	);
	CREATE TABLE IF NOT EXISTS study_goals (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		text TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		due_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS achievements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		icon TEXT,
		points INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		chapter TEXT,
		concept TEXT NOT NULL,
		text TEXT NOT NULL,
		response TEXT,
		resolved INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_performance_owner ON performance(owner_id);
	CREATE INDEX IF NOT EXISTS idx_study_goals_owner ON study_goals(owner_id);
	CREATE INDEX IF NOT EXISTS idx_achievements_owner ON achievements(owner_id);
	CREATE INDEX IF NOT EXISTS idx_questions_owner ON questions(owner_id);
	`
	if _, err := t.conn.ExecContext(ctx, schema); err != nil {
		return &TransportError{Op: "ensureSchema", Err: err}
	}
	return nil
}

// GetPerformance implements Store.
func (t *TursoStore) GetPerformance(ctx context.Context, ownerID string, limit int) ([]*record.PerformanceRecord, error) {
	query := `
		SELECT owner_id, subject, chapter, score, completed_at, assessment_type, difficulty
		FROM performance WHERE owner_id = ? ORDER BY completed_at DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := t.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &TransportError{Op: "getPerformance", Err: err}
	}
	defer rows.Close()

	var recs []*record.PerformanceRecord
	for rows.Next() {
		var rec record.PerformanceRecord
		var completedAt string
		var assessment, difficulty sql.NullString
		if err := rows.Scan(&rec.OwnerID, &rec.Subject, &rec.Chapter, &rec.Score, &completedAt, &assessment, &difficulty); err != nil {
			return nil, &TransportError{Op: "getPerformance", Err: err}
		}
		if t, err := time.Parse(time.RFC3339, completedAt); err == nil {
			rec.CompletedAt = t
		}
		rec.AssessmentType = assessment.String
		rec.Difficulty = difficulty.String
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &TransportError{Op: "getPerformance", Err: err}
	}
	return recs, nil
}

// SavePerformance implements Store.
func (t *TursoStore) SavePerformance(ctx context.Context, rec *record.PerformanceRecord) error {
	if err := rec.Validate(); err != nil {
		return &RejectedError{Op: "savePerformance", Reason: err.Error()}
	}
	_, err := t.conn.ExecContext(ctx, `
		INSERT INTO performance (owner_id, subject, chapter, score, completed_at, assessment_type, difficulty)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.OwnerID, rec.Subject, rec.Chapter, rec.Score,
		rec.CompletedAt.UTC().Format(time.RFC3339), rec.AssessmentType, rec.Difficulty)
	if err != nil {
		return &TransportError{Op: "savePerformance", Err: err}
	}
	return nil
}

// GetStudyGoals implements Store.
func (t *TursoStore) GetStudyGoals(ctx context.Context, ownerID string) ([]*record.StudyGoal, error) {
	rows, err := t.conn.QueryContext(ctx, `
		SELECT id, owner_id, text, completed, due_at, created_at
		FROM study_goals WHERE owner_id = ? ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, &TransportError{Op: "getStudyGoals", Err: err}
	}
	defer rows.Close()

	var goals []*record.StudyGoal
	for rows.Next() {
		var goal record.StudyGoal
		var completed int
		var dueAt sql.NullString
		var createdAt string
		if err := rows.Scan(&goal.ID, &goal.OwnerID, &goal.Text, &completed, &dueAt, &createdAt); err != nil {
			return nil, &TransportError{Op: "getStudyGoals", Err: err}
		}
		goal.Completed = completed != 0
		if dueAt.Valid {
			if t, err := time.Parse(time.RFC3339, dueAt.String); err == nil {
				goal.DueAt = &t
			}
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			goal.CreatedAt = t
		}
		goals = append(goals, &goal)
	}
	if err := rows.Err(); err != nil {
		return nil, &TransportError{Op: "getStudyGoals", Err: err}
	}
	return goals, nil
}

// SaveStudyGoal implements Store.
func (t *TursoStore) SaveStudyGoal(ctx context.Context, goal *record.StudyGoal) error {
	if err := goal.Validate(); err != nil {
		return &RejectedError{Op: "saveStudyGoal", Reason: err.Error()}
	}
	var dueAt sql.NullString
	if goal.DueAt != nil {
		dueAt = sql.NullString{String: goal.DueAt.UTC().Format(time.RFC3339), Valid: true}
	}
	completed := 0
	if goal.Completed {
		completed = 1
	}
	_, err := t.conn.ExecContext(ctx, `
		INSERT INTO study_goals (id, owner_id, text, completed, due_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			completed = excluded.completed,
			due_at = excluded.due_at`,
		goal.ID, goal.OwnerID, goal.Text, completed, dueAt,
		goal.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return &TransportError{Op: "saveStudyGoal", Err: err}
	}
	return nil
}

// UpdateStudyGoal implements Store.
func (t *TursoStore) UpdateStudyGoal(ctx context.Context, id string, patch GoalPatch) error {
	var sets []string
	var args []any

	if patch.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *patch.Text)
	}
	if patch.Completed != nil {
		completed := 0
		if *patch.Completed {
			completed = 1
		}
		sets = append(sets, "completed = ?")
		args = append(args, completed)
	}
	if patch.DueAt != nil {
		sets = append(sets, "due_at = ?")
		args = append(args, patch.DueAt.UTC().Format(time.RFC3339))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := t.conn.ExecContext(ctx,
		"UPDATE study_goals SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return &TransportError{Op: "updateStudyGoal", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &RejectedError{Op: "updateStudyGoal", Reason: fmt.Sprintf("goal %s not found", id)}
	}
	return nil
}

// GetAchievements implements Store.
func (t *TursoStore) GetAchievements(ctx context.Context, ownerID string) ([]*record.Achievement, error) {
	rows, err := t.conn.QueryContext(ctx, `
		SELECT owner_id, title, description, icon, points, created_at
		FROM achievements WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, &TransportError{Op: "getAchievements", Err: err}
	}
	defer rows.Close()

	var achievements []*record.Achievement
	for rows.Next() {
		var a record.Achievement
		var description, icon sql.NullString
		var createdAt string
		if err := rows.Scan(&a.OwnerID, &a.Title, &description, &icon, &a.Points, &createdAt); err != nil {
			return nil, &TransportError{Op: "getAchievements", Err: err}
		}
		a.Description = description.String
		a.Icon = icon.String
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			a.CreatedAt = t
		}
		achievements = append(achievements, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, &TransportError{Op: "getAchievements", Err: err}
	}
	return achievements, nil
}

// SaveAchievement implements Store.
func (t *TursoStore) SaveAchievement(ctx context.Context, a *record.Achievement) error {
	if err := a.Validate(); err != nil {
		return &RejectedError{Op: "saveAchievement", Reason: err.Error()}
	}
	_, err := t.conn.ExecContext(ctx, `
		INSERT INTO achievements (owner_id, title, description, icon, points, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.OwnerID, a.Title, a.Description, a.Icon, a.Points,
		a.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return &TransportError{Op: "saveAchievement", Err: err}
	}
	return nil
}

// GetQuestions implements Store.
func (t *TursoStore) GetQuestions(ctx context.Context, ownerID string, limit int) ([]*record.Question, error) {
	query := `
		SELECT id, owner_id, subject, chapter, concept, text, response, resolved, created_at
		FROM questions WHERE owner_id = ? ORDER BY created_at DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := t.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &TransportError{Op: "getQuestions", Err: err}
	}
	defer rows.Close()

	var questions []*record.Question
	for rows.Next() {
		var q record.Question
		var chapter, response sql.NullString
		var resolved int
		var createdAt string
		if err := rows.Scan(&q.ID, &q.OwnerID, &q.Subject, &chapter, &q.Concept, &q.Text, &response, &resolved, &createdAt); err != nil {
			return nil, &TransportError{Op: "getQuestions", Err: err}
		}
		q.Chapter = chapter.String
		q.Response = response.String
		q.Resolved = resolved != 0
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			q.CreatedAt = t
		}
		questions = append(questions, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, &TransportError{Op: "getQuestions", Err: err}
	}
	return questions, nil
}

// SaveQuestion implements Store.
func (t *TursoStore) SaveQuestion(ctx context.Context, q *record.Question) error {
	if err := q.Validate(); err != nil {
		return &RejectedError{Op: "saveQuestion", Reason: err.Error()}
	}
	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	resolved := 0
	if q.Resolved {
		resolved = 1
	}
	_, err := t.conn.ExecContext(ctx, `
		INSERT INTO questions (id, owner_id, subject, chapter, concept, text, response, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			response = excluded.response,
			resolved = excluded.resolved`,
		q.ID, q.OwnerID, q.Subject, q.Chapter, q.Concept, q.Text, q.Response, resolved,
		createdAt.UTC().Format(time.RFC3339))
	if err != nil {
		return &TransportError{Op: "saveQuestion", Err: err}
	}
	return nil
}
