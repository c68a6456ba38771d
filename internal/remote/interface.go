// Package remote defines the cloud store contract the sync engine consumes,
// plus the two shipped implementations: an HTTP JSON API client and a
// Turso (hosted libSQL) database client.
//
// Implementations must distinguish transport failures from data-level
// rejections (see errors.go) so the engine can tell whether a record was
// actually attempted against the cloud store.
package remote

import (
	"context"
	"time"

	"github.com/lernio/studysync/internal/record"
)

// GoalPatch is a partial update to a study goal. Nil fields are left
// untouched.
type GoalPatch struct {
	Text      *string
	Completed *bool
	DueAt     *time.Time
}

// Store is the cloud-store contract the sync engine consumes. All reads are
// scoped to one owner; limit <= 0 means no limit.
type Store interface {
	GetPerformance(ctx context.Context, ownerID string, limit int) ([]*record.PerformanceRecord, error)
	SavePerformance(ctx context.Context, rec *record.PerformanceRecord) error

	GetStudyGoals(ctx context.Context, ownerID string) ([]*record.StudyGoal, error)
	SaveStudyGoal(ctx context.Context, goal *record.StudyGoal) error
	UpdateStudyGoal(ctx context.Context, id string, patch GoalPatch) error

	GetAchievements(ctx context.Context, ownerID string) ([]*record.Achievement, error)
	SaveAchievement(ctx context.Context, a *record.Achievement) error

	GetQuestions(ctx context.Context, ownerID string, limit int) ([]*record.Question, error)
	SaveQuestion(ctx context.Context, q *record.Question) error
}
