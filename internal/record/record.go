// Package record defines the four synchronized record kinds and their
// sync identities.
//
// Every record belongs to an owner (a student identity). Records travel
// between the per-device store and the cloud store, so each kind exposes a
// SyncKey: the identity used to decide whether a record already exists on
// the other side. StudyGoal and Question carry explicit ids; performance
// records and achievements have no shared id, so their identity is a
// composite of content fields with day-granularity timestamps.
package record

import (
	"fmt"
	"strings"
	"time"
)

// Collection names as persisted in the local store.
const (
	CollectionPerformance  = "performance"
	CollectionStudyGoals   = "study_goals"
	CollectionAchievements = "achievements"
	CollectionQuestions    = "questions"
)

// Collections lists all synchronized collections in reconciliation order.
var Collections = []string{
	CollectionPerformance,
	CollectionStudyGoals,
	CollectionAchievements,
	CollectionQuestions,
}

// dayKey reduces a timestamp to its UTC calendar day. Composite identities
// deliberately drop time-of-day so the same result recorded on two devices
// with clock skew still dedupes.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// PerformanceRecord is one graded result: a quiz, test, or practice session.
//
// It has no shared id across stores. Its sync identity is the composite
// (subject, chapter, score, completion day).
type PerformanceRecord struct {
	// LocalID is the local store's auto-assigned key. Never synced.
	LocalID int64 `json:"-"`

	OwnerID        string    `json:"owner_id"`
	Subject        string    `json:"subject"`
	Chapter        string    `json:"chapter"`
	Score          int       `json:"score"` // 0-100
	CompletedAt    time.Time `json:"completed_at"`
	AssessmentType string    `json:"assessment_type,omitempty"` // quiz, test, practice
	Difficulty     string    `json:"difficulty,omitempty"`      // easy, medium, hard
}

// Validate checks the record has usable field values.
func (r *PerformanceRecord) Validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if r.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if r.Chapter == "" {
		return fmt.Errorf("chapter is required")
	}
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("score must be between 0 and 100 (got %d)", r.Score)
	}
	if r.CompletedAt.IsZero() {
		return fmt.Errorf("completed_at is required")
	}
	return nil
}

// SyncKey returns the composite identity used for reconciliation.
func (r *PerformanceRecord) SyncKey() string {
	return strings.Join([]string{
		r.Subject,
		r.Chapter,
		fmt.Sprintf("%d", r.Score),
		dayKey(r.CompletedAt),
	}, "|")
}

// StudyGoal is a student-set or teacher-assigned goal.
//
// Completion state is server-authoritative: when local and remote disagree,
// the remote value wins and is written back locally.
type StudyGoal struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Text      string     `json:"text"`
	Completed bool       `json:"completed"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Validate checks the goal has usable field values.
func (g *StudyGoal) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("id is required")
	}
	if g.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if g.Text == "" {
		return fmt.Errorf("text is required")
	}
	if len(g.Text) > 1000 {
		return fmt.Errorf("text must be 1000 characters or less (got %d)", len(g.Text))
	}
	if g.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// SyncKey returns the goal's explicit id.
func (g *StudyGoal) SyncKey() string { return g.ID }

// Achievement is an earned badge with a point value.
//
// No explicit shared id exists across stores, so the sync identity is the
// composite (title, creation day).
type Achievement struct {
	// LocalID is the local store's auto-assigned key. Never synced.
	LocalID int64 `json:"-"`

	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the achievement has usable field values.
func (a *Achievement) Validate() error {
	if a.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if a.Title == "" {
		return fmt.Errorf("title is required")
	}
	if a.Points < 0 {
		return fmt.Errorf("points must be non-negative (got %d)", a.Points)
	}
	if a.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// SyncKey returns the composite identity used for reconciliation.
func (a *Achievement) SyncKey() string {
	return a.Title + "|" + dayKey(a.CreatedAt)
}

// Question is an open question a student asked about a concept, optionally
// holding the generated answer once one arrived.
type Question struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Subject  string `json:"subject"`
	Chapter  string `json:"chapter,omitempty"`
	Concept  string `json:"concept"`
	Text     string `json:"text"`
	Response string `json:"response,omitempty"`
	Resolved bool   `json:"resolved"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the question has usable field values.
func (q *Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("id is required")
	}
	if q.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if q.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if q.Concept == "" {
		return fmt.Errorf("concept is required")
	}
	if q.Text == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// SyncKey returns the question's explicit id.
func (q *Question) SyncKey() string { return q.ID }
