package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lernio/studysync/internal/record"
)

// openTestStore opens and migrates a store in a temporary directory.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	return s
}

func testPerformance(owner string) *record.PerformanceRecord {
	return &record.PerformanceRecord{
		OwnerID:     owner,
		Subject:     "math",
		Chapter:     "algebra",
		Score:       85,
		CompletedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

// TestMigrate_CreatesTables tests that migration creates all collections.
func TestMigrate_CreatesTables(t *testing.T) {
	s := openTestStore(t)

	tables := []string{"performance", "study_goals", "achievements", "questions"}
	for _, table := range tables {
		var count int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
		if err := s.conn.QueryRow(query, table).Scan(&count); err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

// TestMigrate_Idempotent tests that running migration twice is harmless.
func TestMigrate_Idempotent(t *testing.T) {
	s := openTestStore(t)

	if err := s.Migrate(context.Background()); err != nil {
		t.Errorf("Second Migrate() failed: %v", err)
	}
}

// TestMigrate_ReopenPreservesData tests that data survives close and reopen
// with a fresh migration pass.
func TestMigrate_ReopenPreservesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if err := s.InsertPerformance(ctx, testPerformance("student-1")); err != nil {
		t.Fatalf("InsertPerformance() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	s, err = Open(path, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() after reopen failed: %v", err)
	}

	count, err := s.CountPerformance(ctx, "student-1")
	if err != nil {
		t.Fatalf("CountPerformance() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count after reopen = %d, want 1", count)
	}
}

// TestInsertPerformance_AssignsLocalID tests that inserting fills LocalID.
func TestInsertPerformance_AssignsLocalID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testPerformance("student-1")
	if err := s.InsertPerformance(ctx, rec); err != nil {
		t.Fatalf("InsertPerformance() failed: %v", err)
	}
	if rec.LocalID == 0 {
		t.Error("LocalID not assigned")
	}
}

// TestListPerformance_OwnerScoped tests that listing only returns the
// requested owner's records.
func TestListPerformance_OwnerScoped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.InsertPerformance(ctx, testPerformance("student-1")); err != nil {
		t.Fatalf("InsertPerformance() failed: %v", err)
	}
	other := testPerformance("student-2")
	other.Subject = "history"
	if err := s.InsertPerformance(ctx, other); err != nil {
		t.Fatalf("InsertPerformance() failed: %v", err)
	}

	recs, err := s.ListPerformance(ctx, "student-1")
	if err != nil {
		t.Fatalf("ListPerformance() failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1", len(recs))
	}
	if recs[0].Subject != "math" {
		t.Errorf("Subject = %q, want 'math'", recs[0].Subject)
	}
}

// TestGoalRoundTrip tests goal upsert, lookup, and completion update.
func TestGoalRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	goal := &record.StudyGoal{
		ID:        "goal-1",
		OwnerID:   "student-1",
		Text:      "Finish chapter 4",
		CreatedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	if err := s.PutGoal(ctx, goal); err != nil {
		t.Fatalf("PutGoal() failed: %v", err)
	}

	got, err := s.GetGoal(ctx, "goal-1")
	if err != nil {
		t.Fatalf("GetGoal() failed: %v", err)
	}
	if got.Text != goal.Text {
		t.Errorf("Text = %q, want %q", got.Text, goal.Text)
	}
	if got.Completed {
		t.Error("new goal marked completed")
	}

	if err := s.SetGoalCompleted(ctx, "goal-1", true); err != nil {
		t.Fatalf("SetGoalCompleted() failed: %v", err)
	}
	got, err = s.GetGoal(ctx, "goal-1")
	if err != nil {
		t.Fatalf("GetGoal() after update failed: %v", err)
	}
	if !got.Completed {
		t.Error("completion flag not persisted")
	}
}

// TestGetGoal_NotFound tests the missing-row sentinel.
func TestGetGoal_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetGoal(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestSetGoalCompleted_NotFound tests updating a missing goal.
func TestSetGoalCompleted_NotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.SetGoalCompleted(context.Background(), "missing", true)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestPutGoal_Upsert tests that a second put replaces the row.
func TestPutGoal_Upsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	goal := &record.StudyGoal{
		ID:        "goal-1",
		OwnerID:   "student-1",
		Text:      "Original",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.PutGoal(ctx, goal); err != nil {
		t.Fatalf("First PutGoal() failed: %v", err)
	}

	goal.Text = "Updated"
	if err := s.PutGoal(ctx, goal); err != nil {
		t.Fatalf("Second PutGoal() failed: %v", err)
	}

	count, err := s.CountGoals(ctx, "student-1")
	if err != nil {
		t.Fatalf("CountGoals() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	got, err := s.GetGoal(ctx, "goal-1")
	if err != nil {
		t.Fatalf("GetGoal() failed: %v", err)
	}
	if got.Text != "Updated" {
		t.Errorf("Text = %q, want 'Updated'", got.Text)
	}
}

// TestClearPerformance_OwnerScoped tests the destructive clear touches only
// one owner.
func TestClearPerformance_OwnerScoped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.InsertPerformance(ctx, testPerformance("student-1")); err != nil {
		t.Fatalf("InsertPerformance() failed: %v", err)
	}
	if err := s.InsertPerformance(ctx, testPerformance("student-2")); err != nil {
		t.Fatalf("InsertPerformance() failed: %v", err)
	}

	if err := s.ClearPerformance(ctx, "student-1"); err != nil {
		t.Fatalf("ClearPerformance() failed: %v", err)
	}

	count, err := s.CountPerformance(ctx, "student-1")
	if err != nil {
		t.Fatalf("CountPerformance() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("cleared owner count = %d, want 0", count)
	}
	count, err = s.CountPerformance(ctx, "student-2")
	if err != nil {
		t.Fatalf("CountPerformance() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("other owner count = %d, want 1", count)
	}
}

// TestCancelledContext_Aborts tests that a cancelled context maps to
// ErrAborted for reads and writes.
func TestCancelledContext_Aborts(t *testing.T) {
	s := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.InsertPerformance(ctx, testPerformance("student-1")); !errors.Is(err, ErrAborted) {
		t.Errorf("InsertPerformance err = %v, want ErrAborted", err)
	}
	if _, err := s.ListPerformance(ctx, "student-1"); !errors.Is(err, ErrAborted) {
		t.Errorf("ListPerformance err = %v, want ErrAborted", err)
	}
	if _, err := s.CountGoals(ctx, "student-1"); !errors.Is(err, ErrAborted) {
		t.Errorf("CountGoals err = %v, want ErrAborted", err)
	}

	// The store stays usable afterwards.
	if err := s.InsertPerformance(context.Background(), testPerformance("student-1")); err != nil {
		t.Errorf("insert after abort failed: %v", err)
	}
}

// TestQuestionsByConcept tests the concept-scoped secondary index query.
func TestDeleteGoal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	goal := &record.StudyGoal{
		ID:        "g1",
		OwnerID:   "student-1",
		Text:      "Review fractions",
		CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := s.PutGoal(ctx, goal); err != nil {
		t.Fatalf("PutGoal() failed: %v", err)
	}

	if err := s.DeleteGoal(ctx, "g1"); err != nil {
		t.Fatalf("DeleteGoal() failed: %v", err)
	}
	if _, err := s.GetGoal(ctx, "g1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGoal() after delete err = %v, want ErrNotFound", err)
	}

	// Deleting a missing goal is a no-op.
	if err := s.DeleteGoal(ctx, "g1"); err != nil {
		t.Errorf("DeleteGoal() of missing goal failed: %v", err)
	}
}

func TestQuestionsByConcept(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	questions := []*record.Question{
		{ID: "q-1", OwnerID: "student-1", Subject: "math", Concept: "fractions", Text: "a"},
		{ID: "q-2", OwnerID: "student-1", Subject: "math", Concept: "fractions", Text: "b"},
		{ID: "q-3", OwnerID: "student-1", Subject: "math", Concept: "decimals", Text: "c"},
	}
	for _, q := range questions {
		if err := s.PutQuestion(ctx, q); err != nil {
			t.Fatalf("PutQuestion(%s) failed: %v", q.ID, err)
		}
	}

	got, err := s.ListQuestionsByConcept(ctx, "student-1", "fractions")
	if err != nil {
		t.Fatalf("ListQuestionsByConcept() failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

// TestAchievementRoundTrip tests achievement insert and list.
func TestAchievementRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := &record.Achievement{
		OwnerID:   "student-1",
		Title:     "Week Streak",
		Points:    50,
		CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	if err := s.InsertAchievement(ctx, a); err != nil {
		t.Fatalf("InsertAchievement() failed: %v", err)
	}

	got, err := s.ListAchievements(ctx, "student-1")
	if err != nil {
		t.Fatalf("ListAchievements() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Title != "Week Streak" || got[0].Points != 50 {
		t.Errorf("got %+v, want title 'Week Streak' points 50", got[0])
	}
}
