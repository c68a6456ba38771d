package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lernio/studysync/internal/record"
)

// newTestClient points a client at a handler-backed test server.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "test-key"})
}

// TestGetPerformance_MapsWireFormat tests decoding the camelCase wire shape
// into the internal record.
func TestGetPerformance_MapsWireFormat(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/performance" {
			t.Errorf("path = %q, want /api/v1/performance", r.URL.Path)
		}
		if got := r.URL.Query().Get("ownerId"); got != "student-1" {
			t.Errorf("ownerId = %q, want 'student-1'", got)
		}
		if got := r.URL.Query().Get("limit"); got != "100" {
			t.Errorf("limit = %q, want '100'", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"ownerId": "student-1",
			"subject": "math",
			"chapter": "algebra",
			"score": 85,
			"completedDate": "2026-03-14T10:00:00Z",
			"assessmentType": "quiz"
		}]`))
	}))

	recs, err := client.GetPerformance(context.Background(), "student-1", 100)
	if err != nil {
		t.Fatalf("GetPerformance() failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1", len(recs))
	}

	rec := recs[0]
	if rec.Subject != "math" || rec.Chapter != "algebra" || rec.Score != 85 {
		t.Errorf("record = %+v", rec)
	}
	want := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if !rec.CompletedAt.Equal(want) {
		t.Errorf("CompletedAt = %v, want %v", rec.CompletedAt, want)
	}
	if rec.AssessmentType != "quiz" {
		t.Errorf("AssessmentType = %q, want 'quiz'", rec.AssessmentType)
	}
}

// TestGetPerformance_BadDateRejected tests that a malformed payload is a
// rejection, not a transport failure.
func TestGetPerformance_BadDateRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"ownerId":"student-1","subject":"math","chapter":"algebra","score":85,"completedDate":"yesterday"}]`))
	}))

	_, err := client.GetPerformance(context.Background(), "student-1", 0)
	if !IsRejected(err) {
		t.Errorf("err = %v, want rejection", err)
	}
}

// TestSaveStudyGoal_SendsWireFormat tests the outbound goal payload.
func TestSaveStudyGoal_SendsWireFormat(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/goals" {
			t.Errorf("%s %s, want POST /api/v1/goals", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	goal := &record.StudyGoal{
		ID:        "g1",
		OwnerID:   "student-1",
		Text:      "Finish chapter 4",
		DueAt:     &due,
		CreatedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	if err := client.SaveStudyGoal(context.Background(), goal); err != nil {
		t.Fatalf("SaveStudyGoal() failed: %v", err)
	}

	if got["id"] != "g1" || got["text"] != "Finish chapter 4" {
		t.Errorf("payload = %v", got)
	}
	if got["isCompleted"] != false {
		t.Errorf("isCompleted = %v, want false", got["isCompleted"])
	}
	if got["dueDate"] != "2026-04-01T00:00:00Z" {
		t.Errorf("dueDate = %v", got["dueDate"])
	}
}

// TestUpdateStudyGoal_Patch tests the partial-update request.
func TestUpdateStudyGoal_Patch(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/v1/goals/g1" {
			t.Errorf("%s %s, want PATCH /api/v1/goals/g1", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad body: %v", err)
		}
	}))

	done := true
	err := client.UpdateStudyGoal(context.Background(), "g1", GoalPatch{Completed: &done})
	if err != nil {
		t.Fatalf("UpdateStudyGoal() failed: %v", err)
	}

	if got["isCompleted"] != true {
		t.Errorf("isCompleted = %v, want true", got["isCompleted"])
	}
	if _, present := got["text"]; present {
		t.Error("unset text field sent in patch")
	}
}

// TestSave_4xxIsRejection tests that a client error status maps to
// RejectedError with the response text.
func TestSave_4xxIsRejection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "score out of range", http.StatusUnprocessableEntity)
	}))

	err := client.SavePerformance(context.Background(), &record.PerformanceRecord{
		OwnerID: "student-1", Subject: "math", Chapter: "algebra", Score: 85,
		CompletedAt: time.Now(),
	})
	if !IsRejected(err) {
		t.Fatalf("err = %v, want rejection", err)
	}
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatal("could not unwrap RejectedError")
	}
	if rejected.Status != http.StatusUnprocessableEntity {
		t.Errorf("Status = %d, want 422", rejected.Status)
	}
}

// TestSave_5xxIsTransport tests that a server error status maps to
// TransportError, since the write may still have landed.
func TestSave_5xxIsTransport(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	err := client.SavePerformance(context.Background(), &record.PerformanceRecord{
		OwnerID: "student-1", Subject: "math", Chapter: "algebra", Score: 85,
		CompletedAt: time.Now(),
	})
	if !IsTransport(err) {
		t.Errorf("err = %v, want transport failure", err)
	}
}

// TestGet_NetworkErrorIsTransport tests an unreachable server.
func TestGet_NetworkErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := NewClient(ClientConfig{BaseURL: srv.URL})
	srv.Close()

	_, err := client.GetStudyGoals(context.Background(), "student-1")
	if !IsTransport(err) {
		t.Errorf("err = %v, want transport failure", err)
	}
}
