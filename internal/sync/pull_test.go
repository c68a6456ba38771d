package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lernio/studysync/internal/record"
	"github.com/lernio/studysync/internal/store"
)

// TestPull_ReplacesLocalData tests that a full pull makes the local store
// mirror the cloud, removing never-synced local records.
func TestPull_ReplacesLocalData(t *testing.T) {
	engine, local, rs := newTestEngine(t)
	ctx := context.Background()

	// A local-only goal that was never synced.
	if err := local.PutGoal(ctx, goalWith("local-only", false)); err != nil {
		t.Fatalf("PutGoal() failed: %v", err)
	}
	rs.goals = []*record.StudyGoal{goalWith("remote-1", true)}
	rs.performance = []*record.PerformanceRecord{perfAt(14, 85)}

	if err := engine.PullFromCloud(ctx, ""); err != nil {
		t.Fatalf("PullFromCloud() failed: %v", err)
	}

	if _, err := local.GetGoal(ctx, "local-only"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("never-synced goal still present (err = %v)", err)
	}

	got, err := local.GetGoal(ctx, "remote-1")
	if err != nil {
		t.Fatalf("restored goal missing: %v", err)
	}
	if !got.Completed {
		t.Error("restored goal lost its completion flag")
	}

	count, err := local.CountPerformance(ctx, testOwner)
	if err != nil {
		t.Fatalf("CountPerformance() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("performance count = %d, want 1", count)
	}
}

// TestPull_FetchFailureLeavesLocalIntact tests that local data survives a
// pull whose remote fetch fails. Nothing is cleared before all fetches
// succeed.
func TestPull_FetchFailureLeavesLocalIntact(t *testing.T) {
	engine, local, rs := newTestEngine(t)
	ctx := context.Background()

	if err := local.PutGoal(ctx, goalWith("keep-me", false)); err != nil {
		t.Fatalf("PutGoal() failed: %v", err)
	}
	rs.failFetch = true

	if err := engine.PullFromCloud(ctx, ""); err == nil {
		t.Fatal("expected error from unreachable cloud store")
	}

	if _, err := local.GetGoal(ctx, "keep-me"); err != nil {
		t.Errorf("local goal lost after failed pull: %v", err)
	}
}

// TestPull_SharesSingleFlightGuard tests that a pull is rejected while a
// sync holds the guard.
func TestPull_SharesSingleFlightGuard(t *testing.T) {
	engine, local, rs := newTestEngine(t)
	ctx := context.Background()

	if err := local.InsertPerformance(ctx, perfAt(14, 85)); err != nil {
		t.Fatalf("InsertPerformance() failed: %v", err)
	}
	rs.gate = make(chan struct{})

	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		_, _ = engine.SyncToCloud(ctx, "")
	}()

	deadline := time.After(2 * time.Second)
	for !engine.Status().Syncing {
		select {
		case <-deadline:
			t.Fatal("sync never started")
		case <-time.After(time.Millisecond):
		}
	}

	if err := engine.PullFromCloud(ctx, ""); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("pull during sync err = %v, want ErrSyncInProgress", err)
	}

	close(rs.gate)
	<-syncDone
}
