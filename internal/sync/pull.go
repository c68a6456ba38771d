package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/lernio/studysync/internal/record"
)

// PullFromCloud replaces the owner's local collections with the cloud
// store's contents. Local-only records that were never synced are lost;
// this is the documented restore behavior, so callers must invoke it only
// on an explicit user request, never from the scheduler.
//
// All four remote collections are fetched before anything is cleared
// locally, so a transport failure leaves the local data intact.
func (e *Engine) PullFromCloud(ctx context.Context, ownerID string) error {
	owner, err := e.resolveOwner(ownerID)
	if err != nil {
		return err
	}
	if e.online != nil && !e.online() {
		return ErrOffline
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer e.syncing.Store(false)

	e.beginAttempt()
	e.logger.Printf("Starting full pull for owner %s", owner)
	start := time.Now()

	report := &Report{StartedAt: start}
	err = e.pull(ctx, owner, report)
	report.Duration = time.Since(start)
	e.finishAttempt(report, err)

	if err != nil {
		e.logger.Printf("Full pull failed: %v", err)
	} else {
		e.logger.Printf("Full pull complete in %v: restored %d records",
			report.Duration.Round(time.Millisecond), report.Downloaded())
	}

	if e.onSyncDone != nil {
		e.onSyncDone(report, err)
	}
	return err
}

func (e *Engine) pull(ctx context.Context, owner string, report *Report) error {
	// Fetch everything first. Clearing only starts once the remote data
	// is in hand.
	perf, err := e.remote.GetPerformance(ctx, owner, 0)
	if err != nil {
		return fmt.Errorf("pull: performance fetch: %w", err)
	}
	goals, err := e.remote.GetStudyGoals(ctx, owner)
	if err != nil {
		return fmt.Errorf("pull: study goals fetch: %w", err)
	}
	achievements, err := e.remote.GetAchievements(ctx, owner)
	if err != nil {
		return fmt.Errorf("pull: achievements fetch: %w", err)
	}
	questions, err := e.remote.GetQuestions(ctx, owner, 0)
	if err != nil {
		return fmt.Errorf("pull: questions fetch: %w", err)
	}

	report.Performance = CollectionReport{Collection: record.CollectionPerformance}
	if err := e.local.ClearPerformance(ctx, owner); err != nil {
		return fmt.Errorf("pull: clear performance: %w", err)
	}
	for _, r := range perf {
		r.OwnerID = owner
		if err := e.local.InsertPerformance(ctx, r); err != nil {
			report.Performance.DownloadFailure++
			e.recordFailure(report.Performance.Collection, r.SyncKey(), err)
			continue
		}
		report.Performance.Downloaded++
	}

	report.Goals = CollectionReport{Collection: record.CollectionStudyGoals}
	if err := e.local.ClearGoals(ctx, owner); err != nil {
		return fmt.Errorf("pull: clear study goals: %w", err)
	}
	for _, g := range goals {
		g.OwnerID = owner
		if err := e.local.PutGoal(ctx, g); err != nil {
			report.Goals.DownloadFailure++
			e.recordFailure(report.Goals.Collection, g.ID, err)
			continue
		}
		report.Goals.Downloaded++
	}

	report.Achievements = CollectionReport{Collection: record.CollectionAchievements}
	if err := e.local.ClearAchievements(ctx, owner); err != nil {
		return fmt.Errorf("pull: clear achievements: %w", err)
	}
	for _, a := range achievements {
		a.OwnerID = owner
		if err := e.local.InsertAchievement(ctx, a); err != nil {
			report.Achievements.DownloadFailure++
			e.recordFailure(report.Achievements.Collection, a.SyncKey(), err)
			continue
		}
		report.Achievements.Downloaded++
	}

	report.Questions = CollectionReport{Collection: record.CollectionQuestions}
	if err := e.local.ClearQuestions(ctx, owner); err != nil {
		return fmt.Errorf("pull: clear questions: %w", err)
	}
	for _, q := range questions {
		q.OwnerID = owner
		if err := e.local.PutQuestion(ctx, q); err != nil {
			report.Questions.DownloadFailure++
			e.recordFailure(report.Questions.Collection, q.ID, err)
			continue
		}
		report.Questions.Downloaded++
	}

	return nil
}
