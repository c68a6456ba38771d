package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lernio/studysync/internal/record"
	"github.com/lernio/studysync/internal/remote"
	"github.com/lernio/studysync/internal/store"
)

// DefaultInterval is the periodic reconciliation cadence.
const DefaultInterval = 60 * time.Second

// defaultFetchLimit bounds most-recent-first remote fetches for the
// unbounded collections.
const defaultFetchLimit = 500

// Config configures an Engine.
type Config struct {
	// Owner is the default owner identity for syncs. A per-call owner
	// overrides it.
	Owner string

	// FetchLimit bounds remote fetches for performance records and
	// questions. Zero means the default.
	FetchLimit int

	// Online reports current connectivity. Nil means always online
	// (useful for tests and one-shot CLI runs that probe beforehand).
	Online func() bool

	// Logger for engine activity. Nil means a stderr default.
	Logger *log.Logger
}

// Engine reconciles the local and cloud stores for one owner. Construct
// one per device session; independent instances (e.g. in tests) do not
// share state.
type Engine struct {
	local  *store.Store
	remote remote.Store
	logger *log.Logger

	owner      string
	fetchLimit int
	online     func() bool

	// syncing is the single-flight guard for SyncToCloud and
	// PullFromCloud.
	syncing atomic.Bool

	statusMu sync.RWMutex
	status   Status

	autoMu   sync.Mutex
	stopAuto chan struct{}
	autoWG   sync.WaitGroup

	// onSyncStart and onSyncDone are invoked around every sync attempt,
	// for diagnostics broadcasting. Either may be nil.
	onSyncStart func()
	onSyncDone  func(*Report, error)
}

// New creates a sync engine over the given stores.
func New(local *store.Store, rs remote.Store, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	fetchLimit := cfg.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = defaultFetchLimit
	}
	return &Engine{
		local:      local,
		remote:     rs,
		logger:     logger,
		owner:      cfg.Owner,
		fetchLimit: fetchLimit,
		online:     cfg.Online,
	}
}

// OnSyncStart registers a callback invoked when a sync attempt begins.
// Must be set before the engine starts syncing.
func (e *Engine) OnSyncStart(fn func()) { e.onSyncStart = fn }

// OnSyncDone registers a callback invoked after every sync attempt.
// Must be set before the engine starts syncing.
func (e *Engine) OnSyncDone(fn func(*Report, error)) { e.onSyncDone = fn }

// Status returns the current status snapshot.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// resolveOwner picks the per-call owner or falls back to the configured one.
func (e *Engine) resolveOwner(ownerID string) (string, error) {
	if ownerID != "" {
		return ownerID, nil
	}
	if e.owner != "" {
		return e.owner, nil
	}
	return "", ErrNoOwner
}

// SyncToCloud runs one bidirectional reconciliation of all four
// collections for the owner. ownerID may be empty to use the configured
// owner.
//
// Returns ErrOffline without contacting the cloud store when the device is
// offline, and ErrSyncInProgress when another sync is executing. Once
// started, the sync runs to completion; collection failures are reported
// in the returned error but do not stop the other collections.
func (e *Engine) SyncToCloud(ctx context.Context, ownerID string) (*Report, error) {
	owner, err := e.resolveOwner(ownerID)
	if err != nil {
		return nil, err
	}
	if e.online != nil && !e.online() {
		return nil, ErrOffline
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer e.syncing.Store(false)

	e.beginAttempt()
	if e.onSyncStart != nil {
		e.onSyncStart()
	}
	e.logger.Printf("Starting sync for owner %s", owner)

	report := &Report{StartedAt: time.Now()}
	report.Performance = e.syncPerformance(ctx, owner)
	report.Goals = e.syncGoals(ctx, owner)
	report.Achievements = e.syncAchievements(ctx, owner)
	report.Questions = e.syncQuestions(ctx, owner)
	report.Duration = time.Since(report.StartedAt)

	err = report.Err()
	e.finishAttempt(report, err)

	failed := 0
	for _, c := range report.Collections() {
		failed += c.Failed()
	}
	e.logger.Printf("Sync complete in %v: uploaded=%d downloaded=%d updated=%d failed=%d",
		report.Duration.Round(time.Millisecond),
		report.Uploaded(), report.Downloaded(), report.Updated(), failed)

	if e.onSyncDone != nil {
		e.onSyncDone(report, err)
	}
	return report, err
}

// beginAttempt marks the snapshot as syncing with the error cleared.
func (e *Engine) beginAttempt() {
	e.statusMu.Lock()
	e.status.Syncing = true
	e.status.LastError = ""
	e.statusMu.Unlock()
}

// finishAttempt publishes the attempt's outcome in one replace.
func (e *Engine) finishAttempt(report *Report, err error) {
	uploads, downloads := 0, 0
	for _, c := range report.Collections() {
		uploads += c.UploadFailures
		downloads += c.DownloadFailure
	}

	e.statusMu.Lock()
	e.status = Status{
		LastSyncAt:       time.Now(),
		Syncing:          false,
		PendingUploads:   uploads,
		PendingDownloads: downloads,
	}
	if err != nil {
		e.status.LastError = err.Error()
	}
	e.statusMu.Unlock()
}

// recordFailure logs one record's failure; the batch continues.
func (e *Engine) recordFailure(collection, key string, err error) {
	e.logger.Printf("Warning: %v", &RecordError{Collection: collection, Key: key, Err: err})
}

// syncPerformance reconciles the performance collection. Identity is the
// (subject, chapter, score, completion day) composite.
func (e *Engine) syncPerformance(ctx context.Context, owner string) CollectionReport {
	rep := CollectionReport{Collection: record.CollectionPerformance}

	local, err := e.local.ListPerformance(ctx, owner)
	if err != nil {
		rep.Err = fmt.Errorf("performance: local fetch: %w", err)
		return rep
	}
	remoteRecs, err := e.remote.GetPerformance(ctx, owner, e.fetchLimit)
	if err != nil {
		rep.Err = fmt.Errorf("performance: remote fetch: %w", err)
		return rep
	}

	localKeys := make(map[string]bool, len(local))
	for _, r := range local {
		localKeys[r.SyncKey()] = true
	}
	remoteKeys := make(map[string]bool, len(remoteRecs))
	for _, r := range remoteRecs {
		remoteKeys[r.SyncKey()] = true
	}

	// Upload local-only records. The sent set guards against same-identity
	// duplicates within the local snapshot.
	sent := make(map[string]bool)
	for _, r := range local {
		key := r.SyncKey()
		if remoteKeys[key] || sent[key] {
			continue
		}
		if err := e.remote.SavePerformance(ctx, r); err != nil {
			if remote.IsTransport(err) {
				rep.Err = fmt.Errorf("performance: upload: %w", err)
				return rep
			}
			rep.UploadFailures++
			e.recordFailure(rep.Collection, key, err)
			continue
		}
		sent[key] = true
		rep.Uploaded++
	}

	// Download remote-only records.
	stored := make(map[string]bool)
	for _, r := range remoteRecs {
		key := r.SyncKey()
		if localKeys[key] || stored[key] {
			continue
		}
		r.OwnerID = owner
		if err := e.local.InsertPerformance(ctx, r); err != nil {
			rep.DownloadFailure++
			e.recordFailure(rep.Collection, key, err)
			continue
		}
		stored[key] = true
		rep.Downloaded++
	}

	return rep
}

// syncGoals reconciles study goals. Identity is the explicit id. Completion
// is server-authoritative: a differing remote flag is written back locally
// and never pushed the other way.
func (e *Engine) syncGoals(ctx context.Context, owner string) CollectionReport {
	rep := CollectionReport{Collection: record.CollectionStudyGoals}

	local, err := e.local.ListGoals(ctx, owner)
	if err != nil {
		rep.Err = fmt.Errorf("study goals: local fetch: %w", err)
		return rep
	}
	remoteGoals, err := e.remote.GetStudyGoals(ctx, owner)
	if err != nil {
		rep.Err = fmt.Errorf("study goals: remote fetch: %w", err)
		return rep
	}

	localByID := make(map[string]*record.StudyGoal, len(local))
	for _, g := range local {
		localByID[g.ID] = g
	}
	remoteByID := make(map[string]*record.StudyGoal, len(remoteGoals))
	for _, g := range remoteGoals {
		remoteByID[g.ID] = g
	}

	for _, g := range local {
		if _, ok := remoteByID[g.ID]; ok {
			continue
		}
		if err := e.remote.SaveStudyGoal(ctx, g); err != nil {
			if remote.IsTransport(err) {
				rep.Err = fmt.Errorf("study goals: upload: %w", err)
				return rep
			}
			rep.UploadFailures++
			e.recordFailure(rep.Collection, g.ID, err)
			continue
		}
		rep.Uploaded++
	}

	for _, g := range remoteGoals {
		if _, ok := localByID[g.ID]; ok {
			continue
		}
		g.OwnerID = owner
		if err := e.local.PutGoal(ctx, g); err != nil {
			rep.DownloadFailure++
			e.recordFailure(rep.Collection, g.ID, err)
			continue
		}
		rep.Downloaded++
	}

	// Server-wins completion for goals present on both sides.
	for id, rg := range remoteByID {
		lg, ok := localByID[id]
		if !ok || lg.Completed == rg.Completed {
			continue
		}
		if err := e.local.SetGoalCompleted(ctx, id, rg.Completed); err != nil {
			rep.DownloadFailure++
			e.recordFailure(rep.Collection, id, err)
			continue
		}
		rep.Updated++
	}

	return rep
}

// syncAchievements reconciles achievements. Identity is the (title,
// creation day) composite.
func (e *Engine) syncAchievements(ctx context.Context, owner string) CollectionReport {
	rep := CollectionReport{Collection: record.CollectionAchievements}

	local, err := e.local.ListAchievements(ctx, owner)
	if err != nil {
		rep.Err = fmt.Errorf("achievements: local fetch: %w", err)
		return rep
	}
	remoteRecs, err := e.remote.GetAchievements(ctx, owner)
	if err != nil {
		rep.Err = fmt.Errorf("achievements: remote fetch: %w", err)
		return rep
	}

	localKeys := make(map[string]bool, len(local))
	for _, a := range local {
		localKeys[a.SyncKey()] = true
	}
	remoteKeys := make(map[string]bool, len(remoteRecs))
	for _, a := range remoteRecs {
		remoteKeys[a.SyncKey()] = true
	}

	sent := make(map[string]bool)
	for _, a := range local {
		key := a.SyncKey()
		if remoteKeys[key] || sent[key] {
			continue
		}
		if err := e.remote.SaveAchievement(ctx, a); err != nil {
			if remote.IsTransport(err) {
				rep.Err = fmt.Errorf("achievements: upload: %w", err)
				return rep
			}
			rep.UploadFailures++
			e.recordFailure(rep.Collection, key, err)
			continue
		}
		sent[key] = true
		rep.Uploaded++
	}

	stored := make(map[string]bool)
	for _, a := range remoteRecs {
		key := a.SyncKey()
		if localKeys[key] || stored[key] {
			continue
		}
		a.OwnerID = owner
		if err := e.local.InsertAchievement(ctx, a); err != nil {
			rep.DownloadFailure++
			e.recordFailure(rep.Collection, key, err)
			continue
		}
		stored[key] = true
		rep.Downloaded++
	}

	return rep
}

// syncQuestions reconciles open questions. Identity is the explicit id.
func (e *Engine) syncQuestions(ctx context.Context, owner string) CollectionReport {
	rep := CollectionReport{Collection: record.CollectionQuestions}

	local, err := e.local.ListQuestions(ctx, owner)
	if err != nil {
		rep.Err = fmt.Errorf("questions: local fetch: %w", err)
		return rep
	}
	remoteQs, err := e.remote.GetQuestions(ctx, owner, e.fetchLimit)
	if err != nil {
		rep.Err = fmt.Errorf("questions: remote fetch: %w", err)
		return rep
	}

	localByID := make(map[string]bool, len(local))
	for _, q := range local {
		localByID[q.ID] = true
	}
	remoteByID := make(map[string]bool, len(remoteQs))
	for _, q := range remoteQs {
		remoteByID[q.ID] = true
	}

	for _, q := range local {
		if remoteByID[q.ID] {
			continue
		}
		if err := e.remote.SaveQuestion(ctx, q); err != nil {
			if remote.IsTransport(err) {
				rep.Err = fmt.Errorf("questions: upload: %w", err)
				return rep
			}
			rep.UploadFailures++
			e.recordFailure(rep.Collection, q.ID, err)
			continue
		}
		rep.Uploaded++
	}

	for _, q := range remoteQs {
		if localByID[q.ID] {
			continue
		}
		q.OwnerID = owner
		if err := e.local.PutQuestion(ctx, q); err != nil {
			rep.DownloadFailure++
			e.recordFailure(rep.Collection, q.ID, err)
			continue
		}
		rep.Downloaded++
	}

	return rep
}

// Stats counts the owner's records on both sides of every collection.
func (e *Engine) Stats(ctx context.Context, ownerID string) (*Stats, error) {
	owner, err := e.resolveOwner(ownerID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{OwnerID: owner}

	localPerf, err := e.local.CountPerformance(ctx, owner)
	if err != nil {
		return nil, err
	}
	remotePerf, err := e.remote.GetPerformance(ctx, owner, 0)
	if err != nil {
		return nil, err
	}
	stats.Collections = append(stats.Collections, CollectionStats{
		Collection: record.CollectionPerformance, Local: localPerf, Remote: len(remotePerf),
	})

	localGoals, err := e.local.CountGoals(ctx, owner)
	if err != nil {
		return nil, err
	}
	remoteGoals, err := e.remote.GetStudyGoals(ctx, owner)
	if err != nil {
		return nil, err
	}
	stats.Collections = append(stats.Collections, CollectionStats{
		Collection: record.CollectionStudyGoals, Local: localGoals, Remote: len(remoteGoals),
	})

	localAch, err := e.local.CountAchievements(ctx, owner)
	if err != nil {
		return nil, err
	}
	remoteAch, err := e.remote.GetAchievements(ctx, owner)
	if err != nil {
		return nil, err
	}
	stats.Collections = append(stats.Collections, CollectionStats{
		Collection: record.CollectionAchievements, Local: localAch, Remote: len(remoteAch),
	})

	localQs, err := e.local.CountQuestions(ctx, owner)
	if err != nil {
		return nil, err
	}
	remoteQs, err := e.remote.GetQuestions(ctx, owner, 0)
	if err != nil {
		return nil, err
	}
	stats.Collections = append(stats.Collections, CollectionStats{
		Collection: record.CollectionQuestions, Local: localQs, Remote: len(remoteQs),
	})

	return stats, nil
}
