// Package sync implements bidirectional reconciliation between the
// per-device store and the cloud store for one owner.
//
// The engine reconciles four collections independently: performance
// records, study goals, achievements, and open questions. Each collection
// pass takes a single fetch snapshot of both sides, computes the records
// missing on either side by sync identity, uploads local-only records,
// downloads remote-only records, and (for study goals only) applies the
// server-authoritative completion flag locally. A remote change arriving
// mid-pass is not observed until the next pass; convergence is guaranteed
// across repeated passes, not within one.
//
// The engine is resilient at the record level: one record failing to
// transfer is counted and logged, and the batch continues. A transport
// failure stops the remainder of that collection's batch (those records
// were never attempted) but the other collections still run.
//
// At most one sync executes per engine instance. A request arriving while
// one is in flight is rejected with ErrSyncInProgress, never queued, and
// the caller relies on the next tick or a later manual call. Once started a
// sync runs to completion; there is no mid-flight cancellation.
//
// Records are never deleted by reconciliation. The only destructive
// operation is PullFromCloud, which treats the cloud store as the sole
// source of truth and replaces the owner's local collections wholesale. It
// must only be invoked explicitly.
package sync
