package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncInProgress is returned when a sync request arrives while
	// another sync is executing on the same engine. Requests are rejected,
	// not queued; the next scheduled tick retries naturally.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrOffline is returned when a sync is attempted while the device is
	// offline. The remote store is not contacted.
	ErrOffline = errors.New("device is offline")

	// ErrNoOwner is returned when no owner identity is available for the
	// operation.
	ErrNoOwner = errors.New("no owner identity available")
)

// RecordError wraps the failure of one record within a batch. Record
// errors never abort a collection pass; they are tallied and logged.
type RecordError struct {
	Collection string
	Key        string
	Err        error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s in %s: %v", e.Key, e.Collection, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
