package sync

import (
	"errors"
	"time"
)

// Status is a read-only snapshot of the engine's state for observers.
// It is replaced atomically at the start and end of every sync attempt, so
// readers never see a half-updated intermediate.
type Status struct {
	// LastSyncAt is when the last sync attempt finished.
	LastSyncAt time.Time `json:"last_sync_at"`

	// Syncing is true while a sync is executing.
	Syncing bool `json:"syncing"`

	// LastError is the last attempt's error, empty on success.
	LastError string `json:"last_error,omitempty"`

	// PendingUploads counts records that failed to upload in the last
	// attempt and remain pending for the next pass.
	PendingUploads int `json:"pending_uploads"`

	// PendingDownloads counts records that failed to download in the last
	// attempt and remain pending for the next pass.
	PendingDownloads int `json:"pending_downloads"`
}

// CollectionReport holds one collection's reconciliation counts.
type CollectionReport struct {
	Collection      string `json:"collection"`
	Uploaded        int    `json:"uploaded"`
	Downloaded      int    `json:"downloaded"`
	Updated         int    `json:"updated"`
	UploadFailures  int    `json:"upload_failures"`
	DownloadFailure int    `json:"download_failures"`

	// Err is the collection-level failure, if the pass could not run or
	// was cut short by a transport failure. Record-level failures are
	// counted, not stored here.
	Err error `json:"-"`
}

// Failed returns the total record failures in this collection's pass.
func (r CollectionReport) Failed() int {
	return r.UploadFailures + r.DownloadFailure
}

// Report summarizes one full sync attempt across all collections.
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	Performance  CollectionReport `json:"performance"`
	Goals        CollectionReport `json:"goals"`
	Achievements CollectionReport `json:"achievements"`
	Questions    CollectionReport `json:"questions"`
}

// Collections returns the per-collection reports in reconciliation order.
func (r *Report) Collections() []CollectionReport {
	return []CollectionReport{r.Performance, r.Goals, r.Achievements, r.Questions}
}

// Uploaded returns the total records uploaded across collections.
func (r *Report) Uploaded() int {
	n := 0
	for _, c := range r.Collections() {
		n += c.Uploaded
	}
	return n
}

// Downloaded returns the total records downloaded across collections.
func (r *Report) Downloaded() int {
	n := 0
	for _, c := range r.Collections() {
		n += c.Downloaded
	}
	return n
}

// Updated returns the total server-wins updates applied locally.
func (r *Report) Updated() int {
	n := 0
	for _, c := range r.Collections() {
		n += c.Updated
	}
	return n
}

// Err joins the collection-level errors, nil when every pass ran clean.
func (r *Report) Err() error {
	var errs []error
	for _, c := range r.Collections() {
		if c.Err != nil {
			errs = append(errs, c.Err)
		}
	}
	return errors.Join(errs...)
}

// CollectionStats holds local/remote record counts for one collection.
type CollectionStats struct {
	Collection string `json:"collection"`
	Local      int    `json:"local"`
	Remote     int    `json:"remote"`
}

// Stats reports per-collection local and remote counts for one owner.
type Stats struct {
	OwnerID     string            `json:"owner_id"`
	Collections []CollectionStats `json:"collections"`
}
