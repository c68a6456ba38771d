package sync

import (
	"context"
	"errors"
	"time"
)

// StartAutoSync begins periodic reconciliation at the given interval
// (DefaultInterval when zero or negative). Calling it while auto-sync is
// already running is a no-op, so the connectivity monitor can invoke it on
// every online transition.
//
// A tick that lands while a sync is still executing is rejected by the
// single-flight guard and simply skipped; the following tick retries.
func (e *Engine) StartAutoSync(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	e.autoMu.Lock()
	defer e.autoMu.Unlock()
	if e.stopAuto != nil {
		return
	}

	stop := make(chan struct{})
	e.stopAuto = stop

	e.autoWG.Add(1)
	go func() {
		defer e.autoWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := e.SyncToCloud(context.Background(), ""); err != nil {
					if errors.Is(err, ErrSyncInProgress) {
						continue
					}
					e.logger.Printf("Scheduled sync failed: %v", err)
				}
			}
		}
	}()

	e.logger.Printf("Auto-sync started (interval %v)", interval)
}

// StopAutoSync stops periodic reconciliation. A sync already in flight is
// allowed to finish; only future ticks are cancelled. Safe to call when
// auto-sync is not running.
func (e *Engine) StopAutoSync() {
	e.autoMu.Lock()
	defer e.autoMu.Unlock()
	if e.stopAuto == nil {
		return
	}

	close(e.stopAuto)
	e.stopAuto = nil
	e.autoWG.Wait()

	e.logger.Printf("Auto-sync stopped")
}

// AutoSyncRunning reports whether the periodic timer is active.
func (e *Engine) AutoSyncRunning() bool {
	e.autoMu.Lock()
	defer e.autoMu.Unlock()
	return e.stopAuto != nil
}
