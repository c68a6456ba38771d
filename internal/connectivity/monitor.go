// Package connectivity observes the device's online/offline state.
//
// The monitor probes a reachability target on an interval and fires
// callbacks on transitions. On transition to online it is expected to
// start the sync engine's periodic timer; on transition to offline it
// stops the timer. A sync already running when offline is detected is
// allowed to finish. Missed windows while offline are not replayed; the
// next reconciliation is a full pass and catches up on its own.
package connectivity

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// DefaultProbeInterval is how often the monitor re-checks reachability.
const DefaultProbeInterval = 15 * time.Second

// Prober checks whether the cloud store is reachable right now.
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProber probes reachability with a HEAD request against a health URL.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context) error {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Monitor tracks online/offline state and notifies on transitions.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *log.Logger

	mu        sync.RWMutex
	online    bool
	onOnline  []func()
	onOffline []func()

	stop chan struct{}
	wg   sync.WaitGroup
}

// Config configures a Monitor.
type Config struct {
	// Interval between probes. Zero means DefaultProbeInterval.
	Interval time.Duration

	// Logger for transition events. Nil means a stderr default.
	Logger *log.Logger
}

// New creates a monitor over the given prober. The monitor starts in the
// offline state until the first successful probe.
func New(prober Prober, cfg Config) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger,
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OnOnline registers a callback fired on each offline-to-online
// transition. Register before Start.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// OnOffline registers a callback fired on each online-to-offline
// transition. Register before Start.
func (m *Monitor) OnOffline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOffline = append(m.onOffline, fn)
}

// Start probes immediately, then on the configured interval, until Stop
// is called or ctx is cancelled. Calling Start on a running monitor is a
// no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.check(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

// Stop halts probing. The state and callbacks are left as they are.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stop == nil {
		m.mu.Unlock()
		return
	}
	close(m.stop)
	m.stop = nil
	m.mu.Unlock()

	m.wg.Wait()
}

// check runs one probe and fires transition callbacks when state changed.
func (m *Monitor) check(ctx context.Context) {
	err := m.prober.Probe(ctx)
	nowOnline := err == nil

	m.mu.Lock()
	changed := nowOnline != m.online
	m.online = nowOnline
	var callbacks []func()
	if changed {
		if nowOnline {
			callbacks = append(callbacks, m.onOnline...)
		} else {
			callbacks = append(callbacks, m.onOffline...)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	if nowOnline {
		m.logger.Printf("Connectivity restored")
	} else {
		m.logger.Printf("Connectivity lost: %v", err)
	}
	for _, fn := range callbacks {
		fn()
	}
}
