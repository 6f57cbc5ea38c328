package gpio

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultScanRate is the minimum interval between two firings of one
// watcher unless WithScanRate says otherwise.
const DefaultScanRate = 100 * time.Millisecond

// StateCallback receives a pin level.
type StateCallback func(state bool)

// WatchOption customises a watcher.
type WatchOption func(*watchConfig)

type watchConfig struct {
	scanRate time.Duration
}

// WithScanRate sets the minimum interval between firings. Zero disables
// rate limiting.
func WithScanRate(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d >= 0 {
			c.scanRate = d
		}
	}
}

// Watcher is a registered edge callback. The first matching edge always
// fires; later ones are suppressed until the scan rate has elapsed since
// the previous firing.
type Watcher struct {
	edge     Edge
	scanRate time.Duration
	fn       func(pin int, state bool)
	now      func() time.Time

	mu    sync.Mutex
	last  time.Time
	fired bool

	active atomic.Bool
	detach func(*Watcher)
}

func newWatcher(edge Edge, fn func(pin int, state bool), now func() time.Time, opts []WatchOption) *Watcher {
	cfg := watchConfig{scanRate: DefaultScanRate}
	for _, opt := range opts {
		opt(&cfg)
	}

	w := &Watcher{
		edge:     edge,
		scanRate: cfg.scanRate,
		fn:       fn,
		now:      now,
	}
	w.active.Store(true)
	return w
}

// Edge returns the edge filter.
func (w *Watcher) Edge() Edge {
	return w.edge
}

// ScanRate returns the minimum interval between firings.
func (w *Watcher) ScanRate() time.Duration {
	return w.scanRate
}

// Active reports whether the watcher can still fire.
func (w *Watcher) Active() bool {
	return w.active.Load()
}

// Stop removes the watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	if w.active.Swap(false) && w.detach != nil {
		w.detach(w)
	}
}

// fire runs the callback if edge passes the filter and the scan rate
// allows it. It reports whether the callback ran.
func (w *Watcher) fire(pin int, edge Edge, state bool) bool {
	if !w.active.Load() || !w.edge.matches(edge) {
		return false
	}

	w.mu.Lock()
	now := w.now()
	if w.fired && now.Sub(w.last) < w.scanRate {
		w.mu.Unlock()
		return false
	}
	w.fired = true
	w.last = now
	w.mu.Unlock()

	w.fn(pin, state)
	return true
}
