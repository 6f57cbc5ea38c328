package sim

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

// Handle is a simulated bound pin.
type Handle struct {
	backend  *Backend
	physical int
	mode     gpio.Mode

	mu          sync.Mutex
	level       bool
	resistor    gpio.Resistor
	closed      bool
	watchEdge   gpio.Edge
	watchFn     func(bool)
	minInterval time.Duration
	lastFired   time.Time
	writes      int

	// calls tracks watch callbacks in flight.
	calls sync.WaitGroup
}

// State returns the simulated level.
func (h *Handle) State() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

// Watch registers fn for edges matching edge.
func (h *Handle) Watch(edge gpio.Edge, fn func(level bool), minInterval time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.watchEdge = edge
	h.watchFn = fn
	h.minInterval = minInterval
	h.lastFired = time.Time{}
	return nil
}

// Unwatch stops edge delivery and waits for a callback in flight to
// return, as a hardware edge loop does.
func (h *Handle) Unwatch() {
	h.mu.Lock()
	h.watchFn = nil
	h.mu.Unlock()

	h.calls.Wait()
}

// Watched reports whether an edge watch is armed.
func (h *Handle) Watched() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.watchFn != nil
}

// Write sets the level and returns it.
func (h *Handle) Write(level bool) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return h.level, ErrClosed
	}
	h.level = level
	h.writes++
	return h.level, nil
}

// Writes returns how many writes the handle accepted.
func (h *Handle) Writes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes
}

// SetResistor records the pull configuration.
func (h *Handle) SetResistor(r gpio.Resistor) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.resistor = r
	return nil
}

// Resistor returns the recorded pull configuration.
func (h *Handle) Resistor() gpio.Resistor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resistor
}

// Close releases the pin back to the backend.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.watchFn = nil
	h.mu.Unlock()

	h.calls.Wait()
	h.backend.release(h)
	return nil
}

// drive applies an external level change and fires the watch if the edge
// matches and the minimum interval has passed.
func (h *Handle) drive(level bool) {
	h.mu.Lock()
	if h.closed || h.level == level {
		h.mu.Unlock()
		return
	}
	h.level = level

	fn := h.watchFn
	edge := gpio.Falling
	if level {
		edge = gpio.Rising
	}
	match := h.watchEdge == gpio.Both || h.watchEdge == edge

	now := time.Now()
	if fn == nil || !match || (!h.lastFired.IsZero() && now.Sub(h.lastFired) < h.minInterval) {
		h.mu.Unlock()
		return
	}
	h.lastFired = now
	h.calls.Add(1)
	h.mu.Unlock()

	defer h.calls.Done()
	fn(level)
}
