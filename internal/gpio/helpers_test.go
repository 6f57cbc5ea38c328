package gpio

import (
	"context"
	"sync"
	"testing"
	"time"
)

// ============================================================================
// Fake hardware
// ============================================================================

// fakeBackend hands out fakeHandles. When gate is set, binding blocks until
// the gate is closed.
type fakeBackend struct {
	mu      sync.Mutex
	handles map[int]*fakeHandle
	levels  map[int]bool
	gate    chan struct{}
	err     error
	bound   []int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		handles: make(map[int]*fakeHandle),
		levels:  make(map[int]bool),
	}
}

func (b *fakeBackend) BindInput(ctx context.Context, physical int) (Handle, error) {
	return b.bind(ctx, physical)
}

func (b *fakeBackend) BindOutput(ctx context.Context, physical int) (Handle, error) {
	return b.bind(ctx, physical)
}

func (b *fakeBackend) bind(ctx context.Context, physical int) (Handle, error) {
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.bound = append(b.bound, physical)
	if b.err != nil {
		return nil, b.err
	}

	h := &fakeHandle{level: b.levels[physical]}
	b.handles[physical] = h
	return h, nil
}

func (b *fakeBackend) handle(physical int) *fakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handles[physical]
}

func (b *fakeBackend) boundPins() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.bound...)
}

type fakeHandle struct {
	mu        sync.Mutex
	level     bool
	watchFn   func(bool)
	resistor  Resistor
	writes    []bool
	closed    bool
	unwatched int
}

func (h *fakeHandle) State() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *fakeHandle) Watch(_ Edge, fn func(level bool), _ time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watchFn = fn
	return nil
}

func (h *fakeHandle) Unwatch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watchFn = nil
	h.unwatched++
}

func (h *fakeHandle) Write(level bool) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
	h.writes = append(h.writes, level)
	return level, nil
}

func (h *fakeHandle) SetResistor(r Resistor) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resistor = r
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// emit simulates a hardware interrupt.
func (h *fakeHandle) emit(level bool) {
	h.mu.Lock()
	h.level = level
	fn := h.watchFn
	h.mu.Unlock()

	if fn != nil {
		fn(level)
	}
}

func (h *fakeHandle) isWatched() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.watchFn != nil
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) writeLog() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bool(nil), h.writes...)
}

func (h *fakeHandle) pull() Resistor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resistor
}

// ============================================================================
// Observer
// ============================================================================

// recordingObserver captures announcements and the inbound handler.
type recordingObserver struct {
	announcements chan Announcement

	mu      sync.Mutex
	handler ReportHandler
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{announcements: make(chan Announcement, 128)}
}

func (o *recordingObserver) pack() Observers {
	return Observers{
		Send: func(_ context.Context, a Announcement) error {
			o.announcements <- a
			return nil
		},
		Receive: func(h ReportHandler) {
			o.mu.Lock()
			o.handler = h
			o.mu.Unlock()
		},
	}
}

// report delivers r through the runtime's receive adapter.
func (o *recordingObserver) report(t *testing.T, r Report) (Edge, error) {
	t.Helper()

	o.mu.Lock()
	h := o.handler
	o.mu.Unlock()

	if h == nil {
		t.Fatal("observer has no receive handler")
	}
	return h(context.Background(), r)
}

// waitFor reads announcements until want arrives.
func (o *recordingObserver) waitFor(t *testing.T, want Announcement) {
	t.Helper()

	timeout := time.After(time.Second)
	for {
		select {
		case got := <-o.announcements:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("announcement %+v not received", want)
		}
	}
}

// collectUntil returns every announcement received before marker.
func (o *recordingObserver) collectUntil(t *testing.T, marker Announcement) []Announcement {
	t.Helper()

	var seen []Announcement
	timeout := time.After(time.Second)
	for {
		select {
		case got := <-o.announcements:
			if got == marker {
				return seen
			}
			seen = append(seen, got)
		case <-timeout:
			t.Fatalf("marker %+v not received", marker)
			return nil
		}
	}
}

// ============================================================================
// Clock and helpers
// ============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRuntime(t *testing.T, opts Options) *Runtime {
	t.Helper()
	rt := NewRuntime(opts)
	t.Cleanup(func() { rt.Close() })
	return rt
}

func ready(t *testing.T, p Pin) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Ready(ctx); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
