package gpio

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Pin is the behaviour shared by input and output pins.
type Pin interface {
	Number() int
	Mode() Mode
	Read(cb StateCallback) bool
	IsOn() bool
	IsOff() bool
	IsHardware() bool
	Ready(ctx context.Context) error
	Close() error

	base() *basePin
}

// basePin holds the state machine shared by InputPin and OutputPin.
type basePin struct {
	rt       *Runtime
	number   int
	physical int
	mode     Mode

	// intakeMu serialises hardware and remote reports so confirmed edges
	// follow arrival order.
	intakeMu sync.Mutex

	mu         sync.Mutex
	state      bool
	resistor   Resistor
	handle     Handle
	isHardware bool
	closed     bool
	hwWatching bool
	hwBusy     int
	deferred   []func()
	draining   bool
	watchers   []*Watcher
	timers     map[*time.Timer]struct{}

	bindMu sync.Mutex
	bound  bool
	queue  []func(Handle)
	ready  chan struct{}
}

func newBasePin(rt *Runtime, number, physical int, mode Mode) *basePin {
	return &basePin{
		rt:       rt,
		number:   number,
		physical: physical,
		mode:     mode,
		resistor: NoPull,
		timers:   make(map[*time.Timer]struct{}),
		ready:    make(chan struct{}),
	}
}

func (p *basePin) base() *basePin { return p }

// Number returns the pin number in the runtime's scheme.
func (p *basePin) Number() int { return p.number }

// Mode returns the pin direction.
func (p *basePin) Mode() Mode { return p.mode }

// Read returns the cached level without touching hardware. cb, if not nil,
// receives the same value before Read returns.
func (p *basePin) Read(cb StateCallback) bool {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	if cb != nil {
		cb(state)
	}
	return state
}

// IsOn reports whether the cached level is High.
func (p *basePin) IsOn() bool { return p.Read(nil) }

// IsOff reports whether the cached level is Low.
func (p *basePin) IsOff() bool { return !p.Read(nil) }

// IsHardware reports whether the pin is bound to a hardware handle.
func (p *basePin) IsHardware() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isHardware
}

// Ready blocks until the hardware binding has settled, bound or not.
func (p *basePin) Ready(ctx context.Context) error {
	select {
	case <-p.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *basePin) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *basePin) info() PinInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PinInfo{
		Number:     p.number,
		Mode:       p.mode,
		State:      p.state,
		Resistor:   p.resistor,
		IsHardware: p.isHardware,
	}
}

// inform re-announces the cached state to the observer.
func (p *basePin) inform() {
	p.mu.Lock()
	state, closed := p.state, p.closed
	p.mu.Unlock()

	if closed {
		return
	}
	p.rt.announce(Announcement{Pin: p.number, State: state, Mode: p.mode})
}

// bind resolves the hardware handle. Emulated runtimes settle immediately;
// otherwise the backend is called on a separate goroutine. onBound runs
// once with a non-nil handle before any queued work.
func (p *basePin) bind(onBound func(Handle)) {
	if p.rt.emulated {
		p.settle(nil, onBound)
		return
	}

	go func() {
		var (
			h   Handle
			err error
		)
		if p.mode == Input {
			h, err = p.rt.backend.BindInput(p.rt.ctx, p.physical)
		} else {
			h, err = p.rt.backend.BindOutput(p.rt.ctx, p.physical)
		}
		if err != nil {
			p.rt.logger.Warn("hardware bind failed, pin runs unbound",
				"pin", p.number,
				"physical", p.physical,
				"mode", p.mode.String(),
				"error", err,
			)
			h = nil
		}
		p.settle(h, onBound)
	}()
}

// settle stores the handle, adopts the hardware level and flushes the
// work queued by whenBound in call order.
func (p *basePin) settle(h Handle, onBound func(Handle)) {
	if h != nil {
		level := h.State()
		if p.mode == Input && p.rt.inverted {
			level = !level
		}

		p.mu.Lock()
		p.handle = h
		p.isHardware = true
		changed := !p.closed && p.state != level
		p.state = level
		closed := p.closed
		p.mu.Unlock()

		p.rt.logger.Debug("pin bound", "pin", p.number, "physical", p.physical, "level", level)

		if changed {
			p.rt.announce(Announcement{Pin: p.number, State: level, Mode: p.mode})
		}
		if onBound != nil && !closed {
			onBound(h)
		}
	}

	for {
		p.bindMu.Lock()
		if len(p.queue) == 0 {
			p.bound = true
			close(p.ready)
			p.bindMu.Unlock()
			return
		}
		queued := p.queue
		p.queue = nil
		p.bindMu.Unlock()

		for _, fn := range queued {
			fn(h)
		}
	}
}

// whenBound runs fn with the handle (nil when unbound) once binding has
// settled. Calls made before that are queued and run in call order.
func (p *basePin) whenBound(fn func(Handle)) {
	p.bindMu.Lock()
	if !p.bound {
		p.queue = append(p.queue, fn)
		p.bindMu.Unlock()
		return
	}
	p.bindMu.Unlock()

	p.mu.Lock()
	h := p.handle
	p.mu.Unlock()
	fn(h)
}

// afterFunc schedules fn after d. The timer is stopped if the pin closes
// first, and fn never runs on a closed pin.
func (p *basePin) afterFunc(d time.Duration, fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPinClosed
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		p.mu.Lock()
		delete(p.timers, t)
		alive := !p.closed
		p.mu.Unlock()

		if alive {
			fn()
		}
	})
	p.timers[t] = struct{}{}
	return nil
}

// confirm publishes an accepted report on the state-confirmed topic.
func (p *basePin) confirm(ctx context.Context, edge Edge, state bool, source Source) {
	if p.isClosed() {
		return
	}

	topic := Topic{Pin: p.number, Kind: StateConfirmed}
	_, err := p.rt.bus.Invoke(ctx, topic, Message{
		Kind:   StateConfirmed,
		Edge:   edge,
		State:  state,
		Source: source,
	})
	if err != nil {
		p.rt.logger.Warn("state confirmation failed", "topic", topic.String(), "error", err)
	}
}

// handleConfirmed is the state-confirmed responder. Real edges reach the
// transition feed and, for inputs, the pin and any-pin watchers.
func (p *basePin) handleConfirmed(_ context.Context, msg Message) (Edge, error) {
	if msg.Edge == Unknown {
		return Unknown, nil
	}

	p.rt.publish(Transition{
		Pin:    p.number,
		Mode:   p.mode,
		State:  msg.State,
		Edge:   msg.Edge,
		Source: msg.Source,
		At:     p.rt.now(),
	})

	if p.mode == Input {
		p.mu.Lock()
		watchers := slices.Clone(p.watchers)
		p.mu.Unlock()

		for _, w := range watchers {
			w.fire(p.number, msg.Edge, msg.State)
		}
		p.rt.fireInputWatchers(p.number, msg.Edge, msg.State)
	}

	return msg.Edge, nil
}

func (p *basePin) removeWatcher(w *Watcher) {
	p.mu.Lock()
	p.watchers = slices.DeleteFunc(p.watchers, func(x *Watcher) bool { return x == w })
	p.mu.Unlock()
}

// shutdown runs the close sequence shared by both pin kinds. It reports
// false if the pin was already closed.
func (p *basePin) shutdown(owner Pin, release func(Handle)) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.closed = true
	p.resistor = NoPull
	timers := p.timers
	p.timers = nil
	watchers := p.watchers
	p.watchers = nil
	p.hwWatching = false
	p.mu.Unlock()

	for t := range timers {
		t.Stop()
	}
	for _, w := range watchers {
		w.active.Store(false)
	}

	p.rt.forget(owner)
	p.rt.announce(Announcement{Pin: p.number, State: false, Mode: p.mode})

	p.whenBound(func(h Handle) {
		if h == nil {
			return
		}
		p.offCallback(func() {
			if release != nil {
				release(h)
			}
			if err := h.Close(); err != nil {
				p.rt.logger.Warn("releasing hardware pin", "pin", p.number, "error", err)
			}
		})
	})
	return true
}

// offCallback runs fn now, or queues it until no hardware report is in
// flight. A handle may wait for that report before it lets go, and the
// report may be waiting on the caller. Queued calls run in order on their
// own goroutine.
func (p *basePin) offCallback(fn func()) {
	p.mu.Lock()
	if p.hwBusy > 0 || p.draining {
		p.deferred = append(p.deferred, fn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	fn()
}

// beginReport marks a hardware report in flight.
func (p *basePin) beginReport() {
	p.mu.Lock()
	p.hwBusy++
	p.mu.Unlock()
}

// endReport clears the mark set by beginReport and starts draining calls
// queued by offCallback once the last report has returned.
func (p *basePin) endReport() {
	p.mu.Lock()
	p.hwBusy--
	start := p.hwBusy == 0 && !p.draining && len(p.deferred) > 0
	if start {
		p.draining = true
	}
	p.mu.Unlock()

	if start {
		go p.drainDeferred()
	}
}

func (p *basePin) drainDeferred() {
	for {
		p.mu.Lock()
		if len(p.deferred) == 0 {
			p.draining = false
			p.mu.Unlock()
			return
		}
		fn := p.deferred[0]
		p.deferred = p.deferred[1:]
		p.mu.Unlock()

		fn()
	}
}
