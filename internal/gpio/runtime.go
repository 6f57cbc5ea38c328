package gpio

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gpio/internal/ackbus"
	"github.com/nerrad567/gray-logic-gpio/internal/pinscheme"
)

// MaxPhysicalPin is the highest header position on the 40-pin header.
const MaxPhysicalPin = 40

// DefaultOutboxSize is the number of announcements and transitions that
// may wait for delivery before new ones are dropped.
const DefaultOutboxSize = 256

// Logger interface for dependency injection.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Runtime.
type Options struct {
	// Inverted flips every level read from input hardware. Ignored when
	// the runtime is emulated.
	Inverted bool

	// Scheme is the numbering used for pin numbers passed to the runtime.
	Scheme Scheme

	// ForceEmulation keeps every pin unbound even when Backend is set.
	ForceEmulation bool

	// Backend binds pins to hardware. Nil means Unbound.
	Backend Backend

	// StaleTimeout bounds how long an observer report waits for its pin.
	// Default: ackbus.DefaultStaleTimeout.
	StaleTimeout time.Duration

	// OutboxSize bounds the delivery queue. Default: DefaultOutboxSize.
	OutboxSize int

	// Logger receives diagnostics. Optional.
	Logger Logger
}

// PinInfo is a point-in-time view of a live pin.
type PinInfo struct {
	Number     int
	Mode       Mode
	State      bool
	Resistor   Resistor
	IsHardware bool
}

// outboxItem is either an announcement for the observer or a transition
// for subscribers.
type outboxItem struct {
	send         SendFunc
	announcement Announcement
	transition   *Transition
}

// Runtime owns the shared state of a set of pins: the event bus, the
// numbering scheme, the backend and the observer pack.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc

	bus      *ackbus.Bus[Topic, Message, Edge]
	backend  Backend
	emulated bool
	inverted bool
	scheme   Scheme
	logger   Logger
	now      func() time.Time

	mu          sync.RWMutex
	observers   Observers
	pins        map[int]Pin
	watchers    []*Watcher
	subscribers map[int]func(Transition)
	nextSubID   int
	closed      bool

	outbox    chan outboxItem
	outMu     sync.RWMutex
	outClosed bool
	outDone   chan struct{}

	closeOnce sync.Once
}

// NewRuntime creates a runtime and starts its delivery goroutine.
// Call Close to release it.
func NewRuntime(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	backend := opts.Backend
	emulated := opts.ForceEmulation || backend == nil || backend == Unbound
	if emulated {
		backend = Unbound
	}

	size := opts.OutboxSize
	if size <= 0 {
		size = DefaultOutboxSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &Runtime{
		ctx:    ctx,
		cancel: cancel,
		bus: ackbus.New[Topic, Message, Edge](ackbus.Options{
			StaleTimeout: opts.StaleTimeout,
			Logger:       logger,
		}),
		backend:     backend,
		emulated:    emulated,
		inverted:    opts.Inverted && !emulated,
		scheme:      opts.Scheme,
		logger:      logger,
		now:         time.Now,
		pins:        make(map[int]Pin),
		subscribers: make(map[int]func(Transition)),
		outbox:      make(chan outboxItem, size),
		outDone:     make(chan struct{}),
	}

	go r.deliver()

	return r
}

// Emulated reports whether pins are never bound to hardware.
func (r *Runtime) Emulated() bool {
	return r.emulated
}

// Inverted reports whether input levels are flipped.
func (r *Runtime) Inverted() bool {
	return r.inverted
}

// IsBroadcomScheme reports whether pin numbers are BCM numbers.
func (r *Runtime) IsBroadcomScheme() bool {
	return r.scheme == Broadcom
}

// SupportsPeripherals reports whether PWM, I2C and SPI are available.
func (r *Runtime) SupportsPeripherals() bool {
	_, ok := r.backend.(Peripherals)
	return ok && !r.emulated
}

// SetInput creates an input pin.
//
// Parameters:
//   - number: pin number in the runtime's scheme
//
// Returns:
//   - *InputPin: the pin, reading Low until hardware binding completes
//   - error: ErrInvalidPinSpecifier or ErrRuntimeClosed
func (r *Runtime) SetInput(number int) (*InputPin, error) {
	physical, err := r.physical(number)
	if err != nil {
		return nil, err
	}
	return r.newInput(number, physical)
}

// SetOutput creates an output pin.
//
// Parameters:
//   - number: pin number in the runtime's scheme
//
// Returns:
//   - *OutputPin: the pin, reading Low until hardware binding completes
//   - error: ErrInvalidPinSpecifier or ErrRuntimeClosed
func (r *Runtime) SetOutput(number int) (*OutputPin, error) {
	physical, err := r.physical(number)
	if err != nil {
		return nil, err
	}
	return r.newOutput(number, physical)
}

// SetInputs creates several input pins. Every number is validated before
// any pin is created.
func (r *Runtime) SetInputs(numbers ...int) ([]*InputPin, error) {
	physical, err := r.physicalAll(numbers)
	if err != nil {
		return nil, err
	}

	pins := make([]*InputPin, 0, len(numbers))
	for i, n := range numbers {
		p, err := r.newInput(n, physical[i])
		if err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	return pins, nil
}

// SetOutputs creates several output pins. Every number is validated before
// any pin is created.
func (r *Runtime) SetOutputs(numbers ...int) ([]*OutputPin, error) {
	physical, err := r.physicalAll(numbers)
	if err != nil {
		return nil, err
	}

	pins := make([]*OutputPin, 0, len(numbers))
	for i, n := range numbers {
		p, err := r.newOutput(n, physical[i])
		if err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	return pins, nil
}

// Index keys pins by their number.
func Index[P Pin](pins []P) map[int]P {
	out := make(map[int]P, len(pins))
	for _, p := range pins {
		out[p.Number()] = p
	}
	return out
}

// Ready waits until every given pin has settled its hardware binding.
// Without arguments it waits for every live pin.
func (r *Runtime) Ready(ctx context.Context, pins ...Pin) error {
	if len(pins) == 0 {
		pins = r.livePins()
	}
	for _, p := range pins {
		if err := p.Ready(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SetObservers installs the observer pack, replacing any previous one.
// The receive adapter is handed to obs.Receive and every live pin then
// re-announces its current state.
func (r *Runtime) SetObservers(obs Observers) {
	r.mu.Lock()
	r.observers = obs
	r.mu.Unlock()

	if obs.Receive != nil {
		obs.Receive(r.receive)
	}

	for _, p := range r.livePins() {
		p.base().inform()
	}
}

// WatchInput registers a watcher fired by edges on any input pin.
func (r *Runtime) WatchInput(edge Edge, cb func(pin int, state bool), opts ...WatchOption) *Watcher {
	w := newWatcher(edge, cb, r.now, opts)
	if cb == nil {
		w.active.Store(false)
		return w
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		w.active.Store(false)
		return w
	}

	w.detach = r.removeWatcher
	r.watchers = append(r.watchers, w)
	return w
}

// UnwatchInput stops every watcher registered with WatchInput.
func (r *Runtime) UnwatchInput() {
	r.mu.Lock()
	watchers := r.watchers
	r.watchers = nil
	r.mu.Unlock()

	for _, w := range watchers {
		w.active.Store(false)
	}
}

// Subscribe registers fn for every confirmed transition on any pin.
// Transitions are delivered in order from a single goroutine.
// The returned function removes the subscription.
func (r *Runtime) Subscribe(fn func(Transition)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}

// Snapshot returns the live pins ordered by number.
func (r *Runtime) Snapshot() []PinInfo {
	pins := r.livePins()
	out := make([]PinInfo, 0, len(pins))
	for _, p := range pins {
		out = append(out, p.base().info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Lookup returns the live pin registered under number.
func (r *Runtime) Lookup(number int) (Pin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pins[number]
	return p, ok
}

// StartPWM starts a pulse-width output on pin.
func (r *Runtime) StartPWM(ctx context.Context, pin, frequencyHz int, duty float64) (PWM, error) {
	periph, err := r.peripherals("PWM")
	if err != nil {
		return nil, err
	}
	physical, err := r.physical(pin)
	if err != nil {
		return nil, err
	}
	return periph.StartPWM(ctx, physical, frequencyHz, duty)
}

// StartI2C opens the device at addr on the named I2C bus.
func (r *Runtime) StartI2C(ctx context.Context, bus string, addr uint16) (I2C, error) {
	periph, err := r.peripherals("I2C")
	if err != nil {
		return nil, err
	}
	return periph.StartI2C(ctx, bus, addr)
}

// StartSPI opens the named SPI port.
func (r *Runtime) StartSPI(ctx context.Context, port string, cfg SPIConfig) (SPI, error) {
	periph, err := r.peripherals("SPI")
	if err != nil {
		return nil, err
	}
	return periph.StartSPI(ctx, port, cfg)
}

// Close closes every live pin, flushes pending deliveries and stops the
// bus. Safe to call multiple times.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		for _, p := range r.livePins() {
			if err := p.Close(); err != nil {
				r.logger.Warn("closing pin", "pin", p.Number(), "error", err)
			}
		}

		r.outMu.Lock()
		r.outClosed = true
		close(r.outbox)
		r.outMu.Unlock()
		<-r.outDone

		r.cancel()
		r.bus.Close()
	})
	return nil
}

// receive is the adapter handed to the observer's Receive callback.
func (r *Runtime) receive(ctx context.Context, rep Report) (Edge, error) {
	topic := Topic{Pin: rep.Pin, Kind: StateReceived}
	return r.bus.Invoke(ctx, topic, Message{
		Kind:     StateReceived,
		State:    rep.State,
		Mode:     rep.Mode,
		Resistor: rep.Resistor,
	})
}

func (r *Runtime) physical(number int) (int, error) {
	if r.scheme == Broadcom {
		p, err := pinscheme.ToPhysical(number)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidPinSpecifier, err)
		}
		return p, nil
	}
	if number < 1 || number > MaxPhysicalPin {
		return 0, fmt.Errorf("%w: physical pin %d", ErrInvalidPinSpecifier, number)
	}
	return number, nil
}

func (r *Runtime) physicalAll(numbers []int) ([]int, error) {
	if len(numbers) == 0 {
		return nil, fmt.Errorf("%w: no pins given", ErrInvalidPinSpecifier)
	}
	out := make([]int, len(numbers))
	for i, n := range numbers {
		p, err := r.physical(n)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func (r *Runtime) peripherals(kind string) (Peripherals, error) {
	periph, ok := r.backend.(Peripherals)
	if !ok || r.emulated {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPeripheral, kind)
	}
	return periph, nil
}

// register adds p to the registry and installs its responders.
func (r *Runtime) register(p Pin, received ackbus.HandlerFunc[Message, Edge]) error {
	b := p.base()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRuntimeClosed
	}
	_, replaced := r.pins[b.number]
	r.pins[b.number] = p
	r.mu.Unlock()

	if replaced {
		r.logger.Warn("pin number already in use, previous pin detached", "pin", b.number)
	}

	r.bus.Handle(Topic{Pin: b.number, Kind: StateConfirmed}, b.handleConfirmed)
	r.bus.Handle(Topic{Pin: b.number, Kind: StateReceived}, received)
	return nil
}

// forget removes p from the registry and its responders from the bus.
// Nothing is removed if another pin has since taken the number.
func (r *Runtime) forget(p Pin) {
	b := p.base()

	r.mu.Lock()
	current, ok := r.pins[b.number]
	owned := ok && current.base() == b
	if owned {
		delete(r.pins, b.number)
	}
	r.mu.Unlock()

	if owned {
		r.bus.Unhandle(Topic{Pin: b.number, Kind: StateReceived})
		r.bus.Unhandle(Topic{Pin: b.number, Kind: StateConfirmed})
	}
}

func (r *Runtime) livePins() []Pin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Pin, 0, len(r.pins))
	for _, p := range r.pins {
		out = append(out, p)
	}
	return out
}

func (r *Runtime) removeWatcher(w *Watcher) {
	r.mu.Lock()
	r.watchers = slices.DeleteFunc(r.watchers, func(x *Watcher) bool { return x == w })
	r.mu.Unlock()
}

// fireInputWatchers runs the any-pin watchers for an input edge.
func (r *Runtime) fireInputWatchers(pin int, edge Edge, state bool) {
	r.mu.RLock()
	watchers := slices.Clone(r.watchers)
	r.mu.RUnlock()

	for _, w := range watchers {
		w.fire(pin, edge, state)
	}
}

// announce queues a for the current observer's Send.
func (r *Runtime) announce(a Announcement) {
	r.mu.RLock()
	send := r.observers.Send
	r.mu.RUnlock()

	if send == nil {
		return
	}
	r.enqueue(outboxItem{send: send, announcement: a})
}

// publish queues t for subscribers.
func (r *Runtime) publish(t Transition) {
	r.mu.RLock()
	n := len(r.subscribers)
	r.mu.RUnlock()

	if n == 0 {
		return
	}
	r.enqueue(outboxItem{transition: &t})
}

func (r *Runtime) enqueue(item outboxItem) {
	r.outMu.RLock()
	defer r.outMu.RUnlock()

	if r.outClosed {
		return
	}

	select {
	case r.outbox <- item:
	default:
		r.logger.Warn("gpio outbox full, dropping delivery",
			"pin", item.announcement.Pin,
			"transition", item.transition != nil,
		)
	}
}

// deliver drains the outbox in order until it is closed.
func (r *Runtime) deliver() {
	defer close(r.outDone)

	for item := range r.outbox {
		if item.transition != nil {
			r.mu.RLock()
			subs := make([]func(Transition), 0, len(r.subscribers))
			for _, fn := range r.subscribers {
				subs = append(subs, fn)
			}
			r.mu.RUnlock()

			for _, fn := range subs {
				fn(*item.transition)
			}
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.bus.StaleTimeout())
		if err := item.send(ctx, item.announcement); err != nil {
			r.logger.Warn("observer send failed",
				"pin", item.announcement.Pin,
				"state", item.announcement.State,
				"error", err,
			)
		}
		cancel()
	}
}
