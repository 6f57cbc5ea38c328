package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

// Option configures a Backend.
type Option func(*Backend)

// WithLatency delays every bind by d.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) { b.latency = d }
}

// WithLevel sets the level a physical pin reports when first bound.
func WithLevel(physicalPin int, level bool) Option {
	return func(b *Backend) { b.levels[physicalPin] = level }
}

// Backend is an in-memory gpio.Backend that also implements
// gpio.Peripherals.
type Backend struct {
	latency time.Duration

	mu      sync.Mutex
	levels  map[int]bool
	handles map[int]*Handle
	pwm     map[int]*PWM
	buses   map[string]*loopback
}

// New creates a simulated backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		levels:  make(map[int]bool),
		handles: make(map[int]*Handle),
		pwm:     make(map[int]*PWM),
		buses:   make(map[string]*loopback),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BindInput binds physicalPin as an input.
func (b *Backend) BindInput(ctx context.Context, physicalPin int) (gpio.Handle, error) {
	return b.bind(ctx, physicalPin, gpio.Input)
}

// BindOutput binds physicalPin as an output.
func (b *Backend) BindOutput(ctx context.Context, physicalPin int) (gpio.Handle, error) {
	return b.bind(ctx, physicalPin, gpio.Output)
}

func (b *Backend) bind(ctx context.Context, physicalPin int, mode gpio.Mode) (gpio.Handle, error) {
	if b.latency > 0 {
		timer := time.NewTimer(b.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handles[physicalPin]; ok {
		return nil, fmt.Errorf("%w: %d", ErrPinInUse, physicalPin)
	}

	h := &Handle{
		backend:  b,
		physical: physicalPin,
		mode:     mode,
		level:    b.levels[physicalPin],
		resistor: gpio.NoPull,
	}
	b.handles[physicalPin] = h
	return h, nil
}

// Set drives the level of physicalPin as if it changed on the header.
// Watchers on a bound input fire synchronously.
func (b *Backend) Set(physicalPin int, level bool) {
	b.mu.Lock()
	b.levels[physicalPin] = level
	h := b.handles[physicalPin]
	b.mu.Unlock()

	if h != nil {
		h.drive(level)
	}
}

// Level returns the current level of physicalPin.
func (b *Backend) Level(physicalPin int) bool {
	b.mu.Lock()
	h := b.handles[physicalPin]
	level := b.levels[physicalPin]
	b.mu.Unlock()

	if h != nil {
		return h.State()
	}
	return level
}

// Bound reports whether physicalPin currently has a live handle.
func (b *Backend) Bound(physicalPin int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.handles[physicalPin]
	return ok
}

// Handle returns the live handle for physicalPin, if any.
func (b *Backend) Handle(physicalPin int) (*Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.handles[physicalPin]
	return h, ok
}

func (b *Backend) release(h *Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handles[h.physical] == h {
		delete(b.handles, h.physical)
		b.levels[h.physical] = h.level
	}
}
