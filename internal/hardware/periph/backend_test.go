package periph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
	"github.com/nerrad567/gray-logic-gpio/internal/pinscheme"
)

func TestBindRejectsPinsWithoutGPIO(t *testing.T) {
	b := New(nil)

	// Header positions 1 and 6 are power and ground.
	for _, phys := range []int{1, 6} {
		if _, err := b.BindInput(context.Background(), phys); !errors.Is(err, pinscheme.ErrInvalidPin) {
			t.Errorf("BindInput(%d) error = %v, want ErrInvalidPin", phys, err)
		}
		if _, err := b.BindOutput(context.Background(), phys); !errors.Is(err, pinscheme.ErrInvalidPin) {
			t.Errorf("BindOutput(%d) error = %v, want ErrInvalidPin", phys, err)
		}
	}
}

func TestBindHonoursCancelledContext(t *testing.T) {
	b := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.BindInput(ctx, 11); !errors.Is(err, context.Canceled) {
		t.Errorf("BindInput() error = %v, want context.Canceled", err)
	}
	if _, err := b.StartI2C(ctx, "", 0x40); !errors.Is(err, context.Canceled) {
		t.Errorf("StartI2C() error = %v, want context.Canceled", err)
	}
	if _, err := b.StartSPI(ctx, "", gpio.SPIConfig{}); !errors.Is(err, context.Canceled) {
		t.Errorf("StartSPI() error = %v, want context.Canceled", err)
	}
}

func TestToPull(t *testing.T) {
	tests := []struct {
		in   gpio.Resistor
		want pgpio.Pull
	}{
		{in: gpio.PullUp, want: pgpio.PullUp},
		{in: gpio.PullDown, want: pgpio.PullDown},
		{in: gpio.NoPull, want: pgpio.Float},
		{in: gpio.Unspecified, want: pgpio.Float},
	}
	for _, tt := range tests {
		if got := toPull(tt.in); got != tt.want {
			t.Errorf("toPull(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestToEdge(t *testing.T) {
	tests := []struct {
		in   gpio.Edge
		want pgpio.Edge
	}{
		{in: gpio.Rising, want: pgpio.RisingEdge},
		{in: gpio.Falling, want: pgpio.FallingEdge},
		{in: gpio.Both, want: pgpio.BothEdges},
	}
	for _, tt := range tests {
		if got := toEdge(tt.in); got != tt.want {
			t.Errorf("toEdge(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// edgePin is a pin whose edges are fed through a channel.
type edgePin struct {
	pgpio.PinIO

	mu    sync.Mutex
	level pgpio.Level
	edges chan pgpio.Level
}

func (p *edgePin) Name() string { return "GPIO17" }

func (p *edgePin) In(pgpio.Pull, pgpio.Edge) error { return nil }

func (p *edgePin) Read() pgpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *edgePin) WaitForEdge(timeout time.Duration) bool {
	select {
	case l := <-p.edges:
		p.mu.Lock()
		p.level = l
		p.mu.Unlock()
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestUnwatchFromInsideCallback(t *testing.T) {
	pin := &edgePin{edges: make(chan pgpio.Level, 1)}
	h := newHandle(pin, nil)

	returned := make(chan bool, 1)
	err := h.Watch(gpio.Both, func(level bool) {
		h.Unwatch()
		returned <- level
	}, 0)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	pin.edges <- pgpio.High

	select {
	case level := <-returned:
		if !level {
			t.Error("callback saw Low, want High")
		}
	case <-time.After(time.Second):
		t.Fatal("Unwatch blocked inside the edge callback")
	}
}

func TestUnwatchWaitsForLoop(t *testing.T) {
	pin := &edgePin{edges: make(chan pgpio.Level)}
	h := newHandle(pin, nil)

	if err := h.Watch(gpio.Both, func(bool) {}, 0); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()

	h.Unwatch()

	select {
	case <-done:
	default:
		t.Error("Unwatch returned before the edge loop stopped")
	}
}

var (
	_ gpio.Backend     = (*Backend)(nil)
	_ gpio.Peripherals = (*Backend)(nil)
	_ gpio.Handle      = (*handle)(nil)
)
