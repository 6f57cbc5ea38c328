package periph

import (
	"context"
	"fmt"
	"sync"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
	"github.com/nerrad567/gray-logic-gpio/internal/pinscheme"
)

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Backend binds pins through the periph.io GPIO registry.
type Backend struct {
	logger Logger

	initOnce sync.Once
	initErr  error
}

// New creates a periph backend. Init must succeed before pins bind.
func New(logger Logger) *Backend {
	return &Backend{logger: logger}
}

// Init loads the periph host drivers. Safe to call multiple times.
func (b *Backend) Init() error {
	b.initOnce.Do(func() {
		state, err := host.Init()
		if err != nil {
			b.initErr = fmt.Errorf("%w: %w", ErrHostInit, err)
			return
		}
		if b.logger != nil {
			b.logger.Debug("periph host initialised", "drivers_loaded", len(state.Loaded))
		}
	})
	return b.initErr
}

// BindInput configures physicalPin as a floating input.
func (b *Backend) BindInput(ctx context.Context, physicalPin int) (gpio.Handle, error) {
	p, err := b.lookup(ctx, physicalPin)
	if err != nil {
		return nil, err
	}
	if err := p.In(pgpio.Float, pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configuring %s as input: %w", p.Name(), err)
	}
	return newHandle(p, b.logger), nil
}

// BindOutput configures physicalPin as an output driven Low.
func (b *Backend) BindOutput(ctx context.Context, physicalPin int) (gpio.Handle, error) {
	p, err := b.lookup(ctx, physicalPin)
	if err != nil {
		return nil, err
	}
	if err := p.Out(pgpio.Low); err != nil {
		return nil, fmt.Errorf("configuring %s as output: %w", p.Name(), err)
	}
	return newHandle(p, b.logger), nil
}

// lookup resolves a physical header position to its periph pin.
func (b *Backend) lookup(ctx context.Context, physicalPin int) (pgpio.PinIO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bcm, err := pinscheme.ToAlternate(physicalPin)
	if err != nil {
		return nil, err
	}
	if err := b.Init(); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("GPIO%d", bcm)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	return p, nil
}
