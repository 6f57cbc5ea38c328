package periph

import (
	"sync"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

// edgePoll bounds each WaitForEdge call so Unwatch is noticed promptly.
const edgePoll = 100 * time.Millisecond

type handle struct {
	pin    pgpio.PinIO
	logger Logger

	mu   sync.Mutex
	pull pgpio.Pull
	edge pgpio.Edge
	stop chan struct{}
	done chan struct{}

	// calling is the done channel of the loop currently inside its callback.
	calling chan struct{}
}

func newHandle(p pgpio.PinIO, logger Logger) *handle {
	return &handle{pin: p, logger: logger, pull: pgpio.Float, edge: pgpio.NoEdge}
}

func (h *handle) State() bool {
	return h.pin.Read() == pgpio.High
}

func (h *handle) Watch(edge gpio.Edge, fn func(level bool), minInterval time.Duration) error {
	h.Unwatch()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.edge = toEdge(edge)
	if err := h.pin.In(h.pull, h.edge); err != nil {
		return err
	}

	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.loop(fn, minInterval, h.stop, h.done)
	return nil
}

func (h *handle) loop(fn func(bool), minInterval time.Duration, stop, done chan struct{}) {
	defer close(done)

	var last time.Time
	for {
		select {
		case <-stop:
			return
		default:
		}

		if !h.pin.WaitForEdge(edgePoll) {
			continue
		}

		now := time.Now()
		if !last.IsZero() && now.Sub(last) < minInterval {
			continue
		}
		last = now
		h.dispatch(fn, h.pin.Read() == pgpio.High, done)
	}
}

func (h *handle) dispatch(fn func(bool), level bool, done chan struct{}) {
	h.mu.Lock()
	h.calling = done
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.calling == done {
			h.calling = nil
		}
		h.mu.Unlock()
	}()
	fn(level)
}

func (h *handle) Unwatch() {
	h.mu.Lock()
	stop, done := h.stop, h.done
	h.stop, h.done = nil, nil
	h.edge = pgpio.NoEdge
	busy := done != nil && h.calling == done
	h.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	// The loop exits once its callback returns. Waiting here from inside
	// that callback would never finish.
	if !busy {
		<-done
	}

	h.mu.Lock()
	pull := h.pull
	h.mu.Unlock()
	if err := h.pin.In(pull, pgpio.NoEdge); err != nil && h.logger != nil {
		h.logger.Warn("disabling edge detection", "pin", h.pin.Name(), "error", err)
	}
}

func (h *handle) Write(level bool) (bool, error) {
	l := pgpio.Low
	if level {
		l = pgpio.High
	}
	if err := h.pin.Out(l); err != nil {
		return false, err
	}
	return h.pin.Read() == pgpio.High, nil
}

func (h *handle) SetResistor(r gpio.Resistor) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pull = toPull(r)
	return h.pin.In(h.pull, h.edge)
}

func (h *handle) Close() error {
	h.Unwatch()
	return h.pin.Halt()
}

func toPull(r gpio.Resistor) pgpio.Pull {
	switch r {
	case gpio.PullUp:
		return pgpio.PullUp
	case gpio.PullDown:
		return pgpio.PullDown
	default:
		return pgpio.Float
	}
}

func toEdge(e gpio.Edge) pgpio.Edge {
	switch e {
	case gpio.Rising:
		return pgpio.RisingEdge
	case gpio.Falling:
		return pgpio.FallingEdge
	default:
		return pgpio.BothEdges
	}
}
