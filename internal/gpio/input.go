package gpio

import (
	"context"
	"time"
)

// hardwareScanRate is the minimum interval between hardware edge reports.
const hardwareScanRate = time.Millisecond

// InputPin is a pin whose level is read from hardware or reported by the
// observer.
type InputPin struct {
	*basePin
}

func (r *Runtime) newInput(number, physical int) (*InputPin, error) {
	in := &InputPin{basePin: newBasePin(r, number, physical, Input)}

	if err := r.register(in, in.handleReceived); err != nil {
		return nil, err
	}

	r.announce(Announcement{Pin: number, State: false, Mode: Input})
	in.bind(in.armHardware)

	return in, nil
}

// Resistor returns the configured pull resistor.
func (in *InputPin) Resistor() Resistor {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.resistor
}

// SetResistor stores the pull configuration and forwards it to the
// hardware once bound. Unspecified is treated as NoPull. Hardware errors
// are logged.
func (in *InputPin) SetResistor(r Resistor) error {
	if r == Unspecified {
		r = NoPull
	}

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return ErrPinClosed
	}
	in.resistor = r
	in.mu.Unlock()

	in.whenBound(func(h Handle) {
		if h == nil {
			return
		}
		if err := h.SetResistor(r); err != nil {
			in.rt.logger.Warn("setting pull resistor", "pin", in.number, "resistor", r.String(), "error", err)
		}
	})
	return nil
}

// Watch registers cb for confirmed edges matching edge. The watcher fires
// at most once per scan rate (DefaultScanRate unless WithScanRate is given).
// On a closed pin, or with a nil cb, the returned watcher is inactive.
func (in *InputPin) Watch(edge Edge, cb StateCallback, opts ...WatchOption) *Watcher {
	var fn func(int, bool)
	if cb != nil {
		fn = func(_ int, state bool) { cb(state) }
	}
	w := newWatcher(edge, fn, in.rt.now, opts)
	if cb == nil {
		w.active.Store(false)
		return w
	}

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		w.active.Store(false)
		return w
	}
	w.detach = in.removeWatcher
	in.watchers = append(in.watchers, w)
	rearm := in.isHardware && !in.hwWatching
	in.mu.Unlock()

	if rearm {
		in.whenBound(func(h Handle) {
			if h != nil {
				in.offCallback(func() { in.armHardware(h) })
			}
		})
	}
	return w
}

// Unwatch stops every watcher on this pin and releases the hardware edge
// watch. Remote reports are still accepted.
func (in *InputPin) Unwatch() {
	in.mu.Lock()
	watchers := in.watchers
	in.watchers = nil
	in.hwWatching = false
	in.mu.Unlock()

	for _, w := range watchers {
		w.active.Store(false)
	}

	in.whenBound(func(h Handle) {
		if h == nil {
			return
		}
		in.mu.Lock()
		in.hwWatching = false
		in.mu.Unlock()
		in.offCallback(h.Unwatch)
	})
}

// Close deregisters the pin, announces Low to the observer and releases
// the hardware. Safe to call multiple times.
func (in *InputPin) Close() error {
	in.shutdown(in, func(h Handle) { h.Unwatch() })
	return nil
}

// armHardware subscribes to hardware edges.
func (in *InputPin) armHardware(h Handle) {
	in.mu.Lock()
	if in.closed || in.hwWatching {
		in.mu.Unlock()
		return
	}
	in.hwWatching = true
	in.mu.Unlock()

	if err := h.Watch(Both, in.hardwareReport, hardwareScanRate); err != nil {
		in.mu.Lock()
		in.hwWatching = false
		in.mu.Unlock()
		in.rt.logger.Warn("watching hardware edges", "pin", in.number, "error", err)
	}
}

// hardwareReport is the intake for levels read from hardware. Confirmed
// edges are announced to the observer with the configured resistor.
func (in *InputPin) hardwareReport(level bool) {
	if in.rt.inverted {
		level = !level
	}

	in.beginReport()
	defer in.endReport()

	in.intakeMu.Lock()
	defer in.intakeMu.Unlock()

	in.mu.Lock()
	if in.closed || in.state == level {
		in.mu.Unlock()
		return
	}
	prev := in.state
	in.state = level
	resistor := in.resistor
	in.mu.Unlock()

	in.confirm(in.rt.ctx, edgeBetween(prev, level), level, SourceHardware)
	in.rt.announce(Announcement{Pin: in.number, State: level, Mode: Input, Resistor: resistor})
}

// handleReceived is the intake for observer reports. Accepted changes are
// confirmed but never announced back to the observer.
func (in *InputPin) handleReceived(ctx context.Context, msg Message) (Edge, error) {
	if msg.Mode != Input {
		return Unknown, nil
	}

	in.intakeMu.Lock()
	defer in.intakeMu.Unlock()

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return Unknown, ErrPinClosed
	}
	prev := in.state
	mismatch := msg.Resistor != Unspecified && msg.Resistor != in.resistor
	if mismatch || prev == msg.State {
		in.mu.Unlock()
		in.confirm(ctx, Unknown, prev, SourceRemote)
		return Unknown, nil
	}
	in.state = msg.State
	in.mu.Unlock()

	edge := edgeBetween(prev, msg.State)
	in.confirm(ctx, edge, msg.State, SourceRemote)
	return edge, nil
}
