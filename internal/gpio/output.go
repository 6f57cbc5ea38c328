package gpio

import (
	"context"
	"time"
)

// OutputPin is a pin that drives a level.
type OutputPin struct {
	*basePin
}

func (r *Runtime) newOutput(number, physical int) (*OutputPin, error) {
	out := &OutputPin{basePin: newBasePin(r, number, physical, Output)}

	if err := r.register(out, out.handleReceived); err != nil {
		return nil, err
	}

	r.announce(Announcement{Pin: number, State: false, Mode: Output})
	out.bind(nil)

	return out, nil
}

// On drives the pin High after delay. cb, if not nil, receives the level
// reported by hardware, or the requested level when unbound.
func (out *OutputPin) On(delay time.Duration, cb StateCallback) error {
	return out.setStateWithDelay(true, delay, cb)
}

// Off drives the pin Low after delay.
func (out *OutputPin) Off(delay time.Duration, cb StateCallback) error {
	return out.setStateWithDelay(false, delay, cb)
}

// Write drives the pin to state immediately.
func (out *OutputPin) Write(state bool, cb StateCallback) error {
	return out.setStateWithDelay(state, 0, cb)
}

// Toggle inverts the cached level.
func (out *OutputPin) Toggle(cb StateCallback) error {
	return out.setStateWithDelay(!out.Read(nil), 0, cb)
}

// Pulse drives the pin High now and Low after width. cb runs once the Low
// level has been applied.
func (out *OutputPin) Pulse(width time.Duration, cb func()) error {
	return out.setStateWithDelay(true, 0, func(bool) {
		err := out.afterFunc(width, func() {
			_ = out.setStateWithDelay(false, 0, func(bool) {
				if cb != nil {
					cb()
				}
			})
		})
		if err != nil {
			out.rt.logger.Debug("pulse cancelled", "pin", out.number, "error", err)
		}
	})
}

// Close deregisters the pin, announces Low to the observer and releases
// the hardware. Safe to call multiple times.
func (out *OutputPin) Close() error {
	out.shutdown(out, nil)
	return nil
}

// setStateWithDelay applies state now, or after delay on a tracked timer.
// Immediate writes issued before binding completes are queued in order.
func (out *OutputPin) setStateWithDelay(state bool, delay time.Duration, cb StateCallback) error {
	if out.isClosed() {
		return ErrPinClosed
	}

	if delay <= 0 {
		out.whenBound(func(h Handle) { out.apply(h, state, cb) })
		return nil
	}

	return out.afterFunc(delay, func() {
		out.whenBound(func(h Handle) { out.apply(h, state, cb) })
	})
}

// apply writes state and announces it when the level changed. Local
// writes never go through the state-confirmed topic.
func (out *OutputPin) apply(h Handle, state bool, cb StateCallback) {
	out.intakeMu.Lock()

	out.mu.Lock()
	if out.closed {
		out.mu.Unlock()
		out.intakeMu.Unlock()
		return
	}
	prev := out.state
	out.state = state
	out.mu.Unlock()

	result := state
	if h != nil {
		got, err := h.Write(state)
		if err != nil {
			out.rt.logger.Warn("writing output", "pin", out.number, "state", state, "error", err)
		} else {
			result = got
		}
	}
	out.intakeMu.Unlock()

	if cb != nil {
		cb(result)
	}

	if prev == state {
		return
	}

	out.rt.announce(Announcement{Pin: out.number, State: state, Mode: Output})
	out.rt.publish(Transition{
		Pin:    out.number,
		Mode:   Output,
		State:  state,
		Edge:   edgeBetween(prev, state),
		Source: SourceLocal,
		At:     out.rt.now(),
	})
}

// handleReceived is the intake for observer reports. The observer is the
// system of record for outputs: an accepted report updates the cache and
// drives the hardware, and is never announced back.
func (out *OutputPin) handleReceived(ctx context.Context, msg Message) (Edge, error) {
	if msg.Mode != Output {
		return Unknown, nil
	}

	out.intakeMu.Lock()
	defer out.intakeMu.Unlock()

	out.mu.Lock()
	if out.closed {
		out.mu.Unlock()
		return Unknown, ErrPinClosed
	}
	prev := out.state
	out.state = msg.State
	out.mu.Unlock()

	if prev == msg.State {
		out.confirm(ctx, Unknown, prev, SourceRemote)
		return Unknown, nil
	}

	edge := edgeBetween(prev, msg.State)
	out.confirm(ctx, edge, msg.State, SourceRemote)

	out.whenBound(func(h Handle) {
		if h == nil {
			return
		}
		if _, err := h.Write(msg.State); err != nil {
			out.rt.logger.Warn("writing remote state", "pin", out.number, "state", msg.State, "error", err)
		}
	})
	return edge, nil
}
