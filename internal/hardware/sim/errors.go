package sim

import "errors"

var (
	// ErrPinInUse is returned when binding a pin that is already bound.
	ErrPinInUse = errors.New("sim: pin already bound")

	// ErrClosed is returned for operations on a released handle.
	ErrClosed = errors.New("sim: handle closed")
)
