package ackbus

import "errors"

// Domain errors for the ackbus package.
var (
	// ErrStale is returned by Invoke when no response arrived before the
	// stale timeout elapsed.
	ErrStale = errors.New("ackbus: request considered stale")

	// ErrHandlerPanic is returned by Invoke when the responder panicked.
	ErrHandlerPanic = errors.New("ackbus: handler panicked")

	// ErrClosed is returned by Invoke once the bus has been closed.
	ErrClosed = errors.New("ackbus: bus closed")
)
