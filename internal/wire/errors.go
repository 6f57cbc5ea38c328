package wire

import "errors"

var (
	// ErrUnknownFormat is returned by New for an unsupported format name.
	ErrUnknownFormat = errors.New("wire: unknown payload format")

	// ErrDecode is returned when a payload cannot be decoded.
	ErrDecode = errors.New("wire: decode failed")

	// ErrInvalidPayload is returned when a decoded payload carries values
	// outside the GPIO vocabulary.
	ErrInvalidPayload = errors.New("wire: invalid payload")
)
