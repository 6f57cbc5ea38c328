package periph

import "errors"

var (
	// ErrHostInit is returned when the periph host drivers fail to load.
	ErrHostInit = errors.New("periph: host init failed")

	// ErrPinNotFound is returned when the registry has no such GPIO.
	ErrPinNotFound = errors.New("periph: pin not found")
)
