package gpio

import "errors"

// Domain errors for the gpio package.
var (
	// ErrInvalidPinSpecifier is returned when a pin number is outside the
	// active numbering scheme, or when no pins were given.
	ErrInvalidPinSpecifier = errors.New("gpio: invalid pin specifier")

	// ErrUnsupportedPeripheral is returned when PWM, I2C or SPI is requested
	// while the runtime is emulated or the backend cannot provide it.
	ErrUnsupportedPeripheral = errors.New("gpio: peripheral not supported in emulation mode")

	// ErrPinClosed is returned for operations on a closed pin.
	ErrPinClosed = errors.New("gpio: pin closed")

	// ErrRuntimeClosed is returned when creating pins on a closed runtime.
	ErrRuntimeClosed = errors.New("gpio: runtime closed")
)
