package gpio

import (
	"context"
	"time"
)

// Backend binds pin numbers to hardware. Pin numbers are always physical
// header positions; the runtime translates Broadcom numbers first.
type Backend interface {
	BindInput(ctx context.Context, physicalPin int) (Handle, error)
	BindOutput(ctx context.Context, physicalPin int) (Handle, error)
}

// Handle is a bound hardware pin.
type Handle interface {
	// State returns the raw hardware level.
	State() bool

	// Watch calls fn with the raw level on every edge matching edge,
	// no more often than minInterval. A second Watch replaces the first.
	Watch(edge Edge, fn func(level bool), minInterval time.Duration) error

	// Unwatch stops edge delivery. It may wait for a callback in flight.
	Unwatch()

	// Write drives the level and returns the level read back.
	Write(level bool) (bool, error)

	// SetResistor configures the pull resistor.
	SetResistor(r Resistor) error

	// Close releases the pin.
	Close() error
}

// Peripherals is implemented by backends that can drive PWM, I2C and SPI.
type Peripherals interface {
	StartPWM(ctx context.Context, physicalPin int, frequencyHz int, duty float64) (PWM, error)
	StartI2C(ctx context.Context, bus string, addr uint16) (I2C, error)
	StartSPI(ctx context.Context, port string, cfg SPIConfig) (SPI, error)
}

// PWM is a running pulse-width output.
type PWM interface {
	SetDuty(duty float64) error
	Stop() error
}

// I2C is a device on an I2C bus.
type I2C interface {
	Tx(w, r []byte) error
	Close() error
}

// SPIConfig selects the SPI connection parameters.
type SPIConfig struct {
	SpeedHz int64
	Mode    int
	Bits    int
}

// SPI is an open SPI connection.
type SPI interface {
	Tx(w, r []byte) error
	Close() error
}

// Unbound is the backend used in emulation. It never binds a pin.
var Unbound Backend = unbound{}

type unbound struct{}

func (unbound) BindInput(context.Context, int) (Handle, error)  { return nil, nil }
func (unbound) BindOutput(context.Context, int) (Handle, error) { return nil, nil }
