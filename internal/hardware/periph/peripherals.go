package periph

import (
	"context"
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

// StartPWM drives physicalPin with a hardware PWM signal.
func (b *Backend) StartPWM(ctx context.Context, physicalPin int, frequencyHz int, duty float64) (gpio.PWM, error) {
	p, err := b.lookup(ctx, physicalPin)
	if err != nil {
		return nil, err
	}

	out := &pwm{pin: p, freq: physic.Frequency(frequencyHz) * physic.Hertz}
	if err := out.SetDuty(duty); err != nil {
		return nil, err
	}
	return out, nil
}

// StartI2C opens the device at addr on the named bus ("" for the first).
func (b *Backend) StartI2C(ctx context.Context, bus string, addr uint16) (gpio.I2C, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.Init(); err != nil {
		return nil, err
	}

	bc, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("opening I2C bus %q: %w", bus, err)
	}
	return &i2cDevice{bus: bc, dev: &i2c.Dev{Bus: bc, Addr: addr}}, nil
}

// StartSPI opens the named SPI port ("" for the first).
func (b *Backend) StartSPI(ctx context.Context, port string, cfg gpio.SPIConfig) (gpio.SPI, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.Init(); err != nil {
		return nil, err
	}

	pc, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("opening SPI port %q: %w", port, err)
	}

	bits := cfg.Bits
	if bits == 0 {
		bits = 8
	}
	conn, err := pc.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, spi.Mode(cfg.Mode), bits)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("connecting SPI port %q: %w", port, err)
	}
	return &spiConn{port: pc, conn: conn}, nil
}

type pwm struct {
	pin  pgpio.PinIO
	freq physic.Frequency
}

func (p *pwm) SetDuty(duty float64) error {
	if duty < 0 || duty > 1 {
		return fmt.Errorf("periph: duty %v out of range", duty)
	}
	return p.pin.PWM(pgpio.Duty(duty*float64(pgpio.DutyMax)), p.freq)
}

func (p *pwm) Stop() error {
	return p.pin.Halt()
}

type i2cDevice struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

func (d *i2cDevice) Tx(w, r []byte) error { return d.dev.Tx(w, r) }
func (d *i2cDevice) Close() error         { return d.bus.Close() }

type spiConn struct {
	port spi.PortCloser
	conn spi.Conn
}

func (c *spiConn) Tx(w, r []byte) error { return c.conn.Tx(w, r) }
func (c *spiConn) Close() error         { return c.port.Close() }
