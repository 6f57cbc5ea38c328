package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

// StartPWM starts a simulated PWM output.
func (b *Backend) StartPWM(_ context.Context, physicalPin int, frequencyHz int, duty float64) (gpio.PWM, error) {
	if frequencyHz <= 0 {
		return nil, fmt.Errorf("sim: invalid PWM frequency %d", frequencyHz)
	}
	p := &PWM{backend: b, physical: physicalPin, frequencyHz: frequencyHz}
	if err := p.SetDuty(duty); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.pwm[physicalPin] = p
	b.mu.Unlock()
	return p, nil
}

// PWMOutput returns the running PWM on physicalPin, if any.
func (b *Backend) PWMOutput(physicalPin int) (*PWM, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pwm[physicalPin]
	return p, ok
}

// StartI2C opens a loopback device on bus at addr.
func (b *Backend) StartI2C(_ context.Context, bus string, addr uint16) (gpio.I2C, error) {
	return b.loopback(fmt.Sprintf("i2c:%s:%#x", bus, addr)), nil
}

// StartSPI opens a loopback connection on port.
func (b *Backend) StartSPI(_ context.Context, port string, cfg gpio.SPIConfig) (gpio.SPI, error) {
	if cfg.Mode < 0 || cfg.Mode > 3 {
		return nil, fmt.Errorf("sim: invalid SPI mode %d", cfg.Mode)
	}
	return b.loopback("spi:" + port), nil
}

func (b *Backend) loopback(key string) *loopback {
	b.mu.Lock()
	defer b.mu.Unlock()
	lb, ok := b.buses[key]
	if !ok {
		lb = &loopback{}
		b.buses[key] = lb
	}
	return lb
}

// PWM is a simulated pulse-width output.
type PWM struct {
	backend     *Backend
	physical    int
	frequencyHz int

	mu      sync.Mutex
	duty    float64
	stopped bool
}

// SetDuty changes the duty cycle, between 0 and 1.
func (p *PWM) SetDuty(duty float64) error {
	if duty < 0 || duty > 1 {
		return fmt.Errorf("sim: duty %v out of range", duty)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrClosed
	}
	p.duty = duty
	return nil
}

// Duty returns the current duty cycle.
func (p *PWM) Duty() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// Stop halts the output.
func (p *PWM) Stop() error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.backend.mu.Lock()
	if p.backend.pwm[p.physical] == p {
		delete(p.backend.pwm, p.physical)
	}
	p.backend.mu.Unlock()
	return nil
}

// loopback answers every read with the bytes of the previous write.
type loopback struct {
	mu   sync.Mutex
	last []byte
}

func (l *loopback) Tx(w, r []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(r) > 0 {
		copy(r, l.last)
	}
	if len(w) > 0 {
		l.last = append(l.last[:0], w...)
	}
	return nil
}

func (l *loopback) Close() error { return nil }
