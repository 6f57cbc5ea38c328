// Package sim provides an in-memory gpio.Backend.
//
// Handles live in process memory. Input interrupts are produced by calling
// Set, which makes the backend suitable for development on machines without
// a GPIO header and for tests that need a bound pin.
//
//	backend := sim.New(sim.WithLatency(20 * time.Millisecond))
//	rt := gpio.NewRuntime(gpio.Options{Backend: backend})
//	in, _ := rt.SetInput(11)
//	backend.Set(11, true) // drives a rising edge into the pin
//
// Peripherals are simulated too: PWM records its duty cycle, and I2C and
// SPI connections loop written bytes back on the next read.
package sim
