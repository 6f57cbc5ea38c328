// Package periph implements gpio.Backend on top of periph.io.
//
// Physical header positions are translated to BCM numbers and looked up
// in the periph GPIO registry as "GPIO<n>". Edge watches run a
// WaitForEdge loop per pin. PWM, I2C and SPI are provided through the
// periph conn registries, so the backend also satisfies gpio.Peripherals.
//
// Call Init once before binding pins; it loads the host drivers.
package periph
