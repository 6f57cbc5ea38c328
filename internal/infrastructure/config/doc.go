// Package config loads and validates the Gray Logic GPIO service
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GRAYLOGIC_GPIO_* environment variables
//   - Validation of pin declarations and transport settings
//   - Default value handling
//
// Security Considerations:
//   - MQTT passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/gpio.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, p := range cfg.GPIO.Pins {
//	    fmt.Println(p.Number, p.Mode)
//	}
package config
