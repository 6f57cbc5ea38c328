// Package logging provides structured logging for the Gray Logic GPIO
// service.
//
// This package wraps Go's standard log/slog package. Every entry carries
// the service name and build version, and components add their own name
// with Component.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	gpioLog := logger.Component("gpio")
//	gpioLog.Info("pin bound", "pin", 11)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
