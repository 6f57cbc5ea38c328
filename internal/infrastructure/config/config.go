package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
	"github.com/nerrad567/gray-logic-gpio/internal/pinscheme"
)

// Config is the whole service configuration, one field per YAML section.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// GPIOConfig selects the hardware backend and declares the pins to create
// at startup.
type GPIOConfig struct {
	// Backend is "periph" for real hardware, "sim" for the in-memory
	// simulator, or "none" for pure emulation.
	Backend string `yaml:"backend"`

	// Scheme is "physical" (header positions) or "broadcom" (BCM numbers).
	Scheme string `yaml:"scheme"`

	// Inverted flips input levels read from hardware.
	Inverted bool `yaml:"inverted"`

	// ForceEmulation keeps all pins unbound regardless of Backend.
	ForceEmulation bool `yaml:"force_emulation"`

	// StaleTimeout bounds how long an inbound report waits for its pin.
	// Default: 10s
	StaleTimeout time.Duration `yaml:"stale_timeout"`

	// SimLatency delays pin binding when Backend is "sim".
	SimLatency time.Duration `yaml:"sim_latency"`

	Pins []PinConfig `yaml:"pins"`
}

// PinConfig declares one pin.
type PinConfig struct {
	Number   int    `yaml:"number"`
	Mode     string `yaml:"mode"`
	Name     string `yaml:"name"`
	Resistor string `yaml:"resistor,omitempty"`

	// Initial is the level an output is driven to at startup.
	Initial bool `yaml:"initial,omitempty"`
}

// DatabaseConfig contains SQLite settings for the transition history.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// Retention prunes history rows older than this. Zero keeps everything.
	Retention time.Duration `yaml:"retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// TopicPrefix is prepended to every GPIO topic. Default: "graylogic/gpio"
	TopicPrefix string `yaml:"topic_prefix"`

	// PayloadFormat is "json" or "cbor". Default: "json"
	PayloadFormat string `yaml:"payload_format"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DiscoveryConfig contains mDNS advertisement settings.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
	Service  string `yaml:"service"`
	Domain   string `yaml:"domain"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds the configuration in three layers: Default, then the YAML
// file at path, then GRAYLOGIC_GPIO_* environment variables. The result
// is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults. It runs fully emulated
// with only the HTTP API enabled.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		GPIO: GPIOConfig{
			Backend:      "none",
			Scheme:       "physical",
			StaleTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/gpio.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   30 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-gpio",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			TopicPrefix:   "graylogic/gpio",
			PayloadFormat: "json",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Discovery: DiscoveryConfig{
			Instance: "Gray Logic GPIO",
			Service:  "_graylogic-gpio._tcp",
			Domain:   "local.",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// envPrefix starts every override variable, e.g. GRAYLOGIC_GPIO_API_PORT.
const envPrefix = "GRAYLOGIC_GPIO_"

// envOverrides lists the settings that can be replaced from the
// environment. Each setter parses the raw value into cfg.
var envOverrides = map[string]func(cfg *Config, v string) error{
	"BACKEND":         func(c *Config, v string) error { c.GPIO.Backend = v; return nil },
	"SCHEME":          func(c *Config, v string) error { c.GPIO.Scheme = v; return nil },
	"FORCE_EMULATION": func(c *Config, v string) error { return parseInto(&c.GPIO.ForceEmulation, v, strconv.ParseBool) },
	"DATABASE_PATH":   func(c *Config, v string) error { c.Database.Path = v; return nil },
	"MQTT_HOST":       func(c *Config, v string) error { c.MQTT.Broker.Host = v; return nil },
	"MQTT_USERNAME":   func(c *Config, v string) error { c.MQTT.Auth.Username = v; return nil },
	"MQTT_PASSWORD":   func(c *Config, v string) error { c.MQTT.Auth.Password = v; return nil },
	"API_HOST":        func(c *Config, v string) error { c.API.Host = v; return nil },
	"API_PORT":        func(c *Config, v string) error { return parseInto(&c.API.Port, v, strconv.Atoi) },
	"INFLUXDB_TOKEN":  func(c *Config, v string) error { c.InfluxDB.Token = v; return nil },
	"LOG_LEVEL":       func(c *Config, v string) error { c.Logging.Level = v; return nil },
}

func parseInto[T any](dst *T, raw string, parse func(string) (T, error)) error {
	v, err := parse(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// applyEnvOverrides applies every non-empty override variable to cfg.
func applyEnvOverrides(cfg *Config) error {
	for key, set := range envOverrides {
		name := envPrefix + key
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		if err := set(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Validate reports every problem in c as a single error.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	errs = append(errs, c.GPIO.validate()...)

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled {
		switch c.MQTT.PayloadFormat {
		case "json", "cbor":
		default:
			errs = append(errs, fmt.Sprintf("mqtt.payload_format %q must be json or cbor", c.MQTT.PayloadFormat))
		}
		if strings.TrimSpace(c.MQTT.TopicPrefix) == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Discovery.Enabled && !c.API.Enabled {
		errs = append(errs, "discovery requires api to be enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (g GPIOConfig) validate() []string {
	var errs []string

	switch g.Backend {
	case "periph", "sim", "none":
	default:
		errs = append(errs, fmt.Sprintf("gpio.backend %q must be periph, sim or none", g.Backend))
	}

	scheme, err := gpio.ParseScheme(g.Scheme)
	if err != nil {
		errs = append(errs, fmt.Sprintf("gpio.scheme: %v", err))
	}

	if g.StaleTimeout < 0 {
		errs = append(errs, "gpio.stale_timeout must not be negative")
	}

	seen := make(map[int]bool, len(g.Pins))
	for i, p := range g.Pins {
		field := fmt.Sprintf("gpio.pins[%d]", i)

		if !validPinNumber(scheme, p.Number) {
			errs = append(errs, fmt.Sprintf("%s.number %d is not a %s pin", field, p.Number, scheme))
		}
		if seen[p.Number] {
			errs = append(errs, fmt.Sprintf("%s.number %d is declared twice", field, p.Number))
		}
		seen[p.Number] = true

		mode, err := gpio.ParseMode(p.Mode)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s.mode: %v", field, err))
		}
		if _, err := gpio.ParseResistor(p.Resistor); err != nil {
			errs = append(errs, fmt.Sprintf("%s.resistor: %v", field, err))
		} else if p.Resistor != "" && mode == gpio.Output {
			errs = append(errs, fmt.Sprintf("%s.resistor is only valid for inputs", field))
		}
	}

	return errs
}

// validPinNumber mirrors the numbering rules the runtime enforces.
func validPinNumber(scheme gpio.Scheme, n int) bool {
	if scheme == gpio.Broadcom {
		_, err := pinscheme.ToPhysical(n)
		return err == nil
	}
	return n >= 1 && n <= gpio.MaxPhysicalPin
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
