// Gray Logic GPIO - pin state service
//
// This is the main entry point for the GPIO service. It drives the pins
// declared in configuration, on real hardware through periph.io or on the
// in-memory simulator, and mirrors their state to remote observers over
// MQTT and WebSocket. Transitions are optionally recorded to SQLite and
// InfluxDB, and the API can be advertised over mDNS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nerrad567/gray-logic-gpio/internal/api"
	"github.com/nerrad567/gray-logic-gpio/internal/discovery"
	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
	"github.com/nerrad567/gray-logic-gpio/internal/hardware/periph"
	"github.com/nerrad567/gray-logic-gpio/internal/hardware/sim"
	"github.com/nerrad567/gray-logic-gpio/internal/history"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-gpio/internal/observer"
	"github.com/nerrad567/gray-logic-gpio/internal/observer/mqttobserver"
	"github.com/nerrad567/gray-logic-gpio/internal/wire"
	"github.com/nerrad567/gray-logic-gpio/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/gpio.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic GPIO",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Runtime and pins. On a clean shutdown the runtime closes before the
	// transports so its final Low announcements still reach observers.
	rt, err := newRuntime(cfg.GPIO, log)
	if err != nil {
		return err
	}
	closeRuntime := sync.OnceFunc(func() {
		log.Info("closing GPIO runtime")
		if closeErr := rt.Close(); closeErr != nil {
			log.Error("error closing GPIO runtime", "error", closeErr)
		}
	})
	defer closeRuntime()

	if declareErr := declarePins(rt, cfg.GPIO.Pins); declareErr != nil {
		return fmt.Errorf("declaring pins: %w", declareErr)
	}
	log.Info("GPIO runtime ready",
		"backend", cfg.GPIO.Backend,
		"scheme", cfg.GPIO.Scheme,
		"emulated", rt.Emulated(),
		"pins", len(cfg.GPIO.Pins),
	)

	// Transition history (optional)
	var db *database.DB
	var repo *history.SQLiteRepository
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)

		repo = history.NewSQLiteRepository(db.DB)
		recorder := history.NewRecorder(repo, history.RecorderOptions{
			Retention: cfg.Database.Retention,
			Logger:    log.Component("history"),
		})
		recorder.Start(ctx, rt)
		defer func() {
			log.Info("stopping history recorder", "dropped", recorder.Dropped())
			recorder.Stop()
		}()
	} else {
		log.Info("transition history disabled")
	}

	// Telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.ID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		unsubscribe := rt.Subscribe(influxClient.Observe)
		defer func() {
			unsubscribe()
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	var packs []gpio.Observers

	// MQTT observer (optional)
	var mqttClient *mqtt.Client
	var mqttObs *mqttobserver.Observer
	if cfg.MQTT.Enabled {
		mqttClient, mqttObs, err = startMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		packs = append(packs, mqttObs.Observers())
	} else {
		log.Info("MQTT disabled")
	}

	// HTTP/WebSocket observer (optional)
	var server *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Runtime: rt,
			Version: version,
		}
		if repo != nil {
			deps.History = repo
		}
		server, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		packs = append(packs, server.Observers())
	} else {
		log.Info("API disabled")
	}

	// Installing the observers re-announces every pin.
	rt.SetObservers(observer.Multi(packs...))

	if mqttObs != nil {
		if startErr := mqttObs.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT observer: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT observer")
			if stopErr := mqttObs.Stop(); stopErr != nil {
				log.Error("error stopping MQTT observer", "error", stopErr)
			}
		}()
	}

	if server != nil {
		// Detached from the signal so clients still receive the runtime's
		// closing announcements. Close stops it.
		if startErr := server.Start(context.WithoutCancel(ctx)); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	// mDNS advertisement (optional)
	if cfg.Discovery.Enabled {
		adv := discovery.New(cfg.Discovery, log.Component("discovery"))
		if advErr := adv.Start(discovery.Info{
			Port:     cfg.API.Port,
			SiteID:   cfg.Site.ID,
			Version:  version,
			WSPath:   cfg.WebSocket.Path,
			Emulated: rt.Emulated(),
		}); advErr != nil {
			log.Warn("mDNS advertisement failed", "error", advErr)
		} else {
			defer adv.Stop()
		}
	}

	defer closeRuntime()

	if readyErr := rt.Ready(ctx); readyErr != nil {
		return fmt.Errorf("waiting for pins: %w", readyErr)
	}

	if checkErr := healthCheck(ctx, db, mqttClient, influxClient, server); checkErr != nil {
		return fmt.Errorf("health check failed: %w", checkErr)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. GPIO runtime
	// 2. mDNS, API server, MQTT observer
	// 3. MQTT, InfluxDB, history recorder, database

	log.Info("Gray Logic GPIO stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_GPIO_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_GPIO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newRuntime selects the backend and builds the runtime.
func newRuntime(cfg config.GPIOConfig, log *logging.Logger) (*gpio.Runtime, error) {
	scheme, err := gpio.ParseScheme(cfg.Scheme)
	if err != nil {
		return nil, fmt.Errorf("gpio scheme: %w", err)
	}

	backend, err := newBackend(cfg, log)
	if err != nil {
		return nil, err
	}

	return gpio.NewRuntime(gpio.Options{
		Inverted:       cfg.Inverted,
		Scheme:         scheme,
		ForceEmulation: cfg.ForceEmulation,
		Backend:        backend,
		StaleTimeout:   cfg.StaleTimeout,
		Logger:         log.Component("gpio"),
	}), nil
}

// newBackend returns the configured backend. A nil backend means every
// pin is emulated.
func newBackend(cfg config.GPIOConfig, log *logging.Logger) (gpio.Backend, error) {
	if cfg.ForceEmulation {
		return nil, nil
	}

	switch cfg.Backend {
	case "periph":
		b := periph.New(log.Component("periph"))
		if err := b.Init(); err != nil {
			return nil, fmt.Errorf("initialising periph: %w", err)
		}
		return b, nil
	case "sim":
		return sim.New(sim.WithLatency(cfg.SimLatency)), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown gpio backend %q", cfg.Backend)
	}
}

// declarePins creates every configured pin, applies input resistors and
// drives outputs to their initial level.
func declarePins(rt *gpio.Runtime, pins []config.PinConfig) error {
	for _, pc := range pins {
		mode, err := gpio.ParseMode(pc.Mode)
		if err != nil {
			return fmt.Errorf("pin %d: %w", pc.Number, err)
		}

		switch mode {
		case gpio.Input:
			in, err := rt.SetInput(pc.Number)
			if err != nil {
				return fmt.Errorf("pin %d: %w", pc.Number, err)
			}
			resistor, err := gpio.ParseResistor(pc.Resistor)
			if err != nil {
				return fmt.Errorf("pin %d: %w", pc.Number, err)
			}
			if resistor != gpio.Unspecified {
				if err := in.SetResistor(resistor); err != nil {
					return fmt.Errorf("pin %d resistor: %w", pc.Number, err)
				}
			}
		case gpio.Output:
			out, err := rt.SetOutput(pc.Number)
			if err != nil {
				return fmt.Errorf("pin %d: %w", pc.Number, err)
			}
			if pc.Initial {
				if err := out.Write(true, nil); err != nil {
					return fmt.Errorf("pin %d initial level: %w", pc.Number, err)
				}
			}
		}
	}
	return nil
}

// startMQTT connects to the broker and builds the MQTT observer. The
// observer is started once the runtime has been handed its pack.
func startMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, *mqttobserver.Observer, error) {
	codec, err := wire.New(cfg.PayloadFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("mqtt payload format: %w", err)
	}

	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
		"prefix", client.Topics().Prefix(),
		"codec", codec.Name(),
	)

	obs, err := mqttobserver.New(mqttobserver.Options{
		Client: client,
		Topics: client.Topics(),
		Codec:  codec,
		QoS:    client.QoS(),
		Logger: log.Component("mqttobserver"),
	})
	if err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("creating MQTT observer: %w", err)
	}
	return client, obs, nil
}

// healthChecker is implemented by every optional infrastructure component.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck verifies every enabled component. Disabled components are
// nil and skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
	checks := []struct {
		name    string
		enabled bool
		checker healthChecker
	}{
		{"database", db != nil, db},
		{"mqtt", mqttClient != nil, mqttClient},
		{"influxdb", influxClient != nil, influxClient},
		{"api", server != nil, server},
	}

	for _, c := range checks {
		if !c.enabled {
			continue
		}
		if err := c.checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}
