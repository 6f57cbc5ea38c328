package discovery

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/config"
)

const (
	// DefaultService is the DNS-SD service type.
	DefaultService = "_graylogic-gpio._tcp"

	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."

	defaultInstance = "Gray Logic GPIO"
	defaultTTL      = 120
)

// Logger is the logging surface used by the advertiser.
type Logger interface {
	Info(msg string, args ...any)
}

// Info is what the advertisement announces.
type Info struct {
	Port     int
	SiteID   string
	Version  string
	APIPath  string
	WSPath   string
	Emulated bool
}

// text encodes info as TXT records.
func (i Info) text() []string {
	apiPath := i.APIPath
	if apiPath == "" {
		apiPath = "/api/v1"
	}
	wsPath := i.WSPath
	if wsPath == "" {
		wsPath = "/ws"
	}

	txt := []string{
		"api=" + apiPath,
		"ws=" + wsPath,
		"emulated=" + strconv.FormatBool(i.Emulated),
	}
	if i.SiteID != "" {
		txt = append(txt, "site="+i.SiteID)
	}
	if i.Version != "" {
		txt = append(txt, "version="+i.Version)
	}
	return txt
}

// server is the part of *zeroconf.Server the advertiser drives.
type server interface {
	SetText(text []string)
	Shutdown()
}

// registerFunc matches zeroconf.Register with the server narrowed to the
// server interface.
type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
}

// Advertiser publishes one mDNS service record for the API.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Advertiser struct {
	instance string
	service  string
	domain   string
	logger   Logger
	register registerFunc

	mu     sync.Mutex
	server server
}

// New creates an advertiser from configuration. Empty fields fall back to
// the defaults.
func New(cfg config.DiscoveryConfig, logger Logger) *Advertiser {
	a := &Advertiser{
		instance: cfg.Instance,
		service:  cfg.Service,
		domain:   cfg.Domain,
		logger:   logger,
		register: zeroconfRegister,
	}
	if a.instance == "" {
		a.instance = defaultInstance
	}
	if a.service == "" {
		a.service = DefaultService
	}
	if a.domain == "" {
		a.domain = DefaultDomain
	}
	if a.logger == nil {
		a.logger = noopLogger{}
	}
	return a
}

// Start registers the service on all multicast interfaces, replacing any
// previous registration.
//
// Returns:
//   - error: ErrInvalidPort, or the registration failure
func (a *Advertiser) Start(info Info) error {
	if info.Port < 1 || info.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, info.Port)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	srv, err := a.register(a.instance, a.service, a.domain, info.Port, info.text(), nil, zeroconf.TTL(defaultTTL))
	if err != nil {
		return fmt.Errorf("registering %s: %w", a.service, err)
	}
	a.server = srv

	a.logger.Info("mdns advertisement started",
		"instance", a.instance,
		"service", a.service,
		"port", info.Port,
	)
	return nil
}

// Update replaces the TXT records of the running advertisement.
func (a *Advertiser) Update(info Info) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotRunning
	}
	a.server.SetText(info.text())
	return nil
}

// Stop withdraws the advertisement. Safe to call when not running.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.logger.Info("mdns advertisement stopped", "service", a.service)
}

// IsRunning reports whether the service is currently advertised.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
