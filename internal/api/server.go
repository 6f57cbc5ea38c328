package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
	"github.com/nerrad567/gray-logic-gpio/internal/history"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HistoryReader reads recorded transitions. *history.SQLiteRepository
// satisfies it.
type HistoryReader interface {
	List(ctx context.Context, pin int, limit int) ([]history.Entry, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Runtime *gpio.Runtime

	// History is optional; without it the history endpoint answers 503.
	History HistoryReader

	Version string
}

// Server exposes the runtime over REST and a websocket. It is an
// observer pack: install Observers() on the runtime before Start.
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	runtime *gpio.Runtime
	history HistoryReader
	version string
	hub     *Hub

	mu       sync.RWMutex
	handler  gpio.ReportHandler
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New builds a server that does not listen until Start.
//
// Parameters:
//   - deps: Runtime is required; Logger defaults to logging.Default()
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: ErrNoRuntime if the runtime is missing
func New(deps Deps) (*Server, error) {
	if deps.Runtime == nil {
		return nil, ErrNoRuntime
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.WS.Path == "" {
		deps.WS.Path = "/ws"
	}

	s := &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		runtime: deps.Runtime,
		history: deps.History,
		version: deps.Version,
	}
	s.hub = NewHub(deps.WS, deps.Logger, s.report)
	return s, nil
}

// Observers returns the pack to hand to gpio.Runtime.SetObservers.
// Announcements are broadcast to WebSocket clients; the receive handler
// serves both pin:toggle and POST /state.
func (s *Server) Observers() gpio.Observers {
	return gpio.Observers{Send: s.send, Receive: s.receive}
}

func (s *Server) send(_ context.Context, a gpio.Announcement) error {
	return s.hub.Announce(a)
}

func (s *Server) receive(handler gpio.ReportHandler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// report applies r through the installed receive handler.
func (s *Server) report(ctx context.Context, r gpio.Report) (gpio.Edge, error) {
	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()

	if handler == nil {
		return gpio.Unknown, ErrNoHandler
	}
	return handler(ctx, r)
}

// Handler returns the router. Start serves it; tests use it directly.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background.
//
// Parameters:
//   - ctx: Parent context for the WebSocket hub
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener %s: %w", addr, err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.server, s.cancel = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	cancel()

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
