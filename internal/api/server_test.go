package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
	"github.com/nerrad567/gray-logic-gpio/internal/history"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/logging"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
}

// fakeHistory is an in-memory HistoryReader.
type fakeHistory struct {
	entries   []history.Entry
	err       error
	lastPin   int
	lastLimit int
}

func (f *fakeHistory) List(_ context.Context, pin int, limit int) ([]history.Entry, error) {
	f.lastPin, f.lastLimit = pin, limit
	return f.entries, f.err
}

type testEnv struct {
	rt  *gpio.Runtime
	srv *Server
	ts  *httptest.Server
}

// newTestEnv starts an emulated runtime with input 11 and output 12 and
// serves the API over httptest. attach controls whether the server's
// observer pack is installed.
func newTestEnv(t *testing.T, hist HistoryReader, attach bool) *testEnv {
	t.Helper()

	rt := gpio.NewRuntime(gpio.Options{StaleTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { rt.Close() }) //nolint:errcheck // Test cleanup

	if _, err := rt.SetInput(11); err != nil {
		t.Fatalf("SetInput() error = %v", err)
	}
	if _, err := rt.SetOutput(12); err != nil {
		t.Fatalf("SetOutput() error = %v", err)
	}

	srv, err := New(Deps{
		WS:      config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger:  testLogger(),
		Runtime: rt,
		History: hist,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if attach {
		rt.SetObservers(srv.Observers())
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{rt: rt, srv: srv, ts: ts}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding %s %s response: %v", method, path, err)
	}
	return resp, out
}

// =============================================================================
// Construction & Lifecycle
// =============================================================================

func TestNew_RequiresRuntime(t *testing.T) {
	if _, err := New(Deps{}); !errors.Is(err, ErrNoRuntime) {
		t.Errorf("New() error = %v, want ErrNoRuntime", err)
	}
}

func TestStartAndClose(t *testing.T) {
	rt := gpio.NewRuntime(gpio.Options{})
	defer rt.Close()

	srv, err := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 0, Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5}},
		Logger:  testLogger(),
		Runtime: rt,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start succeeded")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	rt := gpio.NewRuntime(gpio.Options{})
	defer rt.Close()

	srv, _ := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port},
		Logger:  testLogger(),
		Runtime: rt,
	})
	if err := srv.Start(context.Background()); err == nil {
		srv.Close()
		t.Error("Start() on a bound port succeeded")
	}
}

// =============================================================================
// Health
// =============================================================================

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, true)

	resp, body := env.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	if body["pins"] != float64(2) {
		t.Errorf("pins = %v, want 2", body["pins"])
	}
	if body["attached"] != true || body["emulated"] != true {
		t.Errorf("attached/emulated = %v/%v, want true/true", body["attached"], body["emulated"])
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}
