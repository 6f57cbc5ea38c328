package influxdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/config"
)

// =============================================================================
// Test Helpers
// =============================================================================

// fakeWriter records points instead of sending them.
type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, p)
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func newTestClient(site string) (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{points: w, site: site, open: true}, w
}

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func fields(p *write.Point) map[string]any {
	out := make(map[string]any)
	for _, field := range p.FieldList() {
		out[field.Key] = field.Value
	}
	return out
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	client, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false}, "site")
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned a client when disabled")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Token:   "token",
		Org:     "graylogic",
		Bucket:  "gpio",
	}, "site")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() on nil client = true")
	}
}

func TestCloseFlushesOnce(t *testing.T) {
	c, w := newTestClient("site")

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}

	c.Flush()
	if w.flushes != 1 {
		t.Errorf("Flush() after Close flushed")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Transition Tests
// =============================================================================

func TestWriteTransition(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		site       string
		transition gpio.Transition
		wantTags   map[string]string
		wantState  int64
	}{
		{
			name:       "rising hardware input",
			site:       "garage",
			transition: gpio.Transition{Pin: 11, Mode: gpio.Input, State: true, Edge: gpio.Rising, Source: gpio.SourceHardware, At: at},
			wantTags:   map[string]string{"site": "garage", "pin": "11", "mode": "input", "source": "hardware", "edge": "rising"},
			wantState:  1,
		},
		{
			name:       "falling remote output without site",
			transition: gpio.Transition{Pin: 12, Mode: gpio.Output, State: false, Edge: gpio.Falling, Source: gpio.SourceRemote, At: at},
			wantTags:   map[string]string{"pin": "12", "mode": "output", "source": "remote", "edge": "falling"},
			wantState:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestClient(tt.site)

			if err := c.WriteTransition(tt.transition); err != nil {
				t.Fatalf("WriteTransition() error = %v", err)
			}
			if len(w.points) != 1 {
				t.Fatalf("points = %d, want 1", len(w.points))
			}

			p := w.points[0]
			if p.Name() != MeasurementTransitions {
				t.Errorf("measurement = %q, want %q", p.Name(), MeasurementTransitions)
			}
			got := tags(p)
			if len(got) != len(tt.wantTags) {
				t.Errorf("tags = %v, want %v", got, tt.wantTags)
			}
			for k, v := range tt.wantTags {
				if got[k] != v {
					t.Errorf("tag %s = %q, want %q", k, got[k], v)
				}
			}

			f := fields(p)
			if f["state"] != tt.wantState {
				t.Errorf("state field = %v, want %d", f["state"], tt.wantState)
			}
			if f["level"] != tt.transition.State {
				t.Errorf("level field = %v, want %v", f["level"], tt.transition.State)
			}
			if !p.Time().Equal(at) {
				t.Errorf("time = %v, want %v", p.Time(), at)
			}
		})
	}
}

func TestWriteTransition_Rejects(t *testing.T) {
	c, w := newTestClient("site")

	err := c.WriteTransition(gpio.Transition{Pin: 11, Mode: gpio.Input, Edge: gpio.Unknown})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("WriteTransition(unknown edge) error = %v, want ErrInvalidTransition", err)
	}

	c.Close()
	err = c.WriteTransition(gpio.Transition{Pin: 11, Mode: gpio.Input, Edge: gpio.Rising})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("WriteTransition() after Close error = %v, want ErrNotConnected", err)
	}
	if len(w.points) != 0 {
		t.Errorf("points = %d, want 0", len(w.points))
	}
}

func TestObserveReportsErrors(t *testing.T) {
	c, _ := newTestClient("site")

	var got error
	c.SetOnError(func(err error) { got = err })

	c.Observe(gpio.Transition{Pin: 11, Edge: gpio.Unknown})
	if !errors.Is(got, ErrInvalidTransition) {
		t.Errorf("onError got %v, want ErrInvalidTransition", got)
	}
}

func TestObserveFromRuntime(t *testing.T) {
	c, w := newTestClient("site")

	rt := gpio.NewRuntime(gpio.Options{})
	defer rt.Close()
	unsubscribe := rt.Subscribe(c.Observe)
	defer unsubscribe()

	out, err := rt.SetOutput(20)
	if err != nil {
		t.Fatalf("SetOutput() error = %v", err)
	}
	out.On(0, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		w.mu.Lock()
		n := len(w.points)
		w.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("points = %d, want 1", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if got := tags(w.points[0]); got["source"] != "local" || got["pin"] != "20" {
		t.Errorf("tags = %v, want local pin 20", got)
	}
}
