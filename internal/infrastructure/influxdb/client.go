package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client writes pin transitions to an InfluxDB v2 bucket. Points are
// batched by the underlying non-blocking write API; failed batches are
// passed to the SetOnError callback.
//
// A Client is safe for concurrent use.
type Client struct {
	server influxdb2.Client
	points pointWriter
	site   string

	mu      sync.RWMutex
	open    bool
	onError func(err error)
}

// Connect builds a client for cfg and pings the server before returning.
//
// Parameters:
//   - ctx: bounds the initial ping together with connectTimeout
//   - cfg: server, credentials and batching
//   - site: value of the "site" tag on every point; empty omits the tag
//
// Returns ErrDisabled when cfg.Enabled is false and ErrConnectionFailed
// when the ping fails.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, site string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	server := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := ping(pingCtx, server); err != nil {
		server.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	w := server.WriteAPI(cfg.Org, cfg.Bucket)
	c := &Client{server: server, points: w, site: site, open: true}
	go func() {
		for err := range w.Errors() {
			c.reportError(err)
		}
	}()
	return c, nil
}

func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch, flush := cfg.BatchSize, cfg.FlushInterval
	if batch <= 0 {
		batch = defaultBatchSize
	}
	if flush <= 0 {
		flush = defaultFlushInterval
	}
	// #nosec G115 -- both positive
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(time.Duration(flush) * time.Second / time.Millisecond))
}

func ping(ctx context.Context, server influxdb2.Client) error {
	healthy, err := server.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("ping: server reports unhealthy")
	}
	return nil
}

// SetOnError installs the callback for write failures.
func (c *Client) SetOnError(fn func(err error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

func (c *Client) reportError(err error) {
	c.mu.RLock()
	fn := c.onError
	c.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// IsConnected reports whether the client is still open. A nil client is
// never connected.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() || c.server == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.server); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush pushes buffered points now. It does nothing after Close.
func (c *Client) Flush() {
	if c.IsConnected() && c.points != nil {
		c.points.Flush()
	}
}

// Close flushes what is buffered and releases the client. Later calls,
// and calls on a nil client, return nil.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	wasOpen := c.open
	c.open = false
	c.mu.Unlock()
	if !wasOpen {
		return nil
	}

	if c.points != nil {
		c.points.Flush()
	}
	if c.server != nil {
		c.server.Close()
	}
	return nil
}
