package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/config"
)

// Logger receives connection events and handler failures.
// *logging.Logger and *slog.Logger both satisfy it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler processes one inbound message. It runs on paho's
// delivery goroutine. Errors are logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// Client is a broker session for the GPIO service. It keeps the set of
// active subscriptions so they survive reconnects, and maintains a
// retained online/offline record on the status topic.
//
// A Client is safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	subs   *subscriptionSet

	mu           sync.RWMutex
	online       bool
	logger       Logger
	onConnect    func()
	onDisconnect func(err error)
}

// Connect dials the broker described by cfg and blocks until the first
// CONNACK or defaultConnectTimeout. The broker is told to publish an
// offline status if the session drops without Close.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log(func(l Logger) { l.Info("reconnecting to broker", "broker", brokerURL(cfg.Broker)) })
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// OnConnect fires on its own goroutine; publishing is allowed as soon
	// as Connect returns.
	c.setOnline(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:    cfg,
		topics: NewTopics(cfg.TopicPrefix),
		subs:   newSubscriptionSet(),
	}
}

// Topics returns the topic layout for the configured prefix.
func (c *Client) Topics() Topics { return c.topics }

// QoS returns the configured default QoS.
func (c *Client) QoS() byte { return byte(c.cfg.QoS) }

// IsConnected reports whether the session is currently usable.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	online := c.online
	c.mu.RUnlock()
	return online && c.paho != nil && c.paho.IsConnected()
}

// HealthCheck returns ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close marks the service offline and disconnects. A client that never
// connected closes without error.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.paho.Publish(c.topics.Status(), c.QoS(), true,
			buildStatusPayload(statusOffline, c.cfg.Broker.ClientID, "graceful_shutdown")).
			WaitTimeout(defaultPublishTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.setOnline(false)
	return nil
}

// SetLogger installs the logger used for connection events.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// SetOnConnect registers fn to run after the initial connect and after
// each reconnect, once subscriptions have been restored.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers fn to run when the session is lost.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

func (c *Client) connected() {
	c.setOnline(true)
	for _, s := range c.subs.all() {
		c.paho.Subscribe(s.topic, s.qos, c.deliver(s.handler))
	}
	c.paho.Publish(c.topics.Status(), c.QoS(), true,
		buildStatusPayload(statusOnline, c.cfg.Broker.ClientID, ""))

	c.mu.RLock()
	fn := c.onConnect
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) lost(err error) {
	c.setOnline(false)
	c.log(func(l Logger) { l.Warn("broker connection lost", "error", err) })

	c.mu.RLock()
	fn := c.onDisconnect
	c.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (c *Client) setOnline(v bool) {
	c.mu.Lock()
	c.online = v
	c.mu.Unlock()
}

// log calls fn with the current logger, if one is set.
func (c *Client) log(fn func(Logger)) {
	c.mu.RLock()
	l := c.logger
	c.mu.RUnlock()
	if l != nil {
		fn(l)
	}
}

func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(handler, msg.Topic(), msg.Payload())
	}
}

// dispatch runs handler, logging a returned error or a recovered panic.
func (c *Client) dispatch(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log(func(l Logger) { l.Error("message handler panic", "topic", topic, "panic", r) })
		}
	}()
	if err := handler(topic, payload); err != nil {
		c.log(func(l Logger) { l.Warn("message handler failed", "topic", topic, "error", err) })
	}
}

// await waits for tok and wraps a timeout or broker error in sentinel.
func await(tok pahomqtt.Token, timeout time.Duration, sentinel error) error {
	if !tok.WaitTimeout(timeout) {
		return fmt.Errorf("%w: no response within %v", sentinel, timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
