package mqttobserver

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-gpio/internal/observer"
	"github.com/nerrad567/gray-logic-gpio/internal/wire"
)

// MQTTClient is the subset of *mqtt.Client the observer needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger is the logging surface used by the observer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures an Observer.
type Options struct {
	Client MQTTClient

	// Topics defaults to mqtt.NewTopics("").
	Topics mqtt.Topics

	// Codec defaults to wire.JSON.
	Codec wire.Codec

	QoS    byte
	Logger Logger
}

// Observer publishes pin announcements and feeds broker commands into the
// runtime.
type Observer struct {
	client MQTTClient
	topics mqtt.Topics
	codec  wire.Codec
	qos    byte
	logger Logger

	mu      sync.RWMutex
	handler gpio.ReportHandler

	ctx     context.Context
	cancel  context.CancelFunc
	running bool

	// lanes keeps each pin's commands in arrival order.
	lanes observer.Lanes
}

// New creates an observer. Call Start to subscribe to commands.
func New(opts Options) (*Observer, error) {
	if opts.Client == nil {
		return nil, ErrNoClient
	}
	if opts.Topics.Prefix() == "" {
		opts.Topics = mqtt.NewTopics("")
	}
	if opts.Codec == nil {
		opts.Codec = wire.JSON
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	return &Observer{
		client: opts.Client,
		topics: opts.Topics,
		codec:  opts.Codec,
		qos:    opts.QoS,
		logger: opts.Logger,
	}, nil
}

// Observers returns the pack to hand to gpio.Runtime.SetObservers.
func (o *Observer) Observers() gpio.Observers {
	return gpio.Observers{Send: o.send, Receive: o.receive}
}

// Start subscribes to every pin's command topic.
func (o *Observer) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return nil
	}

	o.ctx, o.cancel = context.WithCancel(ctx)
	if err := o.client.Subscribe(o.topics.AllCommands(), o.qos, o.handleMessage); err != nil {
		o.cancel()
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	o.running = true

	o.logger.Info("mqtt observer started", "commands", o.topics.AllCommands(), "codec", o.codec.Name())
	return nil
}

// Stop unsubscribes and waits for in-flight commands to finish.
func (o *Observer) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	cancel := o.cancel
	o.mu.Unlock()

	err := o.client.Unsubscribe(o.topics.AllCommands())
	cancel()
	o.lanes.Wait()

	if err != nil {
		return fmt.Errorf("unsubscribing from commands: %w", err)
	}
	return nil
}

// send publishes a retained state message for the announced pin.
func (o *Observer) send(_ context.Context, a gpio.Announcement) error {
	payload, err := o.codec.Marshal(wire.FromAnnouncement(a))
	if err != nil {
		return fmt.Errorf("encoding announcement for pin %d: %w", a.Pin, err)
	}
	return o.client.Publish(o.topics.State(a.Pin), payload, o.qos, true)
}

func (o *Observer) receive(handler gpio.ReportHandler) {
	o.mu.Lock()
	o.handler = handler
	o.mu.Unlock()
}

// handleMessage runs on the MQTT delivery goroutine. The runtime may take
// up to its stale timeout to answer, so commands are queued on the pin's
// lane: one pin's commands apply and ack in arrival order without holding
// up other pins.
func (o *Observer) handleMessage(topic string, payload []byte) error {
	pin, err := o.topics.PinFromTopic(topic)
	if err != nil {
		return err
	}

	var cmd wire.Command
	decodeErr := o.codec.Unmarshal(payload, &cmd)

	// Submit happens under the lock so Stop cannot be waiting already.
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.running {
		return decodeErr
	}
	ctx, handler := o.ctx, o.handler
	o.lanes.Submit(pin, func() {
		if decodeErr != nil {
			o.ack(wire.NewAck("", pin, gpio.Unknown, decodeErr))
			return
		}
		o.handleCommand(ctx, handler, pin, cmd)
	})
	return decodeErr
}

func (o *Observer) handleCommand(ctx context.Context, handler gpio.ReportHandler, pin int, cmd wire.Command) {
	o.logger.Debug("received command", "pin", pin, "command_id", cmd.ID, "state", cmd.State, "mode", cmd.Mode)

	if handler == nil {
		o.ack(wire.NewAck(cmd.ID, pin, gpio.Unknown, ErrNoHandler))
		return
	}

	report, err := cmd.Report(pin)
	if err != nil {
		o.ack(wire.NewAck(cmd.ID, pin, gpio.Unknown, err))
		return
	}

	edge, err := handler(ctx, report)
	if err != nil {
		o.logger.Warn("command not applied", "pin", pin, "command_id", cmd.ID, "error", err)
	}
	o.ack(wire.NewAck(cmd.ID, pin, edge, err))
}

func (o *Observer) ack(a wire.Ack) {
	payload, err := o.codec.Marshal(a)
	if err != nil {
		o.logger.Error("encoding ack", "pin", a.Pin, "error", err)
		return
	}
	if err := o.client.Publish(o.topics.Ack(a.Pin), payload, o.qos, false); err != nil {
		o.logger.Warn("publishing ack", "pin", a.Pin, "command_id", a.ID, "error", err)
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
