package mqtt

import (
	"fmt"
	"sync"
)

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// subscriptionSet remembers what to resubscribe after a reconnect.
type subscriptionSet struct {
	mu     sync.RWMutex
	byName map[string]subscription
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{byName: make(map[string]subscription)}
}

func (s *subscriptionSet) put(sub subscription) {
	s.mu.Lock()
	s.byName[sub.topic] = sub
	s.mu.Unlock()
}

func (s *subscriptionSet) remove(topic string) {
	s.mu.Lock()
	delete(s.byName, topic)
	s.mu.Unlock()
}

func (s *subscriptionSet) has(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byName[topic]
	return ok
}

func (s *subscriptionSet) all() []subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]subscription, 0, len(s.byName))
	for _, sub := range s.byName {
		out = append(out, sub)
	}
	return out
}

// Subscribe delivers messages matching topic, which may use the + and #
// wildcards, to handler. The subscription is replayed on reconnect.
//
// Parameters:
//   - topic: filter such as Topics.AllCommands()
//   - qos: highest QoS the broker should deliver at
//   - handler: called once per message
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.subs.put(subscription{topic: topic, qos: qos, handler: handler})
	if err := await(c.paho.Subscribe(topic, qos, c.deliver(handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		c.subs.remove(topic)
		return err
	}
	return nil
}

// Unsubscribe stops delivery for topic and forgets it for reconnects.
// A message already being dispatched may still reach its handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subs.remove(topic)
	return await(c.paho.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}

// SubscriptionCount returns how many filters are remembered.
func (c *Client) SubscriptionCount() int {
	return len(c.subs.all())
}

// HasSubscription reports whether exactly topic is remembered.
func (c *Client) HasSubscription(topic string) bool {
	return c.subs.has(topic)
}
