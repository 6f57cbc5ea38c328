package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "graylogic/gpio"

// Topic segments under the prefix.
const (
	segmentState   = "state"
	segmentCommand = "command"
	segmentAck     = "ack"
	segmentStatus  = "status"
)

// Topics builds GPIO topic names under a fixed prefix.
//
//	topics := mqtt.NewTopics("graylogic/gpio")
//	topics.State(11)   // "graylogic/gpio/state/11"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix. Leading and trailing slashes are
// trimmed; an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the normalised prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// State returns the retained announcement topic for pin.
func (t Topics) State(pin int) string {
	return t.pinTopic(segmentState, pin)
}

// Command returns the inbound report topic for pin.
func (t Topics) Command(pin int) string {
	return t.pinTopic(segmentCommand, pin)
}

// Ack returns the reply topic for commands on pin.
func (t Topics) Ack(pin int) string {
	return t.pinTopic(segmentAck, pin)
}

// Status returns the service status topic used for online/offline and LWT.
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s", t.prefix, segmentStatus)
}

// AllCommands returns a pattern matching every pin's command topic.
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/%s/+", t.prefix, segmentCommand)
}

// AllStates returns a pattern matching every pin's state topic.
func (t Topics) AllStates() string {
	return fmt.Sprintf("%s/%s/+", t.prefix, segmentState)
}

// PinFromTopic extracts the pin number from a state, command or ack topic
// under this prefix.
func (t Topics) PinFromTopic(topic string) (int, error) {
	rest, ok := strings.CutPrefix(topic, t.prefix+"/")
	if !ok {
		return 0, fmt.Errorf("%w: %q outside prefix %q", ErrInvalidTopic, topic, t.prefix)
	}

	segment, last, ok := strings.Cut(rest, "/")
	if !ok || strings.Contains(last, "/") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	switch segment {
	case segmentState, segmentCommand, segmentAck:
	default:
		return 0, fmt.Errorf("%w: unknown segment %q", ErrInvalidTopic, segment)
	}

	pin, err := strconv.Atoi(last)
	if err != nil || pin <= 0 {
		return 0, fmt.Errorf("%w: bad pin %q", ErrInvalidTopic, last)
	}
	return pin, nil
}

func (t Topics) pinTopic(segment string, pin int) string {
	return fmt.Sprintf("%s/%s/%d", t.prefix, segment, pin)
}
