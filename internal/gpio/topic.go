package gpio

import (
	"fmt"
	"time"
)

// Kind selects which conversation a Topic belongs to.
type Kind int

const (
	// StateReceived carries a report from the observer into a pin.
	StateReceived Kind = iota + 1

	// StateConfirmed carries an edge the pin has accepted to its watchers.
	StateConfirmed
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case StateReceived:
		return "state-received"
	case StateConfirmed:
		return "state-confirmed"
	default:
		return "unknown"
	}
}

// Topic addresses one pin's responder on the runtime bus.
type Topic struct {
	Pin  int
	Kind Kind
}

// String renders the topic as kind[pin] for logs.
func (t Topic) String() string {
	return fmt.Sprintf("%s[%d]", t.Kind, t.Pin)
}

// Message is the payload exchanged on the runtime bus. Which fields are
// meaningful depends on Kind: StateReceived uses State, Mode and Resistor;
// StateConfirmed uses Edge, State and Source.
type Message struct {
	Kind     Kind
	State    bool
	Mode     Mode
	Resistor Resistor
	Edge     Edge
	Source   Source
}

// Transition is a confirmed level change on a live pin.
type Transition struct {
	Pin    int
	Mode   Mode
	State  bool
	Edge   Edge
	Source Source
	At     time.Time
}
