package wire

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

// PinState is an announced pin level. It is published retained on the
// pin's state topic and pushed to WebSocket clients.
type PinState struct {
	Pin      int    `json:"pin"`
	State    bool   `json:"state"`
	Mode     string `json:"mode"`
	Resistor string `json:"resistor,omitempty"`
}

// FromAnnouncement converts a runtime announcement.
func FromAnnouncement(a gpio.Announcement) PinState {
	return PinState{
		Pin:      a.Pin,
		State:    a.State,
		Mode:     a.Mode.String(),
		Resistor: a.Resistor.String(),
	}
}

// Command is an inbound report. The pin comes from the topic or URL, so
// it is optional in the body; when present it must agree.
type Command struct {
	ID       string `json:"id,omitempty"`
	Pin      int    `json:"pin,omitempty"`
	State    bool   `json:"state"`
	Mode     string `json:"mode"`
	Resistor string `json:"resistor,omitempty"`
}

// Report converts the command into a runtime report for pin.
func (c Command) Report(pin int) (gpio.Report, error) {
	if c.Pin != 0 && c.Pin != pin {
		return gpio.Report{}, fmt.Errorf("%w: body pin %d does not match %d", ErrInvalidPayload, c.Pin, pin)
	}

	mode, err := gpio.ParseMode(c.Mode)
	if err != nil {
		return gpio.Report{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	resistor, err := gpio.ParseResistor(c.Resistor)
	if err != nil {
		return gpio.Report{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	return gpio.Report{Pin: pin, State: c.State, Mode: mode, Resistor: resistor}, nil
}

// Ack answers a Command. Edge is "unknown" when the report changed
// nothing; Error is set when the report could not be applied.
type Ack struct {
	ID    string `json:"id,omitempty"`
	Pin   int    `json:"pin"`
	Edge  string `json:"edge"`
	Error string `json:"error,omitempty"`
}

// NewAck builds the reply for a handled command.
func NewAck(id string, pin int, edge gpio.Edge, err error) Ack {
	ack := Ack{ID: id, Pin: pin, Edge: edge.String()}
	if err != nil {
		ack.Edge = gpio.Unknown.String()
		ack.Error = err.Error()
	}
	return ack
}

// Transition is a confirmed level change as exposed by the history API.
type Transition struct {
	Pin    int       `json:"pin"`
	Mode   string    `json:"mode"`
	State  bool      `json:"state"`
	Edge   string    `json:"edge"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// FromTransition converts a runtime transition.
func FromTransition(t gpio.Transition) Transition {
	return Transition{
		Pin:    t.Pin,
		Mode:   t.Mode.String(),
		State:  t.State,
		Edge:   t.Edge.String(),
		Source: t.Source.String(),
		At:     t.At,
	}
}
