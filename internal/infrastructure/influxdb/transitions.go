package influxdb

import (
	"fmt"
	"strconv"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

// MeasurementTransitions is the measurement every transition is written to.
const MeasurementTransitions = "gpio_transitions"

// pointWriter is the subset of api.WriteAPI used for writing.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// WriteTransition queues one gpio_transitions point for t.
//
// The point is tagged with site, pin, mode, source and edge, and carries the
// new level both as an integer "state" (0/1, for graphing) and a boolean
// "level". A zero At is stamped by the server on arrival.
//
// Returns:
//   - error: ErrNotConnected after Close, ErrInvalidTransition when t has no
//     rising or falling edge
func (c *Client) WriteTransition(t gpio.Transition) error {
	if !c.IsConnected() || c.points == nil {
		return ErrNotConnected
	}
	if t.Edge != gpio.Rising && t.Edge != gpio.Falling {
		return fmt.Errorf("%w: pin %d edge %s", ErrInvalidTransition, t.Pin, t.Edge)
	}

	c.points.WritePoint(transitionPoint(c.site, t))
	return nil
}

// Observe writes t and reports failures through the error callback. Its
// signature matches Runtime.Subscribe.
func (c *Client) Observe(t gpio.Transition) {
	if err := c.WriteTransition(t); err != nil {
		c.reportError(err)
	}
}

func transitionPoint(site string, t gpio.Transition) *write.Point {
	state := int64(0)
	if t.State {
		state = 1
	}

	p := write.NewPointWithMeasurement(MeasurementTransitions).
		AddTag("pin", strconv.Itoa(t.Pin)).
		AddTag("mode", t.Mode.String()).
		AddTag("source", t.Source.String()).
		AddTag("edge", t.Edge.String()).
		AddField("state", state).
		AddField("level", t.State)
	if site != "" {
		p.AddTag("site", site)
	}
	if !t.At.IsZero() {
		p.SetTime(t.At)
	}
	return p
}
