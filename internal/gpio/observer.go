package gpio

import "context"

// Announcement is a pin state pushed to the observer.
// Resistor is Unspecified unless the change came from input hardware.
type Announcement struct {
	Pin      int
	State    bool
	Mode     Mode
	Resistor Resistor
}

// Report is a pin state received from the observer.
type Report struct {
	Pin      int
	State    bool
	Mode     Mode
	Resistor Resistor
}

// SendFunc delivers an announcement to the observer's transport.
type SendFunc func(ctx context.Context, a Announcement) error

// ReportHandler applies a report to the addressed pin and returns the
// resulting edge. Unknown means the report changed nothing or was rejected.
type ReportHandler func(ctx context.Context, r Report) (Edge, error)

// ReceiveFunc is called once with the handler the transport must use for
// every inbound report.
type ReceiveFunc func(handler ReportHandler)

// Observers is the pair of callbacks connecting a runtime to a remote
// party. Either may be nil.
type Observers struct {
	Send    SendFunc
	Receive ReceiveFunc
}
