package gpio

import (
	"fmt"
	"strings"
)

// Mode is the direction of a pin. It is fixed at construction.
type Mode int

const (
	// Input pins read their level from hardware or a remote observer.
	Input Mode = iota + 1

	// Output pins drive a level.
	Output
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// ParseMode accepts "input"/"in" and "output"/"out", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input", "in":
		return Input, nil
	case "output", "out":
		return Output, nil
	default:
		return 0, fmt.Errorf("gpio: unknown mode %q", s)
	}
}

// Resistor is the pull configuration of an input pin.
//
// The zero value, Unspecified, is used in announcements and reports that
// carry no resistor information. It never causes a mismatch.
type Resistor int

const (
	// Unspecified means the message carries no resistor.
	Unspecified Resistor = iota
	// NoPull leaves the input floating.
	NoPull
	// PullDown ties the input Low through the internal resistor.
	PullDown
	// PullUp ties the input High through the internal resistor.
	PullUp
)

// String returns the canonical resistor name, or "" for Unspecified.
func (r Resistor) String() string {
	switch r {
	case NoPull:
		return "NoPull"
	case PullDown:
		return "PullDown"
	case PullUp:
		return "PullUp"
	default:
		return ""
	}
}

// ParseResistor accepts the short forms "pu" and "pd" as well as the
// canonical names. The empty string yields Unspecified.
func ParseResistor(s string) (Resistor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Unspecified, nil
	case "pu", "pullup", "up":
		return PullUp, nil
	case "pd", "pulldown", "down":
		return PullDown, nil
	case "nopull", "none", "off":
		return NoPull, nil
	default:
		return Unspecified, fmt.Errorf("gpio: unknown resistor %q", s)
	}
}

// Edge is a level transition. Both is only meaningful as a watch filter;
// Unknown acknowledges a report that did not change anything.
type Edge int

const (
	// Unknown is the edge of a report that changed nothing.
	Unknown Edge = iota
	// Falling is a High to Low transition.
	Falling
	// Rising is a Low to High transition.
	Rising
	// Both matches either transition in a watch filter.
	Both
)

// String returns the lowercase edge name.
func (e Edge) String() string {
	switch e {
	case Falling:
		return "falling"
	case Rising:
		return "rising"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// ParseEdge accepts "rising"/"high", "falling"/"low" and "both".
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising", "high":
		return Rising, nil
	case "falling", "low":
		return Falling, nil
	case "both", "":
		return Both, nil
	default:
		return Unknown, fmt.Errorf("gpio: unknown edge %q", s)
	}
}

// matches reports whether an observed edge passes the filter e.
func (e Edge) matches(observed Edge) bool {
	if observed == Unknown {
		return false
	}
	return e == Both || e == observed
}

// edgeBetween classifies the move from prev to next.
func edgeBetween(prev, next bool) Edge {
	switch {
	case prev == next:
		return Unknown
	case next:
		return Rising
	default:
		return Falling
	}
}

// Scheme is the numbering convention used for pin numbers passed to the
// runtime.
type Scheme int

const (
	// Physical numbers are header positions 1 to 40.
	Physical Scheme = iota

	// Broadcom numbers are BCM GPIO numbers 2 to 27.
	Broadcom
)

// String returns the lowercase scheme name.
func (s Scheme) String() string {
	if s == Broadcom {
		return "broadcom"
	}
	return "physical"
}

// ParseScheme accepts "physical"/"board" and "broadcom"/"bcm".
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "physical", "board":
		return Physical, nil
	case "broadcom", "bcm":
		return Broadcom, nil
	default:
		return Physical, fmt.Errorf("gpio: unknown scheme %q", s)
	}
}

// Source identifies where a confirmed transition originated.
type Source int

const (
	// SourceHardware is a level change reported by the backend.
	SourceHardware Source = iota + 1

	// SourceRemote is a report delivered by the observer.
	SourceRemote

	// SourceLocal is a write issued by this process.
	SourceLocal
)

// String returns the lowercase source name.
func (s Source) String() string {
	switch s {
	case SourceHardware:
		return "hardware"
	case SourceRemote:
		return "remote"
	case SourceLocal:
		return "local"
	default:
		return "unknown"
	}
}

// ParseSource accepts the names produced by Source.String.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hardware":
		return SourceHardware, nil
	case "remote":
		return SourceRemote, nil
	case "local":
		return SourceLocal, nil
	default:
		return 0, fmt.Errorf("gpio: unknown source %q", s)
	}
}
