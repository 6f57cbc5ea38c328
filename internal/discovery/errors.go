package discovery

import "errors"

// Sentinel errors for discovery.
var (
	// ErrInvalidPort is returned for ports outside 1..65535.
	ErrInvalidPort = errors.New("discovery: invalid port")

	// ErrNotRunning is returned by Update before Start.
	ErrNotRunning = errors.New("discovery: not advertising")
)
