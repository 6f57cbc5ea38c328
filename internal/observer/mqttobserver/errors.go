package mqttobserver

import "errors"

var (
	// ErrNoClient is returned by New when Options.Client is nil.
	ErrNoClient = errors.New("mqttobserver: client is required")

	// ErrNoHandler is reported in acks for commands received before a
	// runtime registered its handler.
	ErrNoHandler = errors.New("mqttobserver: no runtime attached")
)
