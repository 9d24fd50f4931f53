package sim

import "errors"

// Sentinel errors for the simulation engine.
var (
	ErrUnknownSession      = errors.New("unknown session")
	ErrSessionClosed       = errors.New("session is disconnected")
	ErrCommandQueueFull    = errors.New("command queue full")
	ErrInstanceUnavailable = errors.New("instance unavailable")
	ErrNoStartingMap       = errors.New("starting map has no template")
	ErrNotGear             = errors.New("item cannot be equipped there")
)
