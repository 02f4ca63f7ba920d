package core

import (
	"errors"
)

var (
	// ErrQuitRequested signals the run loop to exit cleanly.
	ErrQuitRequested = errors.New("quit requested")
	ErrUnknown       = errors.New("unknown")
)
