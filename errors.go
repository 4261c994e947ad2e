package coolqamq

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned by Start on a bridge that left Uninitialized
	ErrAlreadyStarted = errors.New("bridge already started")

	// ErrNoTransport is returned by Start when no transport was configured
	ErrNoTransport = errors.New("no transport configured")
)

// StartupError is a failed startup stage. The bridge is Failed afterwards.
type StartupError struct {
	Stage string // connect, topology or consume
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("bridge startup failed at %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}
