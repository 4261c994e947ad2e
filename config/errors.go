package config

import (
	"errors"
	"fmt"
)

// ErrInvalidValue is wrapped by range validation failures
var ErrInvalidValue = errors.New("config: invalid value")

// Error reports a configuration that could not be loaded
type Error struct {
	Op   string // decode, stat, environment or validate
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
