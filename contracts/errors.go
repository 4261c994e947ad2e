package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedCommand is returned for bodies that are not a valid command envelope
	ErrMalformedCommand = errors.New("contracts: malformed command")
	// ErrUnknownAPI is returned when the envelope names an api outside the command set
	ErrUnknownAPI = errors.New("contracts: unknown api")
)

// CommandError describes why a command body was refused
type CommandError struct {
	API    string // api named by the envelope, empty if it could not be read
	Field  string // offending field path, e.g. "payload.params.to"
	Reason string // human readable reason
	Err    error  // ErrMalformedCommand or ErrUnknownAPI
}

func (e *CommandError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return fmt.Sprintf("%v: %s %s", e.Err, e.Field, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func malformed(api, field, reason string) error {
	return &CommandError{API: api, Field: field, Reason: reason, Err: ErrMalformedCommand}
}
