package domain

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a sweep or campaign is triggered while one is
// already running.
var ErrBusy = errors.New("operation already running")

// TransportError wraps any platform call failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError wraps a KeyValueStore failure.
type PersistenceError struct {
	Op  string // "load" or "save"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError reports malformed command arguments. Usage is shown to the
// invoking user.
type ValidationError struct {
	Reason string
	Usage  string
}

func (e *ValidationError) Error() string {
	if e.Usage == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s (usage: %s)", e.Reason, e.Usage)
}

// PolicyViolation is returned when a non-admin invokes a privileged command.
type PolicyViolation struct {
	Command string
	Actor   string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("%s is not allowed to run %s", e.Actor, e.Command)
}
