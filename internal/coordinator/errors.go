package coordinator

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned by MessageSubmitted for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrInputDisabled is returned by MessageSubmitted when no session
	// connection is open.
	ErrInputDisabled = errors.New("input disabled: no open session connection")
	// ErrNoActiveSession is returned when an operation needs an active session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrNotCompiled is returned when chat is requested in the studio flavor
	// before a successful compile.
	ErrNotCompiled = errors.New("workflow has not been compiled")
	// ErrUnsupported is returned for session operations in the studio flavor.
	ErrUnsupported = errors.New("not supported by the studio flavor")
)

// TransportError reports a failed connect or send.
type TransportError struct {
	Op  string // "connect" or "send"
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// reportedError marks a failure that already produced a log entry.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// Reported reports whether err has already been shown to the user as a log
// entry, so callers printing errors can skip it.
func Reported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}
