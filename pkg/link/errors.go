package link

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates no complete line arrived within the read timeout.
	// This is the quiescence signal, not a failure.
	ErrTimeout = errors.New("read timeout")
	// ErrClosed indicates the link has been closed.
	ErrClosed = errors.New("link closed")
)

// LinkError reports a serial port which cannot be opened.
type LinkError struct {
	Port string
	Err  error
}

// Error implements error.
func (e *LinkError) Error() string {
	return fmt.Sprintf("open serial port %s: %v", e.Port, e.Err)
}

// Unwrap returns the underlying error.
func (e *LinkError) Unwrap() error {
	return e.Err
}
