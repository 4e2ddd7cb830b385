package flash

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey indicates a required board property is absent.
	ErrMissingKey = errors.New("missing property")
	// ErrUnknownBoard indicates the boards file has no entry for the board.
	ErrUnknownBoard = errors.New("unknown board")
)

// ConfigError reports a board profile which can't be used for uploading.
type ConfigError struct {
	Board string
	Key   string
	Err   error
}

// Error implements error.
func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("board %s: %v", e.Board, e.Err)
	}
	return fmt.Sprintf("board %s: %s: %v", e.Board, e.Key, e.Err)
}

// Unwrap returns the cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ImageTooLargeError is returned when the image exceeds the board capacity.
// The programmer is not invoked in this case.
type ImageTooLargeError struct {
	Size    int
	MaxSize int
}

// Error implements error.
func (e *ImageTooLargeError) Error() string {
	return fmt.Sprintf("program size %d bytes exceeds maximum %d bytes", e.Size, e.MaxSize)
}

// FlashFailedError is returned when the programmer fails. Output holds
// everything the programmer printed.
type FlashFailedError struct {
	Output string
	Err    error
}

// Error implements error.
func (e *FlashFailedError) Error() string {
	if e.Err != nil {
		return "programmer failed: " + e.Err.Error()
	}
	return "programmer reported errors"
}

// Unwrap returns the cause.
func (e *FlashFailedError) Unwrap() error {
	return e.Err
}
