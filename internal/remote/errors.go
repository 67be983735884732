package remote

import (
	"errors"
	"fmt"
)

// ErrPrecondition marks a call the client refused to send because a local
// precondition did not hold (empty scan path, upload before generate).
var ErrPrecondition = errors.New("precondition violation")

// PreconditionViolation returns an error wrapping ErrPrecondition.
func PreconditionViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// TransportError is returned when the request never produced a usable
// response: network failure, timeout, or a body that could not be decoded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RequestRejected is returned for any non-2xx response.
type RequestRejected struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RequestRejected) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: rejected with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: rejected with status %d: %s", e.Op, e.StatusCode, e.Message)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRejected reports whether err is or wraps a RequestRejected.
func IsRejected(err error) bool {
	var re *RequestRejected
	return errors.As(err, &re)
}
