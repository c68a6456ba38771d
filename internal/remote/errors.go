package remote

import (
	"errors"
	"fmt"
)

// TransportError wraps a network-level failure: the request never reached
// the cloud store, or no usable response came back. Records hit by a
// transport error were not attempted and the rest of the batch should be
// skipped until the next pass.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError reports that the cloud store received the request and
// refused it: malformed payload, validation failure, or an HTTP 4xx. The
// record counts as attempted and failed; the batch continues.
type RejectedError struct {
	Op     string
	Status int
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s: rejected (status %d): %s", e.Op, e.Status, e.Reason)
	}
	return fmt.Sprintf("remote %s: rejected: %s", e.Op, e.Reason)
}

// IsTransport reports whether err is (or wraps) a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRejected reports whether err is (or wraps) a data-level rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}
