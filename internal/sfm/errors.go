package sfm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"recomo/internal/services"
)

// RemoteError describes a failed call to the reconstruction service. Network
// failures carry StatusCode 0.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("sfm %s: status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("sfm %s: %s", e.Op, msg)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is matches the remote marker, and the timeout marker for deadline failures.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case services.ErrRemote:
		return true
	case services.ErrTimeout:
		return e.Timeout()
	}
	return false
}

// Timeout reports whether the call failed because a deadline expired.
func (e *RemoteError) Timeout() bool {
	if e.Err == nil {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

func transportError(op string, err error) *RemoteError {
	return &RemoteError{Op: op, Err: err}
}
