package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrBackendStatus marks a collaborator reply with a non-success status code.
var ErrBackendStatus = errors.New("unexpected backend status")

// BackendError describes a failed call to an external collaborator.
// Callers treat any BackendError as "source unavailable for this request".
type BackendError struct {
	Backend    string
	Op         string
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Backend, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError wraps err as a BackendError.
func NewBackendError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Op: op, Err: err}
}

// IsTimeout reports whether err was caused by a deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// FailureKind returns a short label for logging a collaborator failure.
func FailureKind(err error) string {
	var be *BackendError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case IsTimeout(err):
		return "timeout"
	case errors.As(err, &be) && be.StatusCode != 0:
		return "status"
	case errors.As(err, &be):
		return "unavailable"
	default:
		return "internal"
	}
}

// IsUnavailable reports whether err is a collaborator failure that should make
// the caller skip the source for this request.
func IsUnavailable(err error) bool {
	var be *BackendError
	return errors.As(err, &be) || IsTimeout(err)
}
