package client

import (
	"errors"
	"net/http"

	"github.com/calib-tools/calib/internal/client"
)

var (
	// ErrDaemonNotRunning is returned when the daemon is not running
	ErrDaemonNotRunning = client.ErrDaemonNotRunning

	// ErrPermissionDenied is returned when the user does not have permission to perform the requested action
	ErrPermissionDenied = client.ErrPermissionDenied

	// ErrNotFound is returned when 404 is returned from the daemon
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the daemon already has a point with the same reference value
	ErrConflict = errors.New("conflict")

	// ErrBadRequest is returned for invalid values, points or channel names
	ErrBadRequest = errors.New("bad request")

	// ErrUnprocessable is returned when the calibration cannot produce a value
	ErrUnprocessable = errors.New("cannot adjust value")
)

// translate maps daemon status codes to the errors above, keeping the
// daemon's message.
func translate(err error) error {
	var se *client.StatusError
	if !errors.As(err, &se) {
		return err
	}

	var sentinel error
	switch se.Code {
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusConflict:
		sentinel = ErrConflict
	case http.StatusBadRequest:
		sentinel = ErrBadRequest
	case http.StatusUnprocessableEntity:
		sentinel = ErrUnprocessable
	default:
		return err
	}
	return &daemonError{sentinel: sentinel, msg: se.Message}
}

// daemonError carries the daemon's message and matches a sentinel with
// errors.Is.
type daemonError struct {
	sentinel error
	msg      string
}

func (e *daemonError) Error() string { return e.msg }

func (e *daemonError) Unwrap() error { return e.sentinel }
