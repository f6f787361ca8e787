// Package endpoint wraps one byte-oriented file descriptor plus its
// wait/read/write policy, the unit a Relay pumps bytes through.
package endpoint

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// WaitResult is the outcome of waiting on an endpoint's data fd together
// with a relay's control fd.
type WaitResult int

const (
	WaitIoReady WaitResult = iota
	WaitControlPending
	WaitBoth
	WaitTimeout
	WaitError
)

func (w WaitResult) String() string {
	switch w {
	case WaitIoReady:
		return "IoReady"
	case WaitControlPending:
		return "ControlPending"
	case WaitBoth:
		return "Both"
	case WaitTimeout:
		return "Timeout"
	case WaitError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ErrClosed reports operations attempted on a closed endpoint.
var ErrClosed = errors.New("endpoint: closed")

// Endpoint is one non-blocking file descriptor plus the semantics a
// Relay needs: wait for readiness alongside a cancellation fd, read,
// write. Stream() reports whether partial reads/writes are normal
// (true) or whether one read/write is exactly one message (false).
type Endpoint interface {
	Fd() int
	Stream() bool
	Wait(controlFd int, timeout time.Duration) (WaitResult, error)
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Close() error
}

// Wait polls ioFd for readability and controlFd for any pending byte,
// per §4.B: if both are ready, ControlPending semantics take priority so
// cancellation is prompt. A POLLERR/POLLHUP on ioFd yields WaitError.
func Wait(ioFd, controlFd int, timeout time.Duration) (WaitResult, error) {
	fds := []unix.PollFd{
		{Fd: int32(ioFd), Events: unix.POLLIN}, //nolint:gosec
	}
	if controlFd >= 0 {
		fds = append(fds, unix.PollFd{Fd: int32(controlFd), Events: unix.POLLIN}) //nolint:gosec
	}

	ms := int(timeout.Milliseconds())
	if timeout < 0 {
		ms = -1
	}

	n, err := unix.Poll(fds, ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return WaitTimeout, nil
		}

		return WaitError, err
	}

	if n == 0 {
		return WaitTimeout, nil
	}

	ioRevents := fds[0].Revents
	if ioRevents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return WaitError, nil
	}

	ioReady := ioRevents&unix.POLLIN != 0
	controlReady := false

	if len(fds) > 1 {
		controlReady = fds[1].Revents&unix.POLLIN != 0
	}

	switch {
	case controlReady && ioReady:
		return WaitBoth, nil
	case controlReady:
		return WaitControlPending, nil
	case ioReady:
		return WaitIoReady, nil
	default:
		return WaitTimeout, nil
	}
}

// ReadNonBlocking reads from fd, translating EAGAIN/EWOULDBLOCK to
// (0, nil) so callers can treat a spurious wake uniformly.
func ReadNonBlocking(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, nil
		}

		return 0, err
	}

	return n, nil
}

// WriteNonBlocking writes to fd, translating EAGAIN/EWOULDBLOCK to
// (0, nil).
func WriteNonBlocking(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, nil
		}

		return 0, err
	}

	return n, nil
}
