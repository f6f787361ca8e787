package endpoint

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// fdEndpoint is the common base for every concrete Endpoint: a single
// non-blocking fd plus a stream/datagram classification.
type fdEndpoint struct {
	fd       int
	isStream bool

	mu     sync.Mutex
	closed bool
}

func newFdEndpoint(fd int, isStream bool) (*fdEndpoint, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}

	return &fdEndpoint{fd: fd, isStream: isStream}, nil
}

func (e *fdEndpoint) Fd() int { return e.fd }

func (e *fdEndpoint) Stream() bool { return e.isStream }

func (e *fdEndpoint) Wait(controlFd int, timeout time.Duration) (WaitResult, error) {
	return Wait(e.fd, controlFd, timeout)
}

func (e *fdEndpoint) Read(buf []byte) (int, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return 0, ErrClosed
	}

	return ReadNonBlocking(e.fd, buf)
}

func (e *fdEndpoint) Write(buf []byte) (int, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return 0, ErrClosed
	}

	return WriteNonBlocking(e.fd, buf)
}

func (e *fdEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true

	return unix.Close(e.fd)
}
