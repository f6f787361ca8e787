package endpoint

import "golang.org/x/sys/unix"

// ControlPipe is the OS pipe a DH uses to cancel its two relays: the
// write end is held by the DH, the read end is shared as control_fd by
// both relays (§4.C).
type ControlPipe struct {
	ReadFd  int
	WriteFd int
}

// NewControlPipe allocates a non-blocking pipe. Failure maps to
// ResourceAllocationFailed at the DH layer.
func NewControlPipe() (ControlPipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		return ControlPipe{}, err
	}

	return ControlPipe{ReadFd: fds[0], WriteFd: fds[1]}, nil
}

// Signal writes one byte (value 0 = stop) to the pipe's write end.
func (p ControlPipe) Signal(b byte) error {
	_, err := unix.Write(p.WriteFd, []byte{b})
	return err
}

// CloseWrite closes the write end. Relays only read from the read end;
// the DH closes it with CloseRead once both relays have joined.
func (p ControlPipe) CloseWrite() error {
	return unix.Close(p.WriteFd)
}

// CloseRead closes the read end.
func (p ControlPipe) CloseRead() error {
	return unix.Close(p.ReadFd)
}
