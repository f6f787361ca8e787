package endpoint

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// OpenDevice opens path O_RDWR|O_NONBLOCK, the Device DH payload fd. When
// baud is non-zero, the device is first configured as a raw-mode serial
// line at that speed via ConfigureSerial. When the opened fd is a TTY, its
// line discipline is switched to raw mode so bytes pass through unchanged
// and without waiting for a line terminator. A configuration failure is
// returned to the caller as an error; DataHandler.Activate reports it as
// ErrIO and leaves the DH Created.
func OpenDevice(path string, baud int) (Endpoint, error) {
	if baud > 0 {
		if err := ConfigureSerial(path, baud); err != nil {
			return nil, fmt.Errorf("endpoint: configure serial %s: %w", path, err)
		}
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("endpoint: open device %s: %w", path, err)
	}

	if tio, err := unix.IoctlGetTermios(fd, unix.TCGETS); err == nil {
		tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
		tio.Oflag &^= unix.OPOST
		tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
		tio.Cflag &^= unix.CSIZE | unix.PARENB
		tio.Cflag |= unix.CS8
		tio.Cc[unix.VMIN] = 1
		tio.Cc[unix.VTIME] = 0

		if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("endpoint: set raw mode on %s: %w", path, err)
		}
	}

	base, err := newFdEndpoint(fd, true)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return base, nil
}
