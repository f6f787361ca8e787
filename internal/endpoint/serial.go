package endpoint

import (
	"fmt"

	"github.com/pkg/term"
)

// standardBauds mirrors the switch in the teacher's serial_port_open:
// anything else falls back to 4800 rather than failing outright. The
// fallback is silent; no warning is emitted.
var standardBauds = map[int]bool{
	1200: true, 2400: true, 4800: true, 9600: true,
	19200: true, 38400: true, 57600: true, 115200: true,
}

// ConfigureSerial puts the named tty into raw mode at baud using
// github.com/pkg/term, then closes its own handle immediately: it exists
// only to apply line-discipline settings before OpenDevice opens the
// path again for the relay's own non-blocking fd, since *term.Term
// manages blocking I/O internally and is not a fit for the relay's
// poll-based read/write loop.
func ConfigureSerial(path string, baud int) error {
	t, err := term.Open(path, term.RawMode)
	if err != nil {
		return fmt.Errorf("serial: open %s: %w", path, err)
	}
	defer t.Close()

	speed := baud
	if !standardBauds[speed] {
		speed = 4800
	}

	if err := t.SetSpeed(speed); err != nil {
		return fmt.Errorf("serial: set speed %d on %s: %w", speed, path, err)
	}

	return nil
}
