// Package resetline drives an optional GPIO hardware reset line at CI
// shutdown, for boards whose supervisor watches a physical line instead
// of (or in addition to) the process exit code. Absent by default: the
// CI only touches this when a Line is configured, and then pulses it in
// CommandInterpreter.Close whether the loop ended on RESTART or on a
// signal.
package resetline

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Line is a single GPIO output line pulsed high-then-low (or
// low-then-high, per ActiveLow) to signal a hardware reset request.
type Line struct {
	line *gpiocdev.Line

	pulseWidth time.Duration
}

// Open requests offset on chip (e.g. "gpiochip0") as an output, starting
// inactive.
func Open(chip string, offset int, activeLow bool, pulseWidth time.Duration) (*Line, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	l, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("resetline: request %s:%d: %w", chip, offset, err)
	}

	if pulseWidth <= 0 {
		pulseWidth = 100 * time.Millisecond
	}

	return &Line{line: l, pulseWidth: pulseWidth}, nil
}

// Pulse drives the line active for pulseWidth then releases it.
func (l *Line) Pulse() error {
	if l == nil || l.line == nil {
		return nil
	}

	if err := l.line.SetValue(1); err != nil {
		return fmt.Errorf("resetline: assert: %w", err)
	}

	time.Sleep(l.pulseWidth)

	if err := l.line.SetValue(0); err != nil {
		return fmt.Errorf("resetline: deassert: %w", err)
	}

	return nil
}

// Close releases the GPIO line request.
func (l *Line) Close() error {
	if l == nil || l.line == nil {
		return nil
	}

	return l.line.Close()
}
