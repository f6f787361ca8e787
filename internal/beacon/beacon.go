// Package beacon implements the CI's periodic liveness telemetry driver:
// an interval timer that can be re-armed instantly when the configured
// interval changes. Grounded on the source's BeaconSend, whose
// CondPair(Mutex+Condvar) guards a shared expiration time; this port
// uses sync.Cond over the same (mutex, deadline) shape.
package beacon

import (
	"sync"
	"time"
)

// Sender emits one beacon telemetry message. The CI supplies an
// implementation that encodes and sends wire.BeaconMsg to the
// configured destination.
type Sender interface {
	SendBeacon()
}

// Driver fires Sender.SendBeacon on a configurable cadence. An interval
// of 0 disables emission: the CI still starts the driver goroutine,
// which idles until a positive SetInterval (see New's doc).
type Driver struct {
	sender Sender

	mu         sync.Mutex
	cond       *sync.Cond
	interval   time.Duration
	deadline   time.Time
	stopped    bool
	stopSignal bool
}

// New builds a Driver with the given starting interval. A zero interval
// is a valid starting point (disabled): the driver still runs its
// goroutine so a later SetInterval can enable it, but never fires while
// interval remains 0.
func New(sender Sender, interval time.Duration) *Driver {
	d := &Driver{
		sender:   sender,
		interval: interval,
		deadline: time.Now().Add(interval),
	}
	d.cond = sync.NewCond(&d.mu)

	return d
}

// Run blocks, firing beacons until Stop is called. Intended to be
// launched with `go d.Run()`.
func (d *Driver) Run() {
	for {
		d.mu.Lock()

		for {
			if d.stopped {
				d.mu.Unlock()
				return
			}

			if d.interval <= 0 {
				// Disabled: wait until SetInterval wakes us with a
				// positive interval or Stop is called.
				d.cond.Wait()
				continue
			}

			now := time.Now()
			if !now.Before(d.deadline) {
				break
			}

			d.waitUntil(d.deadline)
		}

		if d.stopped {
			d.mu.Unlock()
			return
		}

		d.deadline = time.Now().Add(d.interval)
		sender := d.sender
		d.mu.Unlock()

		sender.SendBeacon()
	}
}

// waitUntil sleeps on the condition variable until deadline, or until
// woken early by SetInterval/Stop. Must be called with d.mu held; it
// releases and reacquires the lock the way Cond.Wait does. A timer
// goroutine broadcasts the condition variable when the deadline is
// reached so a single Cond.Wait covers both the timed and the
// early-wake cases.
func (d *Driver) waitUntil(deadline time.Time) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return
	}

	timer := time.AfterFunc(remaining, func() {
		d.cond.Broadcast()
	})
	defer timer.Stop()

	d.cond.Wait()
}

// SetInterval replaces the interval, forces the deadline to now so the
// next beacon fires immediately, and wakes the driver goroutine. interval
// <= 0 disables emission until the next positive SetInterval.
func (d *Driver) SetInterval(interval time.Duration) {
	d.mu.Lock()
	d.interval = interval
	d.deadline = time.Now()
	d.mu.Unlock()

	d.cond.Broadcast()
}

// Interval reports the currently configured interval.
func (d *Driver) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.interval
}

// Stop halts the driver goroutine. Safe to call once.
func (d *Driver) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.cond.Broadcast()
}
