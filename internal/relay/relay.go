// Package relay implements the one-way, cancellable byte pump described
// in component C: read from one endpoint, write to another, until told
// to stop. Grounded on the wait/read-then-write loop sketched in the
// source's conduit implementation, generalized to the stream/datagram
// endpoint split in internal/endpoint.
package relay

import (
	"sync/atomic"
	"time"

	"github.com/tcspecial/tcs/internal/endpoint"
	"github.com/tcspecial/tcs/internal/wire"
)

// BufferSize is the per-iteration read buffer. 4096 matches the source's
// ENDPOINT_BUFFER_SIZE constant.
const BufferSize = 4096

// WaitTimeout is how long a relay blocks in wait() before re-checking;
// §4.C fixes this at 1s.
const WaitTimeout = time.Second

// Relay pumps bytes from Reader to Writer until Stop is signalled on
// controlFd, or waiting on the reader reports Error. Its counters live in
// atomic.Uint64 fields rather than a local variable so that Stats can be
// read concurrently, from another goroutine, while the pump loop is
// still running.
type Relay struct {
	name        string
	reader      endpoint.Endpoint
	writer      endpoint.Endpoint
	controlFd   int
	streamDelay time.Duration

	bytesRx   atomic.Uint64
	readsOK   atomic.Uint64
	readsErr  atomic.Uint64
	bytesTx   atomic.Uint64
	writesOK  atomic.Uint64
	writesErr atomic.Uint64
}

// New builds a Relay. controlFd is the read end of the DH's cancellation
// pipe, shared between both of a DH's relays.
func New(name string, reader, writer endpoint.Endpoint, controlFd int, streamDelay time.Duration) *Relay {
	return &Relay{name: name, reader: reader, writer: writer, controlFd: controlFd, streamDelay: streamDelay}
}

// Stats returns a snapshot of the relay's counters, safe to call from any
// goroutine at any point in the relay's life, including while it is still
// actively pumping. It never blocks on the reader or writer.
func (r *Relay) Stats() wire.Statistics {
	return wire.Statistics{
		BytesRx:   r.bytesRx.Load(),
		ReadsOK:   r.readsOK.Load(),
		ReadsErr:  r.readsErr.Load(),
		BytesTx:   r.bytesTx.Load(),
		WritesOK:  r.writesOK.Load(),
		WritesErr: r.writesErr.Load(),
	}
}

// Run executes the pump loop to completion (stop signal or fatal error)
// and returns the accumulated statistics. Intended to be launched with
// `go r.Run(...)`; the caller receives the result over the channel it
// supplies. The same counters are readable live via Stats throughout.
func (r *Relay) Run(done chan<- wire.Statistics) {
	done <- r.run()
}

func (r *Relay) run() wire.Statistics {
	buf := make([]byte, BufferSize)

	for {
		if r.streamDelay > 0 && r.reader.Stream() {
			time.Sleep(r.streamDelay)
		}

		res, err := r.reader.Wait(r.controlFd, WaitTimeout)
		if err != nil {
			return r.Stats()
		}

		switch res {
		case endpoint.WaitControlPending, endpoint.WaitBoth:
			stop, sigErr := r.drainControl()
			if sigErr != nil {
				return r.Stats()
			}

			if stop {
				return r.Stats()
			}
			// A non-zero, unrecognized control byte: ignore and continue.
		case endpoint.WaitIoReady:
			r.pump(buf)
		case endpoint.WaitTimeout:
			// iterate
		case endpoint.WaitError:
			return r.Stats()
		}
	}
}

// drainControl reads one byte from the control fd and reports whether it
// was the stop signal (0).
func (r *Relay) drainControl() (stop bool, err error) {
	b := make([]byte, 1)

	n, err := endpoint.ReadNonBlocking(r.controlFd, b)
	if err != nil {
		return false, err
	}

	if n == 0 {
		return false, nil
	}

	return b[0] == 0, nil
}

// pump performs one read-then-write cycle. Read and write failures are
// accounted statistically, per §4.C, and never end the relay on their
// own — only a POLLERR/POLLHUP surfaced through Wait (WaitError) does.
func (r *Relay) pump(buf []byte) {
	n, err := r.reader.Read(buf)
	if err != nil {
		addSaturating(&r.readsErr, 1)
		return
	}

	if n == 0 {
		// Spurious wake.
		return
	}

	addSaturating(&r.bytesRx, uint64(n)) //nolint:gosec
	addSaturating(&r.readsOK, 1)

	r.writeAll(buf[:n])
}

// writeAll writes data in full, looping on partial writes for stream
// writers per §4.C; a short datagram write is an error.
func (r *Relay) writeAll(data []byte) {
	total := 0

	for total < len(data) {
		n, err := r.writer.Write(data[total:])
		if err != nil {
			addSaturating(&r.writesErr, 1)
			return
		}

		if n == 0 {
			// WouldBlock: the writer isn't ready yet. Since we are not
			// re-entering wait() here (ordering guarantee: bytes from one
			// read are written contiguously before the next read), spin
			// briefly rather than busy-loop the CPU flat out.
			time.Sleep(time.Millisecond)
			continue
		}

		total += n

		if !r.writer.Stream() && n != len(data) {
			addSaturating(&r.writesErr, 1)
			return
		}
	}

	addSaturating(&r.bytesTx, uint64(total)) //nolint:gosec
	addSaturating(&r.writesOK, 1)
}

// addSaturating adds delta to c, clamping at 2^64-1 instead of wrapping.
// c has a single writer (the relay's own goroutine), so the CAS never
// contends; it's used for its saturating semantics, not for contention
// safety.
func addSaturating(c *atomic.Uint64, delta uint64) {
	for {
		old := c.Load()
		next := wire.SaturatingAdd(old, delta)

		if c.CompareAndSwap(old, next) {
			return
		}
	}
}
