// Package datahandler implements the Data Handler entity (component D):
// a payload fd plus the two relays tunneling bytes between it and an
// OC-facing socket, and the registry that owns a set of them.
package datahandler

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tcspecial/tcs/internal/endpoint"
	"github.com/tcspecial/tcs/internal/relay"
	"github.com/tcspecial/tcs/internal/wire"
)

// State is the DH lifecycle state; transitions are Created->Active,
// Active->Stopped, Created->Stopped. There is no Stopped->* transition.
type State int

const (
	StateCreated State = iota
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateActive:
		return "Active"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Config carries the buffer/stream tuning §4.D step 2 derives from
// DHType, plus an optional serial baud for Device endpoints.
type Config struct {
	IsStream    bool
	StreamDelay time.Duration
	Baud        int
}

// DefaultConfigFor derives a Config the way StartDH's dispatcher does:
// Device DHs are stream (serial byte streams), Network DHs are
// datagram, unless overridden by operator policy upstream.
func DefaultConfigFor(t wire.DHType) Config {
	return Config{IsStream: t == wire.DHTypeDevice}
}

// DataHandler owns one payload fd, both relays around it, and the
// cancellation pipe that stops them.
type DataHandler struct {
	ID     uint32
	Type   wire.DHType
	Name   string
	Config Config

	mu    sync.Mutex
	state State

	pipe      endpoint.ControlPipe
	ocEP      endpoint.Endpoint
	payloadEP endpoint.Endpoint

	// g2pRelay and p2gRelay carry their own live counters (readable via
	// Stats without blocking) for as long as the DH has been Activated,
	// whether or not they have since stopped.
	g2pRelay *relay.Relay
	p2gRelay *relay.Relay

	g2pDone chan wire.Statistics
	p2gDone chan wire.Statistics

	joinTimeout time.Duration
}

// DefaultJoinTimeout is the grace period stop() waits for both relays
// to report their final stats before abandoning the join, per §5's
// recommendation.
const DefaultJoinTimeout = 2 * time.Second

// New allocates the cancellation pipe and returns a DataHandler in
// state Created. Failure to allocate the pipe maps to
// ResourceAllocationFailed at the caller.
func New(id uint32, typ wire.DHType, name string, cfg Config) (*DataHandler, error) {
	pipe, err := endpoint.NewControlPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceAllocationFailed, err)
	}

	return &DataHandler{
		ID:          id,
		Type:        typ,
		Name:        name,
		Config:      cfg,
		state:       StateCreated,
		pipe:        pipe,
		joinTimeout: DefaultJoinTimeout,
	}, nil
}

// Sentinel errors mapped to wire.ErrorCode by the CI dispatcher.
var (
	ErrResourceAllocationFailed = errors.New("datahandler: resource allocation failed")
	ErrInvalidConfiguration     = errors.New("datahandler: invalid configuration")
	ErrIO                       = errors.New("datahandler: io error")
	ErrWrongState               = errors.New("datahandler: wrong state for operation")
)

// State reports the current lifecycle state.
func (d *DataHandler) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

// Activate opens the OC-facing UDP socket and the payload endpoint, then
// starts both relays. Precondition: state == Created.
func (d *DataHandler) Activate(ocHost string, ocPort int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateCreated {
		return fmt.Errorf("%w: dh %d is %s, not Created", ErrWrongState, d.ID, d.state)
	}

	ocEP, err := endpoint.NewUDPSocket(ocHost, ocPort)
	if err != nil {
		return fmt.Errorf("%w: oc socket: %v", ErrIO, err)
	}

	payloadEP, err := d.openPayload()
	if err != nil {
		_ = ocEP.Close()
		return err
	}

	d.ocEP = ocEP
	d.payloadEP = payloadEP

	d.g2pDone = make(chan wire.Statistics, 1)
	d.p2gDone = make(chan wire.Statistics, 1)

	d.g2pRelay = relay.New(fmt.Sprintf("dh%d-g2p", d.ID), ocEP, payloadEP, d.pipe.ReadFd, d.Config.StreamDelay)
	d.p2gRelay = relay.New(fmt.Sprintf("dh%d-p2g", d.ID), payloadEP, ocEP, d.pipe.ReadFd, d.Config.StreamDelay)

	go d.g2pRelay.Run(d.g2pDone)
	go d.p2gRelay.Run(d.p2gDone)

	d.state = StateActive

	return nil
}

func (d *DataHandler) openPayload() (endpoint.Endpoint, error) {
	switch d.Type {
	case wire.DHTypeDevice:
		ep, err := endpoint.OpenDevice(d.Name, d.Config.Baud)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}

		return ep, nil
	case wire.DHTypeNetwork:
		parsed, err := endpoint.ParseNetworkName(d.Name, d.Config.IsStream)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}

		ep, err := endpoint.DialNetwork(parsed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}

		return ep, nil
	default:
		return nil, fmt.Errorf("%w: unknown dh type %v", ErrInvalidConfiguration, d.Type)
	}
}

// Stop signals both relays, waits for them to exit with a bounded grace
// timeout, and closes the payload fd. Idempotent: a no-op when already
// Stopped.
func (d *DataHandler) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateStopped {
		return nil
	}

	if d.state == StateCreated {
		d.state = StateStopped
		_ = d.pipe.CloseRead()
		_ = d.pipe.CloseWrite()

		return nil
	}

	// One byte wakes whichever of the two relays' poll fires first on
	// the shared read end; write twice so both definitely see one.
	_ = d.pipe.Signal(0)
	_ = d.pipe.Signal(0)

	d.join(d.g2pDone)
	d.join(d.p2gDone)

	_ = d.payloadEP.Close()
	_ = d.ocEP.Close()
	_ = d.pipe.CloseWrite()
	_ = d.pipe.CloseRead()

	d.state = StateStopped

	return nil
}

// join waits for a relay's completion signal up to the grace timeout,
// then gives up and lets Stop proceed; the relay's counters remain
// readable through its Stats method regardless of whether it reported
// in time.
func (d *DataHandler) join(done <-chan wire.Statistics) {
	select {
	case <-done:
	case <-time.After(d.joinTimeout):
		// The relay is abandoned rather than blocking Stop indefinitely.
		// The timeout is not logged or reported to Stop's caller.
	}
}

// Stats returns a fresh snapshot combining both relays' live counters —
// reads+bytes_rx from P2G, writes+bytes_tx from G2P — without blocking on
// either relay, whether the DH is still Active or has since Stopped.
func (d *DataHandler) Stats() wire.Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()

	var g2p, p2g wire.Statistics

	if d.g2pRelay != nil {
		g2p = d.g2pRelay.Stats()
	}

	if d.p2gRelay != nil {
		p2g = d.p2gRelay.Stats()
	}

	combined := wire.Statistics{
		BytesRx:   p2g.BytesRx,
		ReadsOK:   p2g.ReadsOK,
		ReadsErr:  p2g.ReadsErr,
		BytesTx:   g2p.BytesTx,
		WritesOK:  g2p.WritesOK,
		WritesErr: g2p.WritesErr,
	}

	now := wire.Now()
	combined.Timestamp = &now

	return combined
}

// DHNameLooksLikeDevice reports whether name looks like an absolute
// filesystem path (a leading "/") rather than host:port[:proto].
func DHNameLooksLikeDevice(name string) bool {
	return strings.HasPrefix(name, "/")
}
