// Package ci implements the Command Interpreter (component E): the
// single-threaded main loop that services the command socket, dispatches
// to the DH registry and beacon driver, and runs the arm/restart FSM.
// Grounded on the teacher's agwlib.go listener loop (read-dispatch over
// a persistent socket) and the source's ci.rs process_command match.
package ci

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tcspecial/tcs/internal/beacon"
	"github.com/tcspecial/tcs/internal/config"
	"github.com/tcspecial/tcs/internal/datahandler"
	"github.com/tcspecial/tcs/internal/ephemeris"
	"github.com/tcspecial/tcs/internal/resetline"
	"github.com/tcspecial/tcs/internal/wire"
)

// RecvTimeout bounds the command socket's timed receive so shutdown is
// prompt, per §4.E/§5.
const RecvTimeout = 100 * time.Millisecond

// ArmWindow is how long a RestartArm stays valid before a Restart must
// be seen, per §3/§8. A var rather than a const so tests can shrink it.
var ArmWindow = 60 * time.Second

// CommandInterpreter is the on-board dispatcher: one command socket, one
// DH registry, one beacon driver, and the arm/restart FSM's state.
type CommandInterpreter struct {
	conn       *net.UDPConn
	beaconConn *net.UDPConn
	registry   *datahandler.Manager
	beaconDr   *beacon.Driver
	logger     *log.Logger

	resetLine  *resetline.Line
	ephemeris  *ephemeris.Source

	arm atomic.Pointer[armState]

	running atomic.Bool
}

type armState struct {
	key   uint64
	armed time.Time
}

// Options collects the CI's optional collaborators: none are required.
type Options struct {
	ResetLine *resetline.Line
	Ephemeris *ephemeris.Source
	Logger    *log.Logger
}

// New binds the command socket and constructs a CommandInterpreter with
// a beacon driver wired to cfg's address and interval. The beacon driver
// is started (and may sit disabled, if BeaconIntervalMS is 0) alongside
// the CI's own Run loop.
func New(cfg config.CIConfig, registry *datahandler.Manager, opts Options) (*CommandInterpreter, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("ci: resolve listen addr %q: %w", cfg.ListenAddr, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("ci: listen %q: %w", cfg.ListenAddr, err)
	}

	beaconAddr, err := net.ResolveUDPAddr("udp", cfg.BeaconAddr)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ci: resolve beacon addr %q: %w", cfg.BeaconAddr, err)
	}

	beaconConn, err := net.DialUDP("udp", nil, beaconAddr)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ci: dial beacon addr %q: %w", cfg.BeaconAddr, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	sender := &beaconSender{conn: beaconConn, ephemeris: opts.Ephemeris, logger: logger}

	ci := &CommandInterpreter{
		conn:       conn,
		beaconConn: beaconConn,
		registry:   registry,
		beaconDr:   beacon.New(sender, cfg.BeaconInterval()),
		logger:     logger,
		resetLine:  opts.ResetLine,
		ephemeris:  opts.Ephemeris,
	}
	ci.running.Store(true)

	return ci, nil
}

type beaconSender struct {
	conn      *net.UDPConn
	ephemeris *ephemeris.Source
	logger    *log.Logger
}

func (b *beaconSender) SendBeacon() {
	msg := wire.BeaconMsg{Timestamp: wire.Now()}
	if b.ephemeris != nil {
		msg.Position = b.ephemeris.Fix()
	}

	framed, err := wire.Encode(wire.KindTelemetry, wire.TagBeacon, msg)
	if err != nil {
		b.logger.Warn("encode beacon failed", "err", err)
		return
	}

	// Beacon loss is never retried (§4.E): one write, no error recovery.
	if _, err := b.conn.Write(framed); err != nil {
		b.logger.Warn("send beacon failed", "err", err)
	}
}

// SetBeaconInterval reconfigures the beacon driver, for the Config
// command handler.
func (c *CommandInterpreter) SetBeaconInterval(d time.Duration) {
	c.beaconDr.SetInterval(d)
}

// Run services the command socket until Stop is called (directly or by
// an accepted Restart).
// It also starts the beacon driver goroutine and stops it on exit.
func (c *CommandInterpreter) Run() error {
	go c.beaconDr.Run()
	defer c.beaconDr.Stop()

	buf := make([]byte, wire.MaxMessageLen)

	for c.running.Load() {
		if err := c.conn.SetReadDeadline(time.Now().Add(RecvTimeout)); err != nil {
			return fmt.Errorf("ci: set read deadline: %w", err)
		}

		n, from, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			c.logger.Warn("command socket read error", "err", err)
			continue
		}

		if n == 0 {
			// Zero-length datagram: ignored per the boundary behavior list.
			continue
		}

		c.handleDatagram(buf[:n], from)
	}

	return nil
}

func (c *CommandInterpreter) handleDatagram(datagram []byte, from *net.UDPAddr) {
	_, tag, fields, err := wire.DatagramFrame(datagram)
	if err != nil {
		// Decode failure is silently dropped; ground will retry.
		return
	}

	reply, ok := c.dispatch(tag, fields, from)
	if !ok {
		return
	}

	if _, err := c.conn.WriteToUDP(reply, from); err != nil {
		c.logger.Warn("send reply failed", "err", err, "to", from)
	}
}

// Stop requests the main loop exit at the next iteration boundary. Used
// both by the RESTART handler and by an external SIGINT/SIGTERM
// listener.
func (c *CommandInterpreter) Stop() {
	c.running.Store(false)
}

// Close releases the command and beacon sockets, and pulses the reset
// line if one is configured. Call after Run returns.
func (c *CommandInterpreter) Close() error {
	if c.resetLine != nil {
		if err := c.resetLine.Pulse(); err != nil {
			c.logger.Warn("reset line pulse failed", "err", err)
		}
	}

	_ = c.beaconConn.Close()

	return c.conn.Close()
}

// Registry exposes the DH registry, mainly for tests.
func (c *CommandInterpreter) Registry() *datahandler.Manager { return c.registry }

// LocalAddr reports the command socket's bound address, mainly for
// tests that need to dial an ephemeral port.
func (c *CommandInterpreter) LocalAddr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}
