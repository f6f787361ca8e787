package ci

import (
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/tcspecial/tcs/internal/datahandler"
	"github.com/tcspecial/tcs/internal/wire"
)

// dispatch decodes fields for tag, runs the matching handler, and
// returns the framed reply. ok is false when the tag is unrecognized or
// fields fail to decode — the command is then dropped rather than
// answered, matching decode-failure policy (§4.A/§7).
func (c *CommandInterpreter) dispatch(tag wire.Tag, fields json.RawMessage, from *net.UDPAddr) ([]byte, bool) {
	switch tag {
	case wire.TagPing:
		var cmd wire.PingCmd
		if !decode(fields, &cmd) {
			return nil, false
		}

		return frame(wire.TagPing, c.handlePing(cmd))

	case wire.TagRestartArm:
		var cmd wire.RestartArmCmd
		if !decode(fields, &cmd) {
			return nil, false
		}

		return frame(wire.TagRestartArm, c.handleRestartArm(cmd))

	case wire.TagRestart:
		var cmd wire.RestartCmd
		if !decode(fields, &cmd) {
			return nil, false
		}

		return frame(wire.TagRestart, c.handleRestart(cmd))

	case wire.TagStartDH:
		var cmd wire.StartDHCmd
		if !decode(fields, &cmd) {
			return nil, false
		}

		return frame(wire.TagStartDH, c.handleStartDH(cmd, from))

	case wire.TagStopDH:
		var cmd wire.StopDHCmd
		if !decode(fields, &cmd) {
			return nil, false
		}

		return frame(wire.TagStopDH, c.handleStopDH(cmd))

	case wire.TagQueryDH:
		var cmd wire.QueryDHCmd
		if !decode(fields, &cmd) {
			return nil, false
		}

		return frame(wire.TagQueryDH, c.handleQueryDH(cmd))

	case wire.TagConfig:
		var cmd wire.ConfigCmd
		if !decode(fields, &cmd) {
			return nil, false
		}

		return frame(wire.TagConfig, c.handleConfig(cmd))

	case wire.TagConfigDH:
		var cmd wire.ConfigDHCmd
		if !decode(fields, &cmd) {
			return nil, false
		}

		return frame(wire.TagConfigDH, c.handleConfigDH(cmd))

	default:
		return nil, false
	}
}

func decode(fields json.RawMessage, dst interface{}) bool {
	return wire.DecodeFields(fields, dst) == nil
}

func frame(tag wire.Tag, body interface{}) ([]byte, bool) {
	framed, err := wire.Encode(wire.KindTelemetry, tag, body)
	if err != nil {
		return nil, false
	}

	return framed, true
}

func (c *CommandInterpreter) handlePing(cmd wire.PingCmd) wire.PingReply {
	return wire.PingReply{Seq: cmd.Seq, Status: wire.Success(), Timestamp: wire.Now()}
}

func (c *CommandInterpreter) handleRestartArm(cmd wire.RestartArmCmd) wire.Reply {
	c.arm.Store(&armState{key: cmd.ArmKey, armed: time.Now()})

	return wire.Reply{Seq: cmd.Seq, Status: wire.Success()}
}

func (c *CommandInterpreter) handleRestart(cmd wire.RestartCmd) wire.Reply {
	state := c.arm.Load()
	if state == nil {
		return wire.Reply{Seq: cmd.Seq, Status: wire.Failure(wire.RestartNotArmed)}
	}

	if time.Since(state.armed) > ArmWindow {
		c.arm.Store(nil)
		return wire.Reply{Seq: cmd.Seq, Status: wire.Failure(wire.ArmWindowExpired)}
	}

	if state.key != cmd.ArmKey {
		// Arm state retained: a wrong key does not consume the arm.
		return wire.Reply{Seq: cmd.Seq, Status: wire.Failure(wire.InvalidArmKey)}
	}

	c.arm.Store(nil)
	c.running.Store(false)

	return wire.Reply{Seq: cmd.Seq, Status: wire.Success()}
}

func (c *CommandInterpreter) handleStartDH(cmd wire.StartDHCmd, from *net.UDPAddr) wire.Reply {
	cfg := datahandler.DefaultConfigFor(cmd.DHType)

	dh, err := c.registry.Create(cmd.DHId, cmd.DHType, cmd.Name, cfg)
	if err != nil {
		if errors.Is(err, datahandler.ErrAlreadyExists) {
			return c.handleDuplicateStartDH(cmd, from)
		}

		return wire.Reply{Seq: cmd.Seq, Status: wire.Failure(wire.ResourceAllocationFailed)}
	}

	if err := dh.Activate(from.IP.String(), from.Port); err != nil {
		_ = c.registry.Stop(cmd.DHId)

		return wire.Reply{Seq: cmd.Seq, Status: wire.Failure(mapDHError(err))}
	}

	return wire.Reply{Seq: cmd.Seq, Status: wire.Success()}
}

// handleDuplicateStartDH implements the resolved Open Question: a
// re-issued StartDH for an id already registered with the same type and
// name is idempotent success; any other difference reports
// DHAlreadyExists. A DH pre-registered at boot (state Created, no OC
// peer yet) is activated against from on its first matching StartDH,
// rather than just reporting success with nothing actually relaying.
func (c *CommandInterpreter) handleDuplicateStartDH(cmd wire.StartDHCmd, from *net.UDPAddr) wire.Reply {
	existing, ok := c.registry.Get(cmd.DHId)
	if !ok || existing.Type != cmd.DHType || existing.Name != cmd.Name {
		return wire.Reply{Seq: cmd.Seq, Status: wire.Failure(wire.DHAlreadyExists)}
	}

	if existing.State() == datahandler.StateCreated {
		if err := existing.Activate(from.IP.String(), from.Port); err != nil {
			return wire.Reply{Seq: cmd.Seq, Status: wire.Failure(mapDHError(err))}
		}
	}

	return wire.Reply{Seq: cmd.Seq, Status: wire.Success()}
}

func (c *CommandInterpreter) handleStopDH(cmd wire.StopDHCmd) wire.Reply {
	err := c.registry.Stop(cmd.DHId)
	if err != nil && !errors.Is(err, datahandler.ErrNotFound) {
		return wire.Reply{Seq: cmd.Seq, Status: wire.Failure(wire.IoError)}
	}

	// DHNotFound (including the never-existed case) is idempotent
	// success, per §4.E.
	return wire.Reply{Seq: cmd.Seq, Status: wire.Success()}
}

func (c *CommandInterpreter) handleQueryDH(cmd wire.QueryDHCmd) wire.QueryDHReply {
	stats, err := c.registry.Stats(cmd.DHId)
	if err != nil {
		return wire.QueryDHReply{Seq: cmd.Seq, Status: wire.Failure(wire.DHNotFound)}
	}

	return wire.QueryDHReply{Seq: cmd.Seq, Status: wire.Success(), Statistics: &stats}
}

func (c *CommandInterpreter) handleConfig(cmd wire.ConfigCmd) wire.Reply {
	if cmd.BeaconInterval != nil && *cmd.BeaconInterval > 0 {
		c.SetBeaconInterval(time.Duration(*cmd.BeaconInterval) * time.Millisecond)
	}

	return wire.Reply{Seq: cmd.Seq, Status: wire.Success()}
}

func (c *CommandInterpreter) handleConfigDH(cmd wire.ConfigDHCmd) wire.Reply {
	// No-op scaffold per §4.E: ConfigDH always succeeds.
	return wire.Reply{Seq: cmd.Seq, Status: wire.Success()}
}

func mapDHError(err error) wire.ErrorCode {
	switch {
	case errors.Is(err, datahandler.ErrInvalidConfiguration):
		return wire.InvalidConfiguration
	case errors.Is(err, datahandler.ErrIO):
		return wire.IoError
	case errors.Is(err, datahandler.ErrResourceAllocationFailed):
		return wire.ResourceAllocationFailed
	default:
		return wire.IoError
	}
}
