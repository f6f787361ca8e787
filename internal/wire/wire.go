// Package wire implements the length-delimited command/telemetry framing
// shared by the command interpreter and its ground-side peer.
//
// A message on the wire is a fixed header followed by a JSON envelope:
// version, kind and length describe the framing; the envelope itself
// carries a tag plus tag-specific fields, mirroring the tagged-union
// encoding the original payload-control protocol used (a single JSON
// document per message, see ProtocolMessage in the source this system
// was ported from).
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Version is the only header version this codec understands.
	Version uint8 = 1

	// HeaderLen is the size in bytes of the fixed header.
	HeaderLen = 4

	// MaxMessageLen is the largest value length:u16 can hold, and so the
	// largest message (header included) this codec will ever produce.
	MaxMessageLen = 65535
)

// Kind distinguishes ground-to-space commands from space-to-ground telemetry.
type Kind uint8

const (
	KindCommand   Kind = 0
	KindTelemetry Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindTelemetry:
		return "telemetry"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Tag identifies the payload shape inside the envelope. Commands and
// telemetry share one tag space; tags 1-8 are used by both directions,
// tag 100 is telemetry-only.
type Tag uint16

const (
	TagPing       Tag = 1
	TagRestartArm Tag = 2
	TagRestart    Tag = 3
	TagStartDH    Tag = 4
	TagStopDH     Tag = 5
	TagQueryDH    Tag = 6
	TagConfig     Tag = 7
	TagConfigDH   Tag = 8
	TagBeacon     Tag = 100
)

var (
	// ErrFrame reports a malformed or truncated header.
	ErrFrame = errors.New("wire: malformed frame")
	// ErrDecode reports a header that parsed but whose envelope JSON did not.
	ErrDecode = errors.New("wire: envelope decode failed")
	// ErrTooLarge reports a message that would not fit in length:u16.
	ErrTooLarge = errors.New("wire: message exceeds max length")
)

// Header is the fixed four-byte preamble of every message.
type Header struct {
	Version uint8
	Kind    Kind
	Length  uint16 // total bytes including the header itself
}

// PutHeader writes h to the first HeaderLen bytes of buf.
func PutHeader(buf []byte, h Header) {
	buf[0] = h.Version
	buf[1] = byte(h.Kind)
	binary.BigEndian.PutUint16(buf[2:4], h.Length)
}

// ParseHeader reads a Header from the first HeaderLen bytes of buf.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", ErrFrame, len(buf))
	}

	return Header{
		Version: buf[0],
		Kind:    Kind(buf[1]),
		Length:  binary.BigEndian.Uint16(buf[2:4]),
	}, nil
}
