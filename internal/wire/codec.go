package wire

import (
	"encoding/json"
	"fmt"
	"io"
)

// envelope is the JSON document carried after the fixed header: a tag
// plus tag-specific fields, serialized as one blob — the approach the
// system this protocol was ported from used (a single serde_json value
// per message) rather than a binary tagged union.
type envelope struct {
	Tag    Tag             `json:"tag"`
	Fields json.RawMessage `json:"fields"`
}

// Encode frames body under tag/kind: header + JSON envelope.
func Encode(kind Kind, tag Tag, body interface{}) ([]byte, error) {
	fields, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal fields: %w", err)
	}

	payload, err := json.Marshal(envelope{Tag: tag, Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("wire: marshal envelope: %w", err)
	}

	total := HeaderLen + len(payload)
	if total > MaxMessageLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, total)
	}

	buf := make([]byte, total)
	PutHeader(buf, Header{Version: Version, Kind: kind, Length: uint16(total)}) //nolint:gosec
	copy(buf[HeaderLen:], payload)

	return buf, nil
}

// Decode splits a full framed message (header included) into its header
// and envelope tag/fields. Callers needing a typed body then call
// DecodeFields with the tag-appropriate Go type.
func Decode(buf []byte) (Header, Tag, json.RawMessage, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return Header{}, 0, nil, err
	}

	if h.Version != Version {
		return Header{}, 0, nil, fmt.Errorf("%w: unsupported version %d", ErrFrame, h.Version)
	}

	if int(h.Length) != len(buf) {
		return Header{}, 0, nil, fmt.Errorf("%w: header length %d != buffer %d", ErrFrame, h.Length, len(buf))
	}

	var env envelope
	if err := json.Unmarshal(buf[HeaderLen:], &env); err != nil {
		return Header{}, 0, nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return h, env.Tag, env.Fields, nil
}

// DecodeFields unmarshals envelope fields into dst, a pointer to one of
// the body types in messages.go.
func DecodeFields(fields json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(fields, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return nil
}

// DatagramFrame validates that buf is exactly one complete message, per
// the UDP framing rule: the header's length field must equal the
// datagram's length. Mismatches are dropped by the caller.
func DatagramFrame(buf []byte) (Header, Tag, json.RawMessage, error) {
	return Decode(buf)
}

// ReadStreamMessage reads one header-delimited message from a stream:
// the header first, then exactly length-4 payload bytes. Short reads
// block (via io.ReadFull) until complete or the stream errors.
func ReadStreamMessage(r io.Reader) (Header, Tag, json.RawMessage, error) {
	hbuf := make([]byte, HeaderLen)
	if _, err := io.ReadFull(r, hbuf); err != nil {
		return Header{}, 0, nil, err
	}

	h, err := ParseHeader(hbuf)
	if err != nil {
		return Header{}, 0, nil, err
	}

	if h.Length < HeaderLen {
		return Header{}, 0, nil, fmt.Errorf("%w: length %d shorter than header", ErrFrame, h.Length)
	}

	payloadLen := int(h.Length) - HeaderLen

	full := make([]byte, h.Length)
	copy(full, hbuf)

	if payloadLen > 0 {
		if _, err := io.ReadFull(r, full[HeaderLen:]); err != nil {
			return Header{}, 0, nil, err
		}
	}

	return Decode(full)
}

// WriteStreamMessage writes a fully framed message to w in one Write
// call; by io.Writer's contract a short write comes back as an error.
func WriteStreamMessage(w io.Writer, framed []byte) error {
	_, err := w.Write(framed)
	return err
}
