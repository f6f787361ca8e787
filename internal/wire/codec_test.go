package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tcspecial/tcs/internal/wire"
)

func TestPingRoundTrip(t *testing.T) {
	framed, err := wire.Encode(wire.KindCommand, wire.TagPing, wire.PingCmd{Seq: 42})
	require.NoError(t, err)

	h, tag, fields, err := wire.Decode(framed)
	require.NoError(t, err)
	assert.Equal(t, wire.KindCommand, h.Kind)
	assert.Equal(t, wire.TagPing, tag)

	var cmd wire.PingCmd
	require.NoError(t, wire.DecodeFields(fields, &cmd))
	assert.Equal(t, uint32(42), cmd.Seq)
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []wire.Status{wire.Success(), wire.Failure(wire.DHNotFound), wire.Failure(wire.ArmWindowExpired)} {
		framed, err := wire.Encode(wire.KindTelemetry, wire.TagStopDH, wire.Reply{Seq: 1, Status: s})
		require.NoError(t, err)

		_, _, fields, err := wire.Decode(framed)
		require.NoError(t, err)

		var reply wire.Reply
		require.NoError(t, wire.DecodeFields(fields, &reply))
		assert.Equal(t, s, reply.Status)
	}
}

func TestDatagramLengthMismatchDropped(t *testing.T) {
	framed, err := wire.Encode(wire.KindCommand, wire.TagPing, wire.PingCmd{Seq: 1})
	require.NoError(t, err)

	truncated := framed[:len(framed)-1]
	_, _, _, err = wire.DatagramFrame(truncated)
	assert.Error(t, err)
}

func TestReadStreamMessageRoundTrip(t *testing.T) {
	framed, err := wire.Encode(wire.KindCommand, wire.TagStartDH, wire.StartDHCmd{
		Seq: 7, DHId: 3, DHType: wire.DHTypeNetwork, Name: "127.0.0.1:5003",
	})
	require.NoError(t, err)

	buf := bytes.NewReader(framed)
	h, tag, fields, err := wire.ReadStreamMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, wire.TagStartDH, tag)
	assert.Equal(t, int(h.Length), len(framed))

	var cmd wire.StartDHCmd
	require.NoError(t, wire.DecodeFields(fields, &cmd))
	assert.Equal(t, "127.0.0.1:5003", cmd.Name)
}

// TestEnvelopeBijective is Testable Property 2: encode then decode any
// command or telemetry value yields the original value.
func TestEnvelopeBijective(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seq := rapid.Uint32().Draw(t, "seq")
		armKey := rapid.Uint64().Draw(t, "arm_key")

		framed, err := wire.Encode(wire.KindCommand, wire.TagRestartArm, wire.RestartArmCmd{Seq: seq, ArmKey: armKey})
		require.NoError(t, err)

		_, tag, fields, err := wire.Decode(framed)
		require.NoError(t, err)
		assert.Equal(t, wire.TagRestartArm, tag)

		var cmd wire.RestartArmCmd
		require.NoError(t, wire.DecodeFields(fields, &cmd))
		assert.Equal(t, seq, cmd.Seq)
		assert.Equal(t, armKey, cmd.ArmKey)
	})
}

func TestErrorCodeJSONUnknownName(t *testing.T) {
	var code wire.ErrorCode
	require.NoError(t, code.UnmarshalJSON([]byte(`"SomeFutureCode"`)))
	assert.Equal(t, wire.Unknown, code)
}

func TestMessageTooLarge(t *testing.T) {
	huge := wire.StartDHCmd{Seq: 1, Name: string(make([]byte, wire.MaxMessageLen))}
	_, err := wire.Encode(wire.KindCommand, wire.TagStartDH, huge)
	require.Error(t, err)
}
