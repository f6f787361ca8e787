package ci_test

import (
	"net"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcspecial/tcs/internal/ci"
	"github.com/tcspecial/tcs/internal/config"
	"github.com/tcspecial/tcs/internal/datahandler"
	"github.com/tcspecial/tcs/internal/wire"
)

// testHarness wires a CommandInterpreter to ephemeral ports and a UDP
// "ground" socket to talk to it, mirroring scenario 1-6 of §8.
type testHarness struct {
	t        *testing.T
	ci       *ci.CommandInterpreter
	ground   *net.UDPConn
	ciAddr   *net.UDPAddr
	beaconLn *net.UDPConn
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	beaconLn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	cfg := config.DefaultCIConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.BeaconAddr = beaconLn.LocalAddr().String()
	cfg.BeaconIntervalMS = 0
	cfg.MaxDataHandlers = 8

	registry := datahandler.NewManager(cfg.MaxDataHandlers)

	interp, err := ci.New(cfg, registry, ci.Options{})
	require.NoError(t, err)

	ground, err := net.DialUDP("udp4", nil, interp.LocalAddr())
	require.NoError(t, err)

	h := &testHarness{t: t, ci: interp, ground: ground, ciAddr: interp.LocalAddr(), beaconLn: beaconLn}

	go func() {
		_ = interp.Run()
	}()

	t.Cleanup(func() {
		interp.Stop()
		_ = ground.Close()
		_ = beaconLn.Close()
		_ = interp.Close()
	})

	return h
}

func (h *testHarness) send(tag wire.Tag, body interface{}) {
	framed, err := wire.Encode(wire.KindCommand, tag, body)
	require.NoError(h.t, err)

	_, err = h.ground.Write(framed)
	require.NoError(h.t, err)
}

func (h *testHarness) recv(timeout time.Duration) (wire.Tag, []byte) {
	require.NoError(h.t, h.ground.SetReadDeadline(time.Now().Add(timeout)))

	buf := make([]byte, wire.MaxMessageLen)

	n, err := h.ground.Read(buf)
	require.NoError(h.t, err)

	_, tag, fields, err := wire.Decode(buf[:n])
	require.NoError(h.t, err)

	return tag, fields
}

func TestPingRoundTrip(t *testing.T) {
	h := newHarness(t)

	h.send(wire.TagPing, wire.PingCmd{Seq: 42})

	tag, fields := h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagPing, tag)

	var reply wire.PingReply
	require.NoError(t, wire.DecodeFields(fields, &reply))
	assert.Equal(t, uint32(42), reply.Seq)
	assert.True(t, reply.Status.OK)
	assert.Greater(t, reply.Timestamp.Seconds, uint64(0))
}

func TestStartQueryStopUDPDataHandler(t *testing.T) {
	h := newHarness(t)

	payload, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer payload.Close()

	payloadAddr := payload.LocalAddr().(*net.UDPAddr)

	h.send(wire.TagStartDH, wire.StartDHCmd{
		Seq: 1, DHId: 3, DHType: wire.DHTypeNetwork, Name: payloadAddr.String(),
	})

	tag, fields := h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagStartDH, tag)

	var startReply wire.Reply
	require.NoError(t, wire.DecodeFields(fields, &startReply))
	assert.True(t, startReply.Status.OK)

	h.send(wire.TagQueryDH, wire.QueryDHCmd{Seq: 2, DHId: 3})
	tag, fields = h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagQueryDH, tag)

	var queryReply wire.QueryDHReply
	require.NoError(t, wire.DecodeFields(fields, &queryReply))
	require.True(t, queryReply.Status.OK)
	require.NotNil(t, queryReply.Statistics)
	assert.Equal(t, uint64(0), queryReply.Statistics.BytesRx)

	h.send(wire.TagStopDH, wire.StopDHCmd{Seq: 4, DHId: 3})
	tag, fields = h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagStopDH, tag)

	var stopReply wire.Reply
	require.NoError(t, wire.DecodeFields(fields, &stopReply))
	assert.True(t, stopReply.Status.OK)

	// Idempotent re-stop.
	h.send(wire.TagStopDH, wire.StopDHCmd{Seq: 5, DHId: 3})
	tag, fields = h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagStopDH, tag)

	require.NoError(t, wire.DecodeFields(fields, &stopReply))
	assert.True(t, stopReply.Status.OK)
}

// TestActiveDHReportsLiveStatistics covers Scenario 2 of §8: bytes
// injected into a DH while it is still Active must show up in a
// QueryDH taken before StopDH, not only after the DH has stopped.
func TestActiveDHReportsLiveStatistics(t *testing.T) {
	h := newHarness(t)

	master, slave, err := pty.Open()
	require.NoError(t, err)
	defer master.Close()
	defer slave.Close()

	h.send(wire.TagStartDH, wire.StartDHCmd{
		Seq: 1, DHId: 3, DHType: wire.DHTypeDevice, Name: slave.Name(),
	})

	tag, fields := h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagStartDH, tag)

	var startReply wire.Reply
	require.NoError(t, wire.DecodeFields(fields, &startReply))
	assert.True(t, startReply.Status.OK)

	injected := []byte("fifteen bytes!!")
	_, err = master.Write(injected)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		h.send(wire.TagQueryDH, wire.QueryDHCmd{Seq: 2, DHId: 3})

		_, fields := h.recv(200 * time.Millisecond)

		var queryReply wire.QueryDHReply
		require.NoError(t, wire.DecodeFields(fields, &queryReply))
		require.True(t, queryReply.Status.OK)
		require.NotNil(t, queryReply.Statistics)

		return queryReply.Statistics.BytesRx >= uint64(len(injected))
	}, time.Second, 10*time.Millisecond)

	h.send(wire.TagStopDH, wire.StopDHCmd{Seq: 4, DHId: 3})
	tag, fields = h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagStopDH, tag)

	var stopReply wire.Reply
	require.NoError(t, wire.DecodeFields(fields, &stopReply))
	assert.True(t, stopReply.Status.OK)
}

func TestArmThenRestart(t *testing.T) {
	h := newHarness(t)

	h.send(wire.TagRestartArm, wire.RestartArmCmd{Seq: 10, ArmKey: 0xF001ADAD})
	tag, fields := h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagRestartArm, tag)

	var reply wire.Reply
	require.NoError(t, wire.DecodeFields(fields, &reply))
	assert.True(t, reply.Status.OK)

	h.send(wire.TagRestart, wire.RestartCmd{Seq: 11, ArmKey: 0xDEADBEEF})
	tag, fields = h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagRestart, tag)
	require.NoError(t, wire.DecodeFields(fields, &reply))
	assert.False(t, reply.Status.OK)
	assert.Equal(t, wire.InvalidArmKey, reply.Status.Error)

	h.send(wire.TagRestart, wire.RestartCmd{Seq: 12, ArmKey: 0xF001ADAD})
	tag, fields = h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagRestart, tag)
	require.NoError(t, wire.DecodeFields(fields, &reply))
	assert.True(t, reply.Status.OK)
}

func TestArmWindowExpiry(t *testing.T) {
	old := ci.ArmWindow
	ci.ArmWindow = 30 * time.Millisecond
	defer func() { ci.ArmWindow = old }()

	h := newHarness(t)

	h.send(wire.TagRestartArm, wire.RestartArmCmd{Seq: 20, ArmKey: 1})
	h.recv(200 * time.Millisecond)

	time.Sleep(60 * time.Millisecond)

	h.send(wire.TagRestart, wire.RestartCmd{Seq: 21, ArmKey: 1})
	tag, fields := h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagRestart, tag)

	var reply wire.Reply
	require.NoError(t, wire.DecodeFields(fields, &reply))
	assert.False(t, reply.Status.OK)
	assert.Equal(t, wire.ArmWindowExpired, reply.Status.Error)
}

func TestDuplicateStartDHIsIdempotent(t *testing.T) {
	h := newHarness(t)

	payload, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer payload.Close()

	name := payload.LocalAddr().String()

	h.send(wire.TagStartDH, wire.StartDHCmd{Seq: 1, DHId: 0, DHType: wire.DHTypeNetwork, Name: name})
	_, fields := h.recv(200 * time.Millisecond)

	var reply wire.Reply
	require.NoError(t, wire.DecodeFields(fields, &reply))
	assert.True(t, reply.Status.OK)

	h.send(wire.TagStartDH, wire.StartDHCmd{Seq: 2, DHId: 0, DHType: wire.DHTypeNetwork, Name: name})
	_, fields = h.recv(200 * time.Millisecond)

	require.NoError(t, wire.DecodeFields(fields, &reply))
	assert.True(t, reply.Status.OK)
}

func TestZeroLengthDatagramIgnored(t *testing.T) {
	h := newHarness(t)

	_, err := h.ground.Write(nil)
	require.NoError(t, err)

	// Confirm the loop is still alive by following up with a Ping.
	h.send(wire.TagPing, wire.PingCmd{Seq: 1})
	tag, _ := h.recv(200 * time.Millisecond)
	assert.Equal(t, wire.TagPing, tag)
}
