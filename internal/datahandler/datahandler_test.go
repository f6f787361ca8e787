package datahandler_test

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcspecial/tcs/internal/datahandler"
	"github.com/tcspecial/tcs/internal/wire"
)

// freeUDPPort asks the kernel for an ephemeral UDP port and releases it
// immediately, good enough for a payload peer in tests.
func freeUDPPort(t *testing.T) int {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).Port
}

func TestLifecycleCreatedActiveStopped(t *testing.T) {
	port := freeUDPPort(t)

	peer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	defer peer.Close()

	dh, err := datahandler.New(3, wire.DHTypeNetwork, fmt.Sprintf("127.0.0.1:%d", port), datahandler.DefaultConfigFor(wire.DHTypeNetwork))
	require.NoError(t, err)
	assert.Equal(t, datahandler.StateCreated, dh.State())

	require.NoError(t, dh.Activate("127.0.0.1", 0))
	assert.Equal(t, datahandler.StateActive, dh.State())

	stats := dh.Stats()
	assert.Equal(t, uint64(0), stats.BytesRx)

	require.NoError(t, dh.Stop())
	assert.Equal(t, datahandler.StateStopped, dh.State())

	// Stop is idempotent on Stopped.
	require.NoError(t, dh.Stop())
	assert.Equal(t, datahandler.StateStopped, dh.State())
}

func TestStopBeforeActivateTransitionsToStoppedNotDangling(t *testing.T) {
	dh, err := datahandler.New(9, wire.DHTypeNetwork, "127.0.0.1:1", datahandler.DefaultConfigFor(wire.DHTypeNetwork))
	require.NoError(t, err)

	require.NoError(t, dh.Stop())
	assert.Equal(t, datahandler.StateStopped, dh.State())
}

func TestRegistryCreateActivateStopQuery(t *testing.T) {
	mgr := datahandler.NewManager(8)

	port := freeUDPPort(t)
	name := fmt.Sprintf("127.0.0.1:%d", port)

	_, err := mgr.Create(3, wire.DHTypeNetwork, name, datahandler.DefaultConfigFor(wire.DHTypeNetwork))
	require.NoError(t, err)

	_, err = mgr.Create(3, wire.DHTypeNetwork, name, datahandler.DefaultConfigFor(wire.DHTypeNetwork))
	assert.ErrorIs(t, err, datahandler.ErrAlreadyExists)

	require.NoError(t, mgr.Activate(3, "127.0.0.1", 0))

	stats, err := mgr.Stats(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.BytesRx)

	require.NoError(t, mgr.Stop(3))

	_, err = mgr.Stats(3)
	assert.ErrorIs(t, err, datahandler.ErrNotFound)

	err = mgr.Stop(3)
	assert.ErrorIs(t, err, datahandler.ErrNotFound)
}

func TestRegistryMaxDataHandlersBoundary(t *testing.T) {
	mgr := datahandler.NewManager(2)

	_, err := mgr.Create(1, wire.DHTypeDevice, "/dev/null", datahandler.DefaultConfigFor(wire.DHTypeDevice))
	require.NoError(t, err)

	_, err = mgr.Create(2, wire.DHTypeDevice, "/dev/null", datahandler.DefaultConfigFor(wire.DHTypeDevice))
	require.NoError(t, err)

	_, err = mgr.Create(3, wire.DHTypeDevice, "/dev/null", datahandler.DefaultConfigFor(wire.DHTypeDevice))
	assert.ErrorIs(t, err, datahandler.ErrResourceAllocationFailed)
}

func TestStatisticsMonotonic(t *testing.T) {
	port := freeUDPPort(t)
	name := fmt.Sprintf("127.0.0.1:%d", port)

	peer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	defer peer.Close()

	dh, err := datahandler.New(5, wire.DHTypeNetwork, name, datahandler.DefaultConfigFor(wire.DHTypeNetwork))
	require.NoError(t, err)
	require.NoError(t, dh.Activate("127.0.0.1", 0))

	prev := dh.Stats()

	time.Sleep(10 * time.Millisecond)

	next := dh.Stats()
	assert.GreaterOrEqual(t, next.BytesRx, prev.BytesRx)
	assert.GreaterOrEqual(t, next.BytesTx, prev.BytesTx)

	require.NoError(t, dh.Stop())
}
