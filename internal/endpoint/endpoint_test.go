package endpoint_test

import (
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/tcspecial/tcs/internal/endpoint"
)

func TestWaitTimeout(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	defer master.Close()
	defer slave.Close()

	mfd := int(master.Fd())
	require.NoError(t, unix.SetNonblock(mfd, true))

	ctl, err := endpoint.NewControlPipe()
	require.NoError(t, err)
	defer ctl.CloseRead()
	defer ctl.CloseWrite()

	res, err := endpoint.Wait(mfd, ctl.ReadFd, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, endpoint.WaitTimeout, res)
}

func TestWaitControlPending(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	defer master.Close()
	defer slave.Close()

	mfd := int(master.Fd())
	require.NoError(t, unix.SetNonblock(mfd, true))

	ctl, err := endpoint.NewControlPipe()
	require.NoError(t, err)
	defer ctl.CloseRead()
	defer ctl.CloseWrite()

	require.NoError(t, ctl.Signal(0))

	res, err := endpoint.Wait(mfd, ctl.ReadFd, time.Second)
	require.NoError(t, err)
	assert.Equal(t, endpoint.WaitControlPending, res)
}

func TestWaitIoReady(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	defer master.Close()
	defer slave.Close()

	mfd := int(master.Fd())
	require.NoError(t, unix.SetNonblock(mfd, true))

	ctl, err := endpoint.NewControlPipe()
	require.NoError(t, err)
	defer ctl.CloseRead()
	defer ctl.CloseWrite()

	_, err = slave.Write([]byte("hi"))
	require.NoError(t, err)

	res, err := endpoint.Wait(mfd, ctl.ReadFd, time.Second)
	require.NoError(t, err)
	assert.Equal(t, endpoint.WaitIoReady, res)
}

func TestReadNonBlockingTranslatesWouldBlock(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	defer master.Close()
	defer slave.Close()

	mfd := int(master.Fd())
	require.NoError(t, unix.SetNonblock(mfd, true))

	buf := make([]byte, 16)
	n, err := endpoint.ReadNonBlocking(mfd, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestParseNetworkName(t *testing.T) {
	cases := []struct {
		name     string
		isStream bool
		want     endpoint.Protocol
	}{
		{"127.0.0.1:5003", true, endpoint.ProtoTCPClient},
		{"127.0.0.1:5003", false, endpoint.ProtoUDP},
		{"127.0.0.1:5003:tcp-s", true, endpoint.ProtoTCPServer},
		{"127.0.0.1:5003:udp", true, endpoint.ProtoUDP},
	}

	for _, c := range cases {
		p, err := endpoint.ParseNetworkName(c.name, c.isStream)
		require.NoError(t, err)
		assert.Equal(t, c.want, p.Protocol)
		assert.Equal(t, 5003, p.Port)
	}
}

func TestParseNetworkNameRejectsGarbage(t *testing.T) {
	_, err := endpoint.ParseNetworkName("not-a-valid-name", true)
	assert.Error(t, err)

	_, err = endpoint.ParseNetworkName("host:port:garbage", true)
	assert.Error(t, err)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := endpoint.NewBackoff(10*time.Millisecond, 40*time.Millisecond)

	assert.Equal(t, 10*time.Millisecond, b.Next())
	assert.Equal(t, 20*time.Millisecond, b.Next())
	assert.Equal(t, 40*time.Millisecond, b.Next())
	assert.Equal(t, 40*time.Millisecond, b.Next())

	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.Next())
}

func TestControlPipeSignalWakesPoll(t *testing.T) {
	ctl, err := endpoint.NewControlPipe()
	require.NoError(t, err)
	defer ctl.CloseRead()

	done := make(chan endpoint.WaitResult, 1)

	go func() {
		res, _ := endpoint.Wait(ctl.ReadFd, -1, 2*time.Second)
		done <- res
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, ctl.Signal(0))

	select {
	case res := <-done:
		assert.Equal(t, endpoint.WaitIoReady, res)
	case <-time.After(time.Second):
		t.Fatal("wait did not wake on signal")
	}
}
