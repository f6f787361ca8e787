package beacon_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tcspecial/tcs/internal/beacon"
)

type countingSender struct {
	count int64
}

func (c *countingSender) SendBeacon() {
	atomic.AddInt64(&c.count, 1)
}

func TestDisabledIntervalNeverFires(t *testing.T) {
	sender := &countingSender{}
	d := beacon.New(sender, 0)

	go d.Run()
	defer d.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&sender.count))
}

func TestSetIntervalFiresImmediately(t *testing.T) {
	sender := &countingSender{}
	d := beacon.New(sender, 0)

	go d.Run()
	defer d.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&sender.count))

	d.SetInterval(20 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&sender.count) >= 1
	}, 200*time.Millisecond, 5*time.Millisecond)
}

func TestBeaconCadence(t *testing.T) {
	sender := &countingSender{}
	d := beacon.New(sender, 30*time.Millisecond)

	go d.Run()
	defer d.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&sender.count) >= 3
	}, time.Second, 10*time.Millisecond)
}

func TestIntervalChangeReschedulesCadence(t *testing.T) {
	sender := &countingSender{}
	d := beacon.New(sender, 500*time.Millisecond)

	go d.Run()
	defer d.Stop()

	time.Sleep(20 * time.Millisecond)
	d.SetInterval(20 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&sender.count) >= 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 20*time.Millisecond, d.Interval())
}
