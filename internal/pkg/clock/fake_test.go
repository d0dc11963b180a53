package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	var calls atomic.Int32
	c.AfterFunc(2*time.Second, func() { calls.Add(1) })

	c.Advance(time.Second)
	assert.Equal(t, int32(0), calls.Load())

	c.Advance(time.Second)
	assert.Equal(t, int32(1), calls.Load())

	c.Advance(time.Hour)
	assert.Equal(t, int32(1), calls.Load(), "one-shot timer must not fire twice")
}

func TestFakeAfterFuncStop(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired)
	assert.Equal(t, 0, c.PendingCount())
}

func TestFakeChainedTimersFireWithinOneAdvance(t *testing.T) {
	c := Fake(epoch)
	var order []int
	c.AfterFunc(time.Second, func() {
		order = append(order, 1)
		c.AfterFunc(time.Second, func() { order = append(order, 2) })
	})

	c.Advance(5 * time.Second)
	assert.Equal(t, []int{1}, order, "timer registered at advanced time fires on the next advance")

	c.Advance(time.Second)
	assert.Equal(t, []int{1, 2}, order)
}

func TestFakeTickerDeliversPerInterval(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Minute)
	defer ticker.Stop()

	select {
	case <-ticker.C:
		t.Fatal("tick before Advance")
	default:
	}

	c.Advance(time.Minute)
	select {
	case tick := <-ticker.C:
		assert.Equal(t, epoch.Add(time.Minute), tick)
	default:
		t.Fatal("no tick after one interval")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "After channel did not fire")
	}
}
