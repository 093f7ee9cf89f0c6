package session

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic millisecond counter. Sleep yields between transport
// polls; fake clocks advance themselves instead of blocking.
type Clock interface {
	Millis() uint64
	Sleep(d time.Duration)
}

// TickClock is advanced by an external 1ms tick source calling Tick.
type TickClock struct {
	ms atomic.Uint64
}

func (c *TickClock) Tick() {
	c.ms.Add(1)
}

func (c *TickClock) Millis() uint64 {
	return c.ms.Load()
}

func (c *TickClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// SystemClock reads wall time elapsed since it was created.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Millis() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

func (c *SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// ManualClock only moves when advanced; Sleep advances it by d.
type ManualClock struct {
	ms atomic.Uint64
}

func (c *ManualClock) Advance(d time.Duration) {
	c.ms.Add(uint64(d.Milliseconds()))
}

func (c *ManualClock) Millis() uint64 {
	return c.ms.Load()
}

func (c *ManualClock) Sleep(d time.Duration) {
	if d < time.Millisecond {
		d = time.Millisecond
	}
	c.Advance(d)
}

// Timer is a countdown over a Clock.
type Timer struct {
	clock Clock
	end   uint64
}

func NewTimer(clock Clock) *Timer {
	return &Timer{clock: clock}
}

// Countdown arms the timer to expire d from now.
func (t *Timer) Countdown(d time.Duration) {
	t.end = t.clock.Millis() + uint64(d.Milliseconds())
}

// Expired reports whether the clock has passed the armed deadline.
func (t *Timer) Expired() bool {
	return t.clock.Millis() > t.end
}

// Remaining is the time left before expiry, zero once expired.
func (t *Timer) Remaining() time.Duration {
	now := t.clock.Millis()
	if now >= t.end {
		return 0
	}
	return time.Duration(t.end-now) * time.Millisecond
}
