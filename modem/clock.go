package modem

import (
	"context"
	"time"
)

// Clock is the monotonic tick source every wait of the engine is measured
// against.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// deadline is an absolute expiry instant. A cancelled context expires it
// early.
type deadline struct {
	ctx   context.Context
	clock Clock
	at    time.Time
}

func newDeadline(ctx context.Context, clock Clock, timeout time.Duration) deadline {
	return deadline{ctx: ctx, clock: clock, at: clock.Now().Add(timeout)}
}

func (d deadline) remaining() time.Duration {
	if d.ctx != nil && d.ctx.Err() != nil {
		return 0
	}
	if r := d.at.Sub(d.clock.Now()); r > 0 {
		return r
	}
	return 0
}

func (d deadline) expired() bool {
	return d.remaining() <= 0
}

// atMost returns the smaller of max and the remaining time.
func (d deadline) atMost(max time.Duration) time.Duration {
	return min(max, d.remaining())
}
