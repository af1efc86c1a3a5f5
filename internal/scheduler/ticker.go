package scheduler

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	logx "schoolbell/pkg/logx"
)

// Ticker fires once per wall-clock minute, anchored to minute boundaries so
// a schedule due at 08:30 sees a tick at 08:30:00 plus scheduling jitter.
//
// Each wait is recomputed from the current clock reading instead of sleeping
// a fixed interval, so drift never accumulates and NTP steps self-correct on
// the next tick.
type Ticker struct {
	clock clockwork.Clock
	log   logx.Logger
}

func NewTicker(clock clockwork.Clock, log logx.Logger) *Ticker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ticker{clock: clock, log: log}
}

// Run invokes fn with the tick's clock reading once per minute boundary
// until ctx is canceled. fn runs on the ticker goroutine: a slow fn delays
// subsequent ticks rather than overlapping them, which is what the
// single-matching-pass invariant requires.
func (t *Ticker) Run(ctx context.Context, fn func(now time.Time)) error {
	for {
		now := t.clock.Now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		wait := next.Sub(now)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.clock.After(wait):
		}

		fired := t.clock.Now()
		t.log.Trace("tick", logx.Time("at", fired))
		fn(fired)
	}
}
