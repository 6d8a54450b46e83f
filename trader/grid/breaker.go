package grid

import "time"

const breakerThreshold = 3

// breaker suspends a single symbol after repeated tick failures, with
// exponentially growing pauses up to a cap, so one sick market does not
// keep hammering the venue while the rest of the grids trade on.
type breaker struct {
	base     time.Duration
	max      time.Duration
	failures int
	until    time.Time
}

func newBreaker(base, max time.Duration) *breaker {
	return &breaker{base: base, max: max}
}

func (b *breaker) ready(now time.Time) bool {
	return !now.Before(b.until)
}

func (b *breaker) fail(now time.Time) {
	b.failures++
	if b.failures < breakerThreshold {
		return
	}
	pause := b.base << uint(b.failures-breakerThreshold)
	if pause > b.max || pause <= 0 {
		pause = b.max
	}
	b.until = now.Add(pause)
}

func (b *breaker) ok() {
	b.failures = 0
	b.until = time.Time{}
}

// suspended reports the remaining pause, zero when tradable.
func (b *breaker) suspended(now time.Time) time.Duration {
	if b.ready(now) {
		return 0
	}
	return b.until.Sub(now)
}
