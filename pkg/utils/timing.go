package utils

import (
	"time"
)

// AlignToInterval truncates t down to the nearest multiple of interval,
// measured from the Unix epoch. Candle windows on the exchange are
// epoch-aligned, so this yields the open time of the window containing t.
func AlignToInterval(t time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return t
	}
	secs := t.Unix()
	step := int64(interval / time.Second)
	aligned := secs - secs%step
	return time.Unix(aligned, 0).UTC()
}

// NextTick returns the first epoch-aligned interval boundary strictly after
// t, plus a small grace offset so the exchange has published the candle that
// just closed by the time we poll.
func NextTick(t time.Time, interval, grace time.Duration) time.Time {
	aligned := AlignToInterval(t, interval)
	next := aligned.Add(interval)
	if !next.After(t) {
		next = next.Add(interval)
	}
	return next.Add(grace)
}

// UntilNextTick returns how long to sleep from t until the next poll moment.
func UntilNextTick(t time.Time, interval, grace time.Duration) time.Duration {
	d := NextTick(t, interval, grace).Sub(t)
	if d < 0 {
		return 0
	}
	return d
}
