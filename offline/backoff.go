// ABOUTME: Exponential backoff for connectivity reconnect probes.
// ABOUTME: Caps wait growth so long outages keep probing at a steady rate.
package offline

import "time"

// Backoff produces growing wait intervals between failed reconnect probes.
// It is not safe for concurrent use; the monitor owns one per subscription.
type Backoff struct {
	Initial    time.Duration // wait after first failure (default: 500ms)
	Max        time.Duration // cap on wait growth (default: 30s)
	Multiplier float64       // growth factor (default: 2.0)

	next time.Duration
}

// DefaultBackoff returns sensible defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    500 * time.Millisecond,
		Max:        30 * time.Second,
		Multiplier: 2.0,
	}
}

// Next returns the wait before the upcoming probe and advances the schedule.
func (b *Backoff) Next() time.Duration {
	if b.Initial <= 0 {
		b.Initial = 500 * time.Millisecond
	}
	if b.Multiplier <= 1 {
		b.Multiplier = 2.0
	}
	if b.next == 0 {
		b.next = b.Initial
		return b.next
	}
	wait := time.Duration(float64(b.next) * b.Multiplier)
	if b.Max > 0 && wait > b.Max {
		wait = b.Max
	}
	b.next = wait
	return wait
}

// Reset restarts the schedule after a successful probe.
func (b *Backoff) Reset() {
	b.next = 0
}
