package voice

import "time"

// backoff doubles the delay on every call up to a ceiling.
type backoff struct {
	current  time.Duration
	maxDelay time.Duration
}

func newBackoff(initial, maxDelay time.Duration) *backoff {
	return &backoff{current: initial, maxDelay: maxDelay}
}

// next returns the current delay and advances to the next value.
func (b *backoff) next() time.Duration {
	current := b.current
	b.current = min(b.current*2, b.maxDelay)
	return current
}
