package driven

import "time"

// Clock supplies the current time. Injected so cache-expiry behaviour is
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock.
type SystemClock struct{}

// Now returns the current wall time.
func (SystemClock) Now() time.Time { return time.Now() }
