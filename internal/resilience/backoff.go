package resilience

import "time"

// RetryConfig mirrors spec.md §4.3/§4.8's retry policy: MaxAttempts retries
// follow the initial attempt (default 3, so 4 tries total), each preceded
// by a backoff delay of Base * 2^attempt (1s, 2s, 4s for the spec's
// documented defaults). The same policy shape is reused for both the RPC
// transport client's retry loop and the referee's move-retry backoff.
type RetryConfig struct {
	MaxAttempts int
	Base        time.Duration
}

// DefaultRetryConfig returns the spec's documented defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Base: 1 * time.Second}
}

// Delay returns the backoff delay before the given zero-indexed retry
// attempt (0 => first retry, delay = Base*2^0 = Base).
func (c RetryConfig) Delay(attempt int) time.Duration {
	d := c.Base
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}
