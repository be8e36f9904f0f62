package delivery

import "time"

// Backoff bounds
const (
	BaseBackoff = time.Second
	MaxBackoff  = 5 * time.Minute
)

// RetryBackoff returns the wait before retry n: min(2^n s, 5m)
func RetryBackoff(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	// 2^9 s already exceeds the cap
	if n >= 9 {
		return MaxBackoff
	}
	d := BaseBackoff << uint(n)
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// DeferralBackoff returns the wait after the nth consecutive deferral.
// Deferrals share the retry curve but never consume attempts.
func DeferralBackoff(deferrals int) time.Duration {
	return RetryBackoff(deferrals)
}
