// ABOUTME: Reconnect backoff schedule
// ABOUTME: Doubles from one second per attempt up to a cap
package sendspin

import "time"

// Backoff returns the wait before reconnect attempt n (1-based):
// min(2^(n-1) seconds, max).
func Backoff(attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Larger shifts overflow time.Duration
	if attempt > 31 {
		attempt = 31
	}
	d := time.Duration(1<<uint(attempt-1)) * time.Second
	if max > 0 && d > max {
		return max
	}
	return d
}
