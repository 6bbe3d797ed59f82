package tgbot

import "time"

// retryExecute calls f up to n times with a pause between attempts, stopping
// on the first success.
func retryExecute(n int, d time.Duration, f func() bool) bool {
	for i := 0; i < n; i++ {
		if f() {
			return true
		}
		time.Sleep(d)
	}
	return false
}
