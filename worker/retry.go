package worker

import "time"

// retryLadder is the fixed backoff schedule from spec §4.11: up to 3
// additional attempts at increasing delay after the first attempt
// fails. attempts is the job's Attempts count observed before the
// failing attempt, so attempts == 0 on the first failure.
var retryLadder = []time.Duration{2 * time.Second, 8 * time.Second, 20 * time.Second}

// nextRetryDelay reports whether a job that has already failed
// `attempts` times (not counting the one that just failed) should be
// retried, and if so, after what delay.
func nextRetryDelay(attempts int) (delay time.Duration, retry bool) {
	if attempts >= len(retryLadder) {
		return 0, false
	}
	return retryLadder[attempts], true
}
