package poller

import "time"

// Intervals holds the two waits the poll loop alternates between: the
// regular polling interval, and the shorter retry interval used after a
// cycle ended early on a suspected gap.
type Intervals struct {
	Poll  time.Duration
	Retry time.Duration
}

// NewIntervals builds the loop intervals from configuration values. A retry
// interval of zero or below derives the retry wait from the polling
// interval.
func NewIntervals(pollingIntervalSeconds int, retryIntervalMS int64) Intervals {
	if retryIntervalMS <= 0 {
		retryIntervalMS = int64(pollingIntervalSeconds) * 1000
	}
	return Intervals{
		Poll:  time.Duration(pollingIntervalSeconds) * time.Second,
		Retry: time.Duration(retryIntervalMS) * time.Millisecond,
	}
}

// After returns the wait to apply once a cycle finished.
func (iv Intervals) After(gapRetry bool) time.Duration {
	if gapRetry {
		return iv.Retry
	}
	return iv.Poll
}
