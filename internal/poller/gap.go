package poller

import "time"

// Decision is the gap tracker's verdict for a single fetched row.
type Decision int

const (
	// Emit means the row may be decoded and handed to the sink.
	Emit Decision = iota

	// Suspend means a predecessor row is still missing: stop processing
	// the current batch without emitting this row or advancing the cursor,
	// and retry after the retry interval.
	Suspend
)

const noGap = int64(-1)

// GapTracker watches consecutive watermark values and decides, per row,
// whether to emit or to suspend the batch while a missing predecessor may
// still commit. It is pure state over (lastConfirmed, candidate, now) and
// performs no I/O.
type GapTracker struct {
	// waitingTimeoutMS bounds how long a missing value is awaited.
	// -1 means wait forever.
	waitingTimeoutMS int64

	expected  int64
	waitStart time.Time
}

// NewGapTracker returns a tracker with no gap in progress.
func NewGapTracker(waitingTimeoutMS int64) *GapTracker {
	return &GapTracker{
		waitingTimeoutMS: waitingTimeoutMS,
		expected:         noGap,
	}
}

// Observe inspects the candidate watermark v following the last confirmed
// value. A jump of more than one unit starts (or continues) a gap at last+1;
// while the wait has not timed out the verdict is Suspend. Once the missing
// value shows up, or the wait times out, tracking is cleared and the row is
// emitted.
func (g *GapTracker) Observe(last, v int64, now time.Time) Decision {
	if v-last > 1 {
		if g.expected == noGap {
			g.expected = last + 1
			g.waitStart = now
		}
		if g.waitingTimeoutMS == -1 ||
			now.Sub(g.waitStart) <= time.Duration(g.waitingTimeoutMS)*time.Millisecond {
			return Suspend
		}
	}
	if g.expected != noGap {
		// Missing record arrived or timed out; treat it as resolved.
		g.expected = noGap
		g.waitStart = time.Time{}
	}
	return Emit
}

// Waiting reports whether a gap is currently being awaited.
func (g *GapTracker) Waiting() bool { return g.expected != noGap }

// Expected returns the watermark value being awaited, or -1 when none.
func (g *GapTracker) Expected() int64 { return g.expected }
