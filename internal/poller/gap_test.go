package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGapTrackerConsecutiveValuesEmit(t *testing.T) {
	g := NewGapTracker(-1)
	now := time.Now()

	assert.Equal(t, Emit, g.Observe(0, 1, now))
	assert.Equal(t, Emit, g.Observe(1, 2, now))
	assert.Equal(t, Emit, g.Observe(2, 3, now))
	assert.False(t, g.Waiting())
}

func TestGapTrackerSuspendsOnJump(t *testing.T) {
	g := NewGapTracker(-1)
	now := time.Now()

	require.Equal(t, Emit, g.Observe(1, 2, now))
	assert.Equal(t, Suspend, g.Observe(2, 4, now))
	assert.True(t, g.Waiting())
	assert.Equal(t, int64(3), g.Expected())
}

func TestGapTrackerInfiniteTimeoutKeepsWaiting(t *testing.T) {
	g := NewGapTracker(-1)
	now := time.Now()

	require.Equal(t, Suspend, g.Observe(2, 4, now))
	assert.Equal(t, Suspend, g.Observe(2, 4, now.Add(24*time.Hour)))
	assert.True(t, g.Waiting())
}

func TestGapTrackerResolvesWhenMissingValueArrives(t *testing.T) {
	g := NewGapTracker(2000)
	now := time.Now()

	require.Equal(t, Suspend, g.Observe(2, 4, now))

	// The missing record shows up in a later cycle.
	assert.Equal(t, Emit, g.Observe(2, 3, now.Add(100*time.Millisecond)))
	assert.False(t, g.Waiting())
	assert.Equal(t, Emit, g.Observe(3, 4, now.Add(100*time.Millisecond)))
}

func TestGapTrackerTimesOut(t *testing.T) {
	g := NewGapTracker(50)
	now := time.Now()

	require.Equal(t, Suspend, g.Observe(2, 4, now))
	assert.Equal(t, Suspend, g.Observe(2, 4, now.Add(30*time.Millisecond)))
	assert.Equal(t, Suspend, g.Observe(2, 4, now.Add(50*time.Millisecond)))

	// Past the timeout the record is treated as permanently lost.
	assert.Equal(t, Emit, g.Observe(2, 4, now.Add(51*time.Millisecond)))
	assert.False(t, g.Waiting())
}

func TestGapTrackerNewGapAfterResolutionStartsFreshWait(t *testing.T) {
	g := NewGapTracker(50)
	now := time.Now()

	require.Equal(t, Suspend, g.Observe(2, 4, now))
	require.Equal(t, Emit, g.Observe(2, 3, now.Add(10*time.Millisecond)))

	// A second gap much later must not inherit the first wait's clock.
	later := now.Add(10 * time.Minute)
	assert.Equal(t, Suspend, g.Observe(5, 8, later))
	assert.Equal(t, int64(6), g.Expected())
	assert.Equal(t, Suspend, g.Observe(5, 8, later.Add(40*time.Millisecond)))
	assert.Equal(t, Emit, g.Observe(5, 8, later.Add(60*time.Millisecond)))
}
