package questnav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateEstimatorEmptyWindow(t *testing.T) {
	t.Parallel()

	var r rateEstimator
	_, ok := r.average()
	assert.False(t, ok)
}

func TestRateEstimatorFirstObservationSeedsOnly(t *testing.T) {
	t.Parallel()

	var r rateEstimator
	r.observe(time.Now())
	_, ok := r.average()
	assert.False(t, ok, "a single arrival has no spacing to measure")
}

func TestRateEstimatorInstantaneousRate(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	var r rateEstimator
	r.observe(t0)
	r.observe(t0.Add(100 * time.Millisecond))

	hz, ok := r.average()
	require.True(t, ok)
	assert.InDelta(t, 10.0, hz, 1e-9)
}

func TestRateEstimatorAveragesWindow(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	var r rateEstimator
	r.observe(t0)
	r.observe(t0.Add(100 * time.Millisecond)) // 10 Hz
	r.observe(t0.Add(300 * time.Millisecond)) // 5 Hz

	hz, ok := r.average()
	require.True(t, ok)
	assert.InDelta(t, 7.5, hz, 1e-9)
}

func TestRateEstimatorSameTimestampAddsNoSample(t *testing.T) {
	t.Parallel()

	// Frames drained in one tick all carry the tick's timestamp; only the
	// first of them can produce a sample.
	t0 := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	var r rateEstimator
	r.observe(t0)
	r.observe(t0.Add(50 * time.Millisecond))
	r.observe(t0.Add(50 * time.Millisecond))
	r.observe(t0.Add(50 * time.Millisecond))

	hz, ok := r.average()
	require.True(t, ok)
	assert.Len(t, r.samples, 1)
	assert.InDelta(t, 20.0, hz, 1e-9)
}

func TestRateEstimatorClockStepBackward(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	var r rateEstimator
	r.observe(t0)
	r.observe(t0.Add(-time.Second))
	assert.Empty(t, r.samples)

	// The reference time followed the clock, so measurement resumes from
	// the stepped-back instant.
	r.observe(t0.Add(-time.Second).Add(100 * time.Millisecond))
	hz, ok := r.average()
	require.True(t, ok)
	assert.InDelta(t, 10.0, hz, 1e-9)
}

func TestRateEstimatorWindowEvictsOldest(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	var r rateEstimator
	r.observe(t0)

	// One fast arrival, then eleven slow ones. The 10 Hz sample ages out
	// of the ten-slot window, leaving a pure 1 Hz average.
	now := t0.Add(100 * time.Millisecond)
	r.observe(now)
	for i := 0; i < 11; i++ {
		now = now.Add(time.Second)
		r.observe(now)
	}

	require.Len(t, r.samples, rateWindowSize)
	hz, ok := r.average()
	require.True(t, ok)
	assert.InDelta(t, 1.0, hz, 1e-9)
}
