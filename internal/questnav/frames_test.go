package questnav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames(seqs ...uint64) []PoseFrame {
	out := make([]PoseFrame, len(seqs))
	for i, s := range seqs {
		out[i] = PoseFrame{Sequence: s}
	}
	return out
}

func TestFrameSequencerEmptyBatch(t *testing.T) {
	t.Parallel()

	var s frameSequencer
	accepted, drops := s.ingest(nil)
	assert.Empty(t, accepted)
	assert.Zero(t, drops)
	assert.False(t, s.haveLast, "an empty drain must not establish a baseline")
}

func TestFrameSequencerFirstBatchNeverDrops(t *testing.T) {
	t.Parallel()

	// The device may have been streaming long before we attached, so the
	// first batch is the baseline no matter where it starts.
	var s frameSequencer
	accepted, drops := s.ingest(frames(57, 58, 59))
	assert.Len(t, accepted, 3)
	assert.Zero(t, drops)
}

func TestFrameSequencerContiguousStream(t *testing.T) {
	t.Parallel()

	var s frameSequencer
	for _, batch := range [][]PoseFrame{frames(1, 2, 3), frames(4, 5, 6), frames(7)} {
		accepted, drops := s.ingest(batch)
		assert.Len(t, accepted, len(batch))
		assert.Zero(t, drops)
	}
}

func TestFrameSequencerCountsGapBetweenBatches(t *testing.T) {
	t.Parallel()

	var s frameSequencer

	_, drops := s.ingest(frames(1, 2, 3))
	require.Zero(t, drops)

	_, drops = s.ingest(frames(4, 5, 6))
	require.Zero(t, drops)

	// 7, 8 and 9 never arrived.
	_, drops = s.ingest(frames(10, 11))
	assert.Equal(t, uint64(3), drops)
}

func TestFrameSequencerIgnoresGapsInsideBatch(t *testing.T) {
	t.Parallel()

	// Only the head of the batch is checked against the watermark.
	var s frameSequencer
	_, drops := s.ingest(frames(1, 2))
	require.Zero(t, drops)

	accepted, drops := s.ingest(frames(3, 7, 8))
	assert.Zero(t, drops)
	assert.Len(t, accepted, 3)

	// The baseline still advances to the end of the batch.
	_, drops = s.ingest(frames(10))
	assert.Equal(t, uint64(1), drops)
}

func TestFrameSequencerForwardsDuplicates(t *testing.T) {
	t.Parallel()

	var s frameSequencer
	_, drops := s.ingest(frames(5))
	require.Zero(t, drops)

	// A redelivered or stale frame is forwarded untouched and counts no
	// drops; deciding what to do with it belongs to the caller.
	accepted, drops := s.ingest(frames(3, 4))
	assert.Len(t, accepted, 2)
	assert.Zero(t, drops)

	// The baseline followed the stale batch, so the next expected frame
	// is 5 again.
	_, drops = s.ingest(frames(5))
	assert.Zero(t, drops)
	_, drops = s.ingest(frames(7))
	assert.Equal(t, uint64(1), drops)
}
