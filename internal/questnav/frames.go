package questnav

import (
	"time"

	"github.com/STMARobotics/QuestNav/internal/geometry"
)

// PoseFrame is a single tracked pose published by the headset. Sequence is
// assigned on the device and increases by one per frame; ObservedAt is
// stamped locally when the frame is drained from the transport.
type PoseFrame struct {
	Sequence   uint64        `json:"sequence"`
	Pose       geometry.Pose `json:"pose"`
	ObservedAt time.Time     `json:"-"`
}

// frameSequencer watches the sequence numbers of the incoming frame stream
// and detects gaps. The last delivered sequence number is its only state.
type frameSequencer struct {
	last     uint64
	haveLast bool
}

// ingest takes one tick's drained batch in delivery order and returns the
// frames to forward plus the number of frames lost immediately before the
// batch. All frames are forwarded, including duplicates, since the transport
// may deliver a frame more than once. The gap check runs against the first
// frame of the batch only; continuity inside the batch is covered by the
// transport's per-topic ordering.
func (s *frameSequencer) ingest(batch []PoseFrame) (accepted []PoseFrame, drops uint64) {
	if len(batch) == 0 {
		return nil, 0
	}
	if s.haveLast {
		expected := s.last + 1
		if first := batch[0].Sequence; first > expected {
			drops = first - expected
		}
	}
	s.last = batch[len(batch)-1].Sequence
	s.haveLast = true
	return batch, drops
}
