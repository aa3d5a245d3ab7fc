package questnav

import "time"

// diagnostics holds the session's monotonic counters. Counters only ever
// increase; startTime is fixed when the client is created.
type diagnostics struct {
	totalFrames        uint64
	frameDrops         uint64
	trackingLostEvents uint64
	startTime          time.Time
}

// Snapshot is one tick's consistent diagnostics view. TrackingLostEvents
// counts tracking-lost edges seen by this client, which is independent of
// the loss counter the device reports about itself. AverageRate is nil
// until the rate window has at least one sample.
type Snapshot struct {
	TotalFrames        uint64
	FrameDrops         uint64
	TrackingLostEvents uint64
	Uptime             time.Duration
	AverageRate        *float64
}

func (d *diagnostics) snapshot(now time.Time, rate *rateEstimator) Snapshot {
	snap := Snapshot{
		TotalFrames:        d.totalFrames,
		FrameDrops:         d.frameDrops,
		TrackingLostEvents: d.trackingLostEvents,
		Uptime:             now.Sub(d.startTime),
	}
	if hz, ok := rate.average(); ok {
		snap.AverageRate = &hz
	}
	return snap
}
