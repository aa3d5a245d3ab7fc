package questnav

// DeviceStatus is the headset's state as of one tick, rebuilt from the
// latest value published on each status topic. Values persist across ticks
// until the device publishes again; pointer fields stay nil until the device
// has reported them at least once.
type DeviceStatus struct {
	Connected    bool
	Tracking     bool
	Battery      *int
	LatencyMS    float64
	FrameCount   *uint64
	TrackingLost *uint64
}

// StatusEvent is an edge notification, fired when a boolean status flag
// changes between ticks and never on steady state.
type StatusEvent int

const (
	EventConnected StatusEvent = iota
	EventDisconnected
	EventTrackingStarted
	EventTrackingLost
)

func (e StatusEvent) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventTrackingStarted:
		return "tracking started"
	case EventTrackingLost:
		return "tracking lost"
	}
	return "unknown"
}

// statusTracker compares each tick's flags against the previous tick's. The
// previous state starts out unknown, so the first update only records and
// never emits, whatever the flags say.
type statusTracker struct {
	prevConnected bool
	prevTracking  bool
	known         bool
}

// update emits at most one edge per flag per tick.
func (t *statusTracker) update(connected, tracking bool) []StatusEvent {
	var events []StatusEvent
	if t.known {
		if connected != t.prevConnected {
			if connected {
				events = append(events, EventConnected)
			} else {
				events = append(events, EventDisconnected)
			}
		}
		if tracking != t.prevTracking {
			if tracking {
				events = append(events, EventTrackingStarted)
			} else {
				events = append(events, EventTrackingLost)
			}
		}
	}
	t.prevConnected = connected
	t.prevTracking = tracking
	t.known = true
	return events
}
