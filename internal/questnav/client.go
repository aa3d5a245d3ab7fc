package questnav

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/STMARobotics/QuestNav/internal/geometry"
)

// Bus is the slice of the transport the client needs: publish a payload and
// subscribe to a topic's queue. Any substrate that buffers deliveries and
// preserves per-topic order can stand in.
type Bus interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string) (Queue, error)
}

// Queue hands out everything published on one topic since the previous
// drain, in delivery order, without blocking.
type Queue interface {
	Drain() [][]byte
}

// Topics names the value channels shared with the headset.
type Topics struct {
	Frames          string
	Connected       string
	Tracking        string
	Battery         string
	Latency         string
	FrameCount      string
	TrackingLost    string
	CommandRequest  string
	CommandResponse string
}

// DefaultTopics returns the topic names the headset publishes on.
func DefaultTopics() Topics {
	return Topics{
		Frames:          "questnav/frames",
		Connected:       "questnav/status/connected",
		Tracking:        "questnav/status/tracking",
		Battery:         "questnav/status/battery",
		Latency:         "questnav/status/latency",
		FrameCount:      "questnav/status/frame_count",
		TrackingLost:    "questnav/status/tracking_lost",
		CommandRequest:  "questnav/command/request",
		CommandResponse: "questnav/command/response",
	}
}

// Options tunes a Client. The zero value selects the default topics and a
// two second command timeout.
type Options struct {
	Topics         Topics
	CommandTimeout time.Duration
}

const defaultCommandTimeout = 2 * time.Second

// Tick is one scheduler pass over everything the transport delivered since
// the previous pass.
type Tick struct {
	Frames      []PoseFrame // accepted this tick, in delivery order
	Dropped     uint64      // frames lost immediately before this batch
	Status      DeviceStatus
	Events      []StatusEvent
	Commands    []CommandResult
	Diagnostics Snapshot
}

// Client consumes the headset's published values and issues commands to it.
// All methods must be called from the same goroutine; the transport buffers
// concurrently and the client only drains.
type Client struct {
	topics Topics

	framesQ       Queue
	connectedQ    Queue
	trackingQ     Queue
	batteryQ      Queue
	latencyQ      Queue
	frameCountQ   Queue
	trackingLostQ Queue

	seq    frameSequencer
	rate   rateEstimator
	status statusTracker
	cmds   commander
	diag   diagnostics

	connected      bool
	tracking       bool
	battery        int
	haveBattery    bool
	latencyMS      float64
	frameCount     uint64
	haveFrameCount bool
	lostCount      uint64
	haveLostCount  bool
}

// New subscribes to every topic and returns a client ready to tick, or the
// first subscription error.
func New(bus Bus, opts Options) (*Client, error) {
	topics := opts.Topics
	if topics == (Topics{}) {
		topics = DefaultTopics()
	}
	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	c := &Client{topics: topics}

	var err error
	subscribe := func(topic string) Queue {
		if err != nil {
			return nil
		}
		var q Queue
		if q, err = bus.Subscribe(topic); err != nil {
			err = fmt.Errorf("subscribe %s: %w", topic, err)
		}
		return q
	}
	c.framesQ = subscribe(topics.Frames)
	c.connectedQ = subscribe(topics.Connected)
	c.trackingQ = subscribe(topics.Tracking)
	c.batteryQ = subscribe(topics.Battery)
	c.latencyQ = subscribe(topics.Latency)
	c.frameCountQ = subscribe(topics.FrameCount)
	c.trackingLostQ = subscribe(topics.TrackingLost)
	respQ := subscribe(topics.CommandResponse)
	if err != nil {
		return nil, err
	}

	c.cmds = commander{bus: bus, topic: topics.CommandRequest, resp: respQ, timeout: timeout}
	c.diag.startTime = time.Now()
	return c, nil
}

// Tick drains every queue once and folds the results into the session
// state. It never blocks: a tick with nothing delivered returns the
// persisted status and untouched counters.
func (c *Client) Tick(now time.Time) Tick {
	// 1) Frames: validate the batch, count gaps, feed the rate window.
	accepted, drops := c.seq.ingest(c.drainFrames(now))
	c.diag.totalFrames += uint64(len(accepted))
	c.diag.frameDrops += drops
	for range accepted {
		c.rate.observe(now)
	}

	// 2) Status values: newest publication per topic wins, previous values
	// persist when a topic was quiet.
	applyLatest(c.connectedQ, c.topics.Connected, &c.connected)
	applyLatest(c.trackingQ, c.topics.Tracking, &c.tracking)
	if applyLatest(c.batteryQ, c.topics.Battery, &c.battery) {
		c.haveBattery = true
	}
	applyLatest(c.latencyQ, c.topics.Latency, &c.latencyMS)
	if applyLatest(c.frameCountQ, c.topics.FrameCount, &c.frameCount) {
		c.haveFrameCount = true
	}
	if applyLatest(c.trackingLostQ, c.topics.TrackingLost, &c.lostCount) {
		c.haveLostCount = true
	}
	status := c.deviceStatus()

	// 3) Edges since the previous tick.
	events := c.status.update(status.Connected, status.Tracking)
	for _, e := range events {
		if e == EventTrackingLost {
			c.diag.trackingLostEvents++
		}
	}

	// 4) Command responses and timeouts.
	results := c.cmds.poll(now)

	return Tick{
		Frames:      accepted,
		Dropped:     drops,
		Status:      status,
		Events:      events,
		Commands:    results,
		Diagnostics: c.diag.snapshot(now, &c.rate),
	}
}

// ResetPose asks the headset to re-seat its pose estimate at the given
// field pose. The returned handle's Status is updated as later ticks
// observe the response, or its absence.
func (c *Client) ResetPose(pose geometry.Pose) (*Command, error) {
	return c.cmds.send(pose, time.Now())
}

func (c *Client) drainFrames(now time.Time) []PoseFrame {
	payloads := c.framesQ.Drain()
	if len(payloads) == 0 {
		return nil
	}
	frames := make([]PoseFrame, 0, len(payloads))
	for _, payload := range payloads {
		var f PoseFrame
		if err := json.Unmarshal(payload, &f); err != nil {
			log.Printf("questnav: pose frame unmarshal error: %v", err)
			continue
		}
		f.ObservedAt = now
		frames = append(frames, f)
	}
	return frames
}

func (c *Client) deviceStatus() DeviceStatus {
	st := DeviceStatus{
		Connected: c.connected,
		Tracking:  c.tracking,
		LatencyMS: c.latencyMS,
	}
	if c.haveBattery {
		b := c.battery
		st.Battery = &b
	}
	if c.haveFrameCount {
		n := c.frameCount
		st.FrameCount = &n
	}
	if c.haveLostCount {
		n := c.lostCount
		st.TrackingLost = &n
	}
	return st
}

// applyLatest decodes the newest payload drained from q into dst and
// reports whether it did. dst is left untouched when the topic was quiet or
// the payload is malformed.
func applyLatest[T any](q Queue, topic string, dst *T) bool {
	payloads := q.Drain()
	if len(payloads) == 0 {
		return false
	}
	payload := payloads[len(payloads)-1]
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		log.Printf("questnav: %s unmarshal error: %v", topic, err)
		return false
	}
	*dst = v
	return true
}
