package questnav

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/STMARobotics/QuestNav/internal/geometry"
)

// KindSetPose identifies a pose-reset request.
const KindSetPose = "set_pose"

// CommandStatus tracks a request through its lifetime.
type CommandStatus int

const (
	CommandPending CommandStatus = iota
	CommandAcked
	CommandRejected
	CommandTimedOut
	CommandSuperseded
)

func (s CommandStatus) String() string {
	switch s {
	case CommandPending:
		return "pending"
	case CommandAcked:
		return "acked"
	case CommandRejected:
		return "rejected"
	case CommandTimedOut:
		return "timed out"
	case CommandSuperseded:
		return "superseded"
	}
	return "unknown"
}

// Command is an outbound request to the headset. ID correlates the eventual
// response; SentAt and Status are local bookkeeping and stay off the wire.
type Command struct {
	ID   string        `json:"id"`
	Kind string        `json:"kind"`
	Pose geometry.Pose `json:"pose"`

	SentAt time.Time     `json:"-"`
	Status CommandStatus `json:"-"`
}

// CommandResponse is the headset's acknowledgement wire format.
type CommandResponse struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
}

// CommandResult reports a request reaching a terminal state during a tick.
// RTT is zero when the request timed out.
type CommandResult struct {
	ID     string
	Status CommandStatus
	RTT    time.Duration
}

// commander owns outbound requests. At most one request is pending at a
// time, a newer send supersedes the older one, and responses are matched by
// id during poll. Responses that match nothing are from superseded or timed
// out requests and are dropped without noise.
type commander struct {
	bus     Bus
	topic   string
	resp    Queue
	timeout time.Duration
	pending *Command
}

// send publishes a pose-reset request. The previous pending request is only
// superseded once the publish has succeeded, so a transport error leaves the
// commander's state untouched.
func (c *commander) send(pose geometry.Pose, now time.Time) (*Command, error) {
	cmd := &Command{
		ID:     fmt.Sprintf("cmd_%s", uuid.NewString()),
		Kind:   KindSetPose,
		Pose:   pose,
		SentAt: now,
		Status: CommandPending,
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", cmd.Kind, err)
	}
	if err := c.bus.Publish(c.topic, payload); err != nil {
		return nil, fmt.Errorf("publish %s request: %w", cmd.Kind, err)
	}
	if c.pending != nil {
		c.pending.Status = CommandSuperseded
	}
	c.pending = cmd
	return cmd, nil
}

// poll drains the response queue, resolves the pending request if one of the
// responses matches it, and finally applies the timeout: a request that has
// waited longer than the configured limit is closed out locally and any
// response that still arrives for it is dropped as stale.
func (c *commander) poll(now time.Time) []CommandResult {
	var results []CommandResult
	for _, payload := range c.resp.Drain() {
		var resp CommandResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			log.Printf("questnav: command response unmarshal error: %v", err)
			continue
		}
		if c.pending == nil || resp.RequestID != c.pending.ID {
			continue
		}
		status := CommandAcked
		if !resp.Success {
			status = CommandRejected
		}
		c.pending.Status = status
		results = append(results, CommandResult{
			ID:     c.pending.ID,
			Status: status,
			RTT:    now.Sub(c.pending.SentAt),
		})
		c.pending = nil
	}
	if c.pending != nil && now.Sub(c.pending.SentAt) > c.timeout {
		c.pending.Status = CommandTimedOut
		results = append(results, CommandResult{ID: c.pending.ID, Status: CommandTimedOut})
		c.pending = nil
	}
	return results
}
