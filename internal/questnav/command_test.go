package questnav

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/STMARobotics/QuestNav/internal/geometry"
)

func respond(t *testing.T, bus *memBus, id string, success bool) {
	t.Helper()
	payload, err := json.Marshal(CommandResponse{RequestID: id, Success: success})
	require.NoError(t, err)
	bus.inject(DefaultTopics().CommandResponse, payload)
}

func TestCommandSendPublishesRequest(t *testing.T) {
	t.Parallel()

	bus := newMemBus()
	c, err := New(bus, Options{})
	require.NoError(t, err)

	cmd, err := c.ResetPose(geometry.NewPose(1.5, 2.0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, CommandPending, cmd.Status)
	assert.Equal(t, KindSetPose, cmd.Kind)
	assert.NotEmpty(t, cmd.ID)

	sent := bus.published[DefaultTopics().CommandRequest]
	require.Len(t, sent, 1)

	var wire Command
	require.NoError(t, json.Unmarshal(sent[0], &wire))
	assert.Equal(t, cmd.ID, wire.ID)
	assert.InDelta(t, 1.5, wire.Pose.Translation.X, 1e-9)
}

func TestCommandAcknowledged(t *testing.T) {
	t.Parallel()

	bus := newMemBus()
	c, err := New(bus, Options{})
	require.NoError(t, err)

	cmd, err := c.ResetPose(geometry.NewPose(0, 0, 0, 0))
	require.NoError(t, err)

	respond(t, bus, cmd.ID, true)
	tick := c.Tick(cmd.SentAt.Add(40 * time.Millisecond))

	require.Len(t, tick.Commands, 1)
	assert.Equal(t, cmd.ID, tick.Commands[0].ID)
	assert.Equal(t, CommandAcked, tick.Commands[0].Status)
	assert.Equal(t, 40*time.Millisecond, tick.Commands[0].RTT)
	assert.Equal(t, CommandAcked, cmd.Status)
}

func TestCommandRejected(t *testing.T) {
	t.Parallel()

	bus := newMemBus()
	c, err := New(bus, Options{})
	require.NoError(t, err)

	cmd, err := c.ResetPose(geometry.NewPose(0, 0, 0, 0))
	require.NoError(t, err)

	respond(t, bus, cmd.ID, false)
	tick := c.Tick(cmd.SentAt.Add(10 * time.Millisecond))

	require.Len(t, tick.Commands, 1)
	assert.Equal(t, CommandRejected, tick.Commands[0].Status)
	assert.Equal(t, CommandRejected, cmd.Status)
}

func TestCommandStaleResponseDiscarded(t *testing.T) {
	t.Parallel()

	bus := newMemBus()
	c, err := New(bus, Options{})
	require.NoError(t, err)

	cmd, err := c.ResetPose(geometry.NewPose(0, 0, 0, 0))
	require.NoError(t, err)

	// A response for some long-gone request must not resolve the pending
	// one.
	respond(t, bus, "cmd_ffffffff", true)
	tick := c.Tick(cmd.SentAt.Add(10 * time.Millisecond))
	assert.Empty(t, tick.Commands)
	assert.Equal(t, CommandPending, cmd.Status)

	respond(t, bus, cmd.ID, true)
	tick = c.Tick(cmd.SentAt.Add(20 * time.Millisecond))
	require.Len(t, tick.Commands, 1)
	assert.Equal(t, CommandAcked, tick.Commands[0].Status)
}

func TestCommandResponseWithNothingPending(t *testing.T) {
	t.Parallel()

	bus := newMemBus()
	c, err := New(bus, Options{})
	require.NoError(t, err)

	respond(t, bus, "cmd_orphan", true)
	tick := c.Tick(time.Now())
	assert.Empty(t, tick.Commands)
}

func TestCommandSupersededByNewerSend(t *testing.T) {
	t.Parallel()

	bus := newMemBus()
	c, err := New(bus, Options{})
	require.NoError(t, err)

	first, err := c.ResetPose(geometry.NewPose(1, 0, 0, 0))
	require.NoError(t, err)
	second, err := c.ResetPose(geometry.NewPose(2, 0, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, CommandSuperseded, first.Status)
	assert.Equal(t, CommandPending, second.Status)

	// The superseded request's response no longer matches anything.
	respond(t, bus, first.ID, true)
	tick := c.Tick(second.SentAt.Add(10 * time.Millisecond))
	assert.Empty(t, tick.Commands)
	assert.Equal(t, CommandPending, second.Status)

	respond(t, bus, second.ID, true)
	tick = c.Tick(second.SentAt.Add(20 * time.Millisecond))
	require.Len(t, tick.Commands, 1)
	assert.Equal(t, second.ID, tick.Commands[0].ID)
	assert.Equal(t, CommandAcked, second.Status)
}

func TestCommandPublishFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	bus := newMemBus()
	c, err := New(bus, Options{})
	require.NoError(t, err)

	first, err := c.ResetPose(geometry.NewPose(0, 0, 0, 0))
	require.NoError(t, err)

	bus.publishErr = errors.New("broker unreachable")
	cmd, err := c.ResetPose(geometry.NewPose(9, 9, 0, 0))
	assert.Error(t, err)
	assert.Nil(t, cmd)

	// The failed send must not have superseded the in-flight request.
	assert.Equal(t, CommandPending, first.Status)

	bus.publishErr = nil
	respond(t, bus, first.ID, true)
	tick := c.Tick(first.SentAt.Add(10 * time.Millisecond))
	require.Len(t, tick.Commands, 1)
	assert.Equal(t, first.ID, tick.Commands[0].ID)
}

func TestCommandTimesOut(t *testing.T) {
	t.Parallel()

	bus := newMemBus()
	c, err := New(bus, Options{CommandTimeout: time.Second})
	require.NoError(t, err)

	cmd, err := c.ResetPose(geometry.NewPose(0, 0, 0, 0))
	require.NoError(t, err)

	// Inside the window there is nothing to report.
	tick := c.Tick(cmd.SentAt.Add(900 * time.Millisecond))
	assert.Empty(t, tick.Commands)

	tick = c.Tick(cmd.SentAt.Add(1100 * time.Millisecond))
	require.Len(t, tick.Commands, 1)
	assert.Equal(t, CommandTimedOut, tick.Commands[0].Status)
	assert.Zero(t, tick.Commands[0].RTT)
	assert.Equal(t, CommandTimedOut, cmd.Status)

	// A response limping in after the timeout is stale and silent.
	respond(t, bus, cmd.ID, true)
	tick = c.Tick(cmd.SentAt.Add(2 * time.Second))
	assert.Empty(t, tick.Commands)
	assert.Equal(t, CommandTimedOut, cmd.Status)
}

func TestCommandResponseBeatsTimeoutInSameTick(t *testing.T) {
	t.Parallel()

	// When the answer and the deadline land in the same tick, the answer
	// wins: responses are resolved before the timeout check runs.
	bus := newMemBus()
	c, err := New(bus, Options{CommandTimeout: time.Second})
	require.NoError(t, err)

	cmd, err := c.ResetPose(geometry.NewPose(0, 0, 0, 0))
	require.NoError(t, err)

	respond(t, bus, cmd.ID, true)
	tick := c.Tick(cmd.SentAt.Add(5 * time.Second))

	require.Len(t, tick.Commands, 1)
	assert.Equal(t, CommandAcked, tick.Commands[0].Status)
}

func TestCommandStatusString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pending", CommandPending.String())
	assert.Equal(t, "superseded", CommandSuperseded.String())
	assert.Equal(t, "unknown", CommandStatus(99).String())
}
