package app

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/STMARobotics/QuestNav/internal/config"
	"github.com/STMARobotics/QuestNav/internal/geometry"
	"github.com/STMARobotics/QuestNav/internal/questnav"
	"github.com/STMARobotics/QuestNav/internal/transport"
)

// dropWarnThreshold is the per-tick drop count above which a stream gap is
// called out loudly instead of just counted.
const dropWarnThreshold = 5

// RunViewer drives the console viewer: one broker connection, one tick loop
// draining the headset's values, stdin commands handled between ticks.
func RunViewer(broker, sessionLogPath string) error {
	cfg := config.Get()
	if broker == "" {
		broker = cfg.MQTTBroker
	}

	if sessionLogPath != "" {
		f, err := os.OpenFile(sessionLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open session log: %w", err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, f))
		log.Printf("viewer: session log at %s", sessionLogPath)
	}

	bus, err := transport.Dial(broker, cfg.MQTTClientIDViewer)
	if err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	defer bus.Close()
	log.Printf("viewer: connected to MQTT broker at %s", broker)

	client, err := questnav.New(bus, questnav.Options{
		Topics:         topicsFromConfig(cfg),
		CommandTimeout: time.Duration(cfg.CommandTimeout) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("viewer: %w", err)
	}

	lines := make(chan string, 4)
	go readStdin(lines)

	ticker := time.NewTicker(time.Duration(cfg.TickInterval) * time.Millisecond)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	logEvery := time.Duration(cfg.ConsoleLogInterval) * time.Millisecond
	var (
		lastStatusLog    time.Time
		lowBatteryWarned bool
		lastTick         questnav.Tick
	)

	log.Println("viewer: running, type 'help' for commands")

	for {
		select {
		case <-sigCh:
			log.Println("viewer: shutting down")
			return nil

		case now := <-ticker.C:
			tick := client.Tick(now)
			lastTick = tick
			reportTick(tick, cfg.LowBatteryThreshold, &lowBatteryWarned)
			if now.Sub(lastStatusLog) >= logEvery {
				printStatus(tick)
				lastStatusLog = now
			}

		case ev := <-bus.Events():
			log.Printf("viewer: broker link %s", ev)

		case line, ok := <-lines:
			if !ok {
				// stdin closed; a nil channel never fires again.
				lines = nil
				continue
			}
			if quit := handleCommand(line, client, lastTick); quit {
				log.Println("viewer: shutting down")
				return nil
			}
		}
	}
}

// reportTick logs everything noteworthy that one tick surfaced.
func reportTick(tick questnav.Tick, lowBattery int, warned *bool) {
	for _, ev := range tick.Events {
		switch ev {
		case questnav.EventConnected:
			log.Println("viewer: quest connected, receiving data")
		case questnav.EventDisconnected:
			log.Println("viewer: quest disconnected")
		case questnav.EventTrackingStarted:
			log.Println("viewer: tracking started")
		case questnav.EventTrackingLost:
			log.Println("viewer: tracking lost")
		}
	}

	if tick.Dropped > dropWarnThreshold {
		log.Printf("viewer: dropped %d frames, stream gap", tick.Dropped)
	}

	if b := tick.Status.Battery; b != nil && *b < lowBattery && !*warned {
		log.Printf("viewer: quest battery low: %d%%", *b)
		*warned = true
	}

	for _, res := range tick.Commands {
		switch res.Status {
		case questnav.CommandAcked:
			log.Printf("viewer: command %s acked in %s", res.ID, res.RTT.Round(time.Millisecond))
		case questnav.CommandRejected:
			log.Printf("viewer: command %s rejected by quest", res.ID)
		case questnav.CommandTimedOut:
			log.Printf("viewer: command %s timed out", res.ID)
		}
	}
}

// printStatus writes the periodic console block.
func printStatus(tick questnav.Tick) {
	fmt.Println(statusLine(tick))
	if len(tick.Frames) > 0 {
		f := tick.Frames[len(tick.Frames)-1]
		fmt.Printf("[POSE ] seq=%d %s\n", f.Sequence, f.Pose)
	}
}

// statusLine renders one tick as the [STATE] console line. The counters this
// client keeps (frames/drops/lost) and the ones the quest reports about
// itself (devframes/devlost) are shown side by side; device values print as
// -- until the quest has published them.
func statusLine(tick questnav.Tick) string {
	st := tick.Status
	d := tick.Diagnostics

	battery := "--"
	if st.Battery != nil {
		battery = fmt.Sprintf("%d%%", *st.Battery)
	}
	rate := "--"
	if d.AverageRate != nil {
		rate = fmt.Sprintf("%.1fHz", *d.AverageRate)
	}
	devFrames := "--"
	if st.FrameCount != nil {
		devFrames = fmt.Sprintf("%d", *st.FrameCount)
	}
	devLost := "--"
	if st.TrackingLost != nil {
		devLost = fmt.Sprintf("%d", *st.TrackingLost)
	}

	return fmt.Sprintf(
		"[STATE] connected=%t tracking=%t battery=%s rate=%s latency=%.1fms frames=%d drops=%d lost=%d devframes=%s devlost=%s up=%s",
		st.Connected, st.Tracking, battery, rate, st.LatencyMS,
		d.TotalFrames, d.FrameDrops, d.TrackingLostEvents,
		devFrames, devLost, formatUptime(d.Uptime),
	)
}

// formatUptime renders a session duration as minutes:seconds, minutes
// running past 59 rather than rolling into hours.
func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  reset                  reset quest pose to the field origin")
	fmt.Println("  reset X Y Z [YAW_DEG]  reset quest pose to the given field pose")
	fmt.Println("  status                 print the latest status block")
	fmt.Println("  help                   this text")
	fmt.Println("  quit                   exit")
}

// handleCommand runs one stdin line and reports whether the viewer should
// exit.
func handleCommand(line string, client *questnav.Client, last questnav.Tick) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "help":
		printHelp()
	case "status":
		printStatus(last)
	case "quit", "exit":
		return true
	case "reset":
		pose, err := parseResetArgs(fields[1:])
		if err != nil {
			fmt.Println("viewer:", err)
			return false
		}
		cmd, err := client.ResetPose(pose)
		if err != nil {
			log.Printf("viewer: reset failed: %v", err)
			return false
		}
		log.Printf("viewer: sent %s %s as %s", cmd.Kind, cmd.Pose, cmd.ID)
	default:
		fmt.Printf("viewer: unknown command %q, type 'help'\n", fields[0])
	}
	return false
}

// parseResetArgs turns "reset" arguments into a pose. Bare "reset" targets
// the field origin; otherwise X Y Z in meters plus an optional yaw in
// degrees. Anything non-finite is refused before a command is built.
func parseResetArgs(args []string) (geometry.Pose, error) {
	if len(args) == 0 {
		return geometry.Pose{}, nil
	}
	if len(args) != 3 && len(args) != 4 {
		return geometry.Pose{}, fmt.Errorf("usage: reset [X Y Z [YAW_DEG]]")
	}

	vals := make([]float64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return geometry.Pose{}, fmt.Errorf("bad coordinate %q", arg)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return geometry.Pose{}, fmt.Errorf("coordinate %q is not finite", arg)
		}
		vals[i] = v
	}

	yaw := 0.0
	if len(vals) == 4 {
		yaw = geometry.Radians(vals[3])
	}
	return geometry.NewPose(vals[0], vals[1], vals[2], yaw), nil
}

func readStdin(lines chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	close(lines)
}
