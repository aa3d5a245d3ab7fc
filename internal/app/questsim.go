package app

import (
	"encoding/json"
	"log"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/STMARobotics/QuestNav/internal/config"
	"github.com/STMARobotics/QuestNav/internal/geometry"
	"github.com/STMARobotics/QuestNav/internal/questnav"
)

const (
	// trackingLossSeconds is the length of one simulated blackout. Config
	// validation keeps SIM_TRACKING_LOSS_INTERVAL above this.
	trackingLossSeconds = 2.0
	// batteryDrainPerSec empties a full battery in about three hours.
	batteryDrainPerSec = 0.01
)

// RunQuestSim stands in for the headset on the bench: it publishes frames,
// status values and command responses the way a real quest would, with
// optional gap and tracking-loss injection for exercising the consumers.
func RunQuestSim(broker string) error {
	log.Println("questsim: starting headset simulator")

	cfg := config.Get()
	if broker == "" {
		broker = cfg.MQTTBroker
	}

	// Command requests are decoded on the broker callback goroutine and
	// answered from the publish loop.
	var (
		reqMu    sync.Mutex
		requests []questnav.Command
	)

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.MQTTClientIDSim).
		SetWill(cfg.TopicConnected, "false", 1, true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("questsim: connected to MQTT broker at %s", broker)

	token := client.Subscribe(cfg.TopicCommandRequest, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var cmd questnav.Command
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			log.Printf("questsim: command unmarshal error: %v", err)
			return
		}
		reqMu.Lock()
		requests = append(requests, cmd)
		reqMu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("questsim: subscribed to %s", cfg.TopicCommandRequest)

	publishRetained := func(topic string, v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			log.Printf("questsim: marshal error (%s): %v", topic, err)
			return
		}
		if token := client.Publish(topic, 1, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("questsim: publish error (%s): %v", topic, token.Error())
		}
	}

	var (
		seq        uint64
		frameCount uint64
		lostCount  uint64
		tracking   = true
		battery    = float64(cfg.SimBatteryStart)
		offset     geometry.Pose
		lastStatus time.Time
	)

	// 1) Initial retained state; the broker's will clears the connected
	// flag on an unclean exit, the defer on a clean one.
	publishRetained(cfg.TopicConnected, true)
	defer publishRetained(cfg.TopicConnected, false)
	publishRetained(cfg.TopicTracking, tracking)
	publishRetained(cfg.TopicBattery, int(battery))
	publishRetained(cfg.TopicFrameCount, frameCount)
	publishRetained(cfg.TopicTrackingLost, lostCount)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.SimFrameInterval) * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	log.Println("questsim: publishing frames")

	for {
		select {
		case <-sigCh:
			log.Println("questsim: shutting down")
			return nil

		case now := <-ticker.C:
			elapsed := now.Sub(start).Seconds()

			// 2) Tracking loss episodes on a fixed cadence. The sequence
			// number holds still during a blackout, so recovery does not
			// look like a transport gap.
			if cfg.SimTrackingLossInterval > 0 {
				cycle := math.Mod(elapsed, float64(cfg.SimTrackingLossInterval))
				inLoss := cycle >= float64(cfg.SimTrackingLossInterval)-trackingLossSeconds
				if inLoss && tracking {
					tracking = false
					lostCount++
					log.Printf("questsim: tracking lost (episode %d)", lostCount)
					publishRetained(cfg.TopicTracking, tracking)
					publishRetained(cfg.TopicTrackingLost, lostCount)
				} else if !inLoss && !tracking {
					tracking = true
					log.Println("questsim: tracking recovered")
					publishRetained(cfg.TopicTracking, tracking)
				}
			}

			// 3) One frame per tick while tracking. Gap injection burns a
			// sequence number that is never published.
			if tracking {
				seq++
				if cfg.SimDropInterval > 0 && seq%uint64(cfg.SimDropInterval) == 0 {
					seq++
				}
				frame := questnav.PoseFrame{Sequence: seq, Pose: simPose(elapsed, offset)}
				if payload, err := json.Marshal(frame); err != nil {
					log.Printf("questsim: frame marshal error: %v", err)
				} else if token := client.Publish(cfg.TopicFrames, 1, false, payload); token.Wait() && token.Error() != nil {
					log.Printf("questsim: publish error (frames): %v", token.Error())
				}
				frameCount++
			}

			// 4) Slow status refresh.
			if now.Sub(lastStatus) >= time.Second {
				lastStatus = now
				battery = math.Max(0, battery-batteryDrainPerSec)
				latency := 3.0 + 2.0*math.Sin(elapsed/5.0)
				publishRetained(cfg.TopicBattery, int(battery))
				publishRetained(cfg.TopicLatency, latency)
				publishRetained(cfg.TopicFrameCount, frameCount)
			}

			// 5) Answer queued commands.
			reqMu.Lock()
			queued := requests
			requests = nil
			reqMu.Unlock()

			for _, cmd := range queued {
				ok := cmd.Kind == questnav.KindSetPose
				if ok {
					offset = poseOffset(cmd.Pose, simPath(elapsed))
					log.Printf("questsim: pose reset to %s", cmd.Pose)
				} else {
					log.Printf("questsim: rejecting command %s, unknown kind %q", cmd.ID, cmd.Kind)
				}

				resp := questnav.CommandResponse{RequestID: cmd.ID, Success: ok}
				payload, err := json.Marshal(resp)
				if err != nil {
					log.Printf("questsim: response marshal error: %v", err)
					continue
				}
				if token := client.Publish(cfg.TopicCommandResponse, 1, false, payload); token.Wait() && token.Error() != nil {
					log.Printf("questsim: publish error (command/response): %v", token.Error())
				}
			}
		}
	}
}

// simPath is the quest's idealized motion: a figure eight around the field
// origin at walking pace, yaw following the direction of travel, with a
// little headset bob in Z.
func simPath(elapsed float64) geometry.Pose {
	x := 2.0 * math.Sin(0.4*elapsed)
	y := 1.5 * math.Sin(0.8*elapsed)
	z := 1.4 + 0.05*math.Sin(1.3*elapsed)
	yaw := math.Atan2(1.2*math.Cos(0.8*elapsed), 0.8*math.Cos(0.4*elapsed))

	return geometry.NewPose(x, y, z, yaw)
}

// simPose applies the accumulated set_pose offset to the ideal path.
func simPose(elapsed float64, offset geometry.Pose) geometry.Pose {
	p := simPath(elapsed)
	p.Translation.X += offset.Translation.X
	p.Translation.Y += offset.Translation.Y
	p.Translation.Z += offset.Translation.Z
	p.Rotation.Yaw += offset.Rotation.Yaw
	return p
}

// poseOffset is the correction that moves the current path pose onto the
// requested one.
func poseOffset(target, current geometry.Pose) geometry.Pose {
	return geometry.Pose{
		Translation: geometry.Translation{
			X: target.Translation.X - current.Translation.X,
			Y: target.Translation.Y - current.Translation.Y,
			Z: target.Translation.Z - current.Translation.Z,
		},
		Rotation: geometry.Rotation{
			Yaw: target.Rotation.Yaw - current.Rotation.Yaw,
		},
	}
}
