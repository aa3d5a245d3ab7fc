package app

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/STMARobotics/QuestNav/internal/config"
	"github.com/STMARobotics/QuestNav/internal/geometry"
	"github.com/STMARobotics/QuestNav/internal/questnav"
	"github.com/STMARobotics/QuestNav/internal/transport"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// webStatus is the dashboard's wire format, refreshed once per tick. The
// device_* counters are the quest's own, separate from the ones this client
// counts, and absent until the quest has reported them.
type webStatus struct {
	Connected          bool           `json:"connected"`
	Tracking           bool           `json:"tracking"`
	Battery            *int           `json:"battery,omitempty"`
	LatencyMS          float64        `json:"latency_ms"`
	Pose               *geometry.Pose `json:"pose,omitempty"`
	Sequence           uint64         `json:"sequence"`
	RateHz             *float64       `json:"rate_hz,omitempty"`
	TotalFrames        uint64         `json:"total_frames"`
	FrameDrops         uint64         `json:"frame_drops"`
	TrackingLost       uint64         `json:"tracking_lost"`
	DeviceFrameCount   *uint64        `json:"device_frame_count,omitempty"`
	DeviceTrackingLost *uint64        `json:"device_tracking_lost,omitempty"`
	UptimeSeconds      float64        `json:"uptime_seconds"`
}

type resetRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	YawDeg float64 `json:"yaw_deg"`
}

// RunWeb serves the browser dashboard: a JSON API, a websocket feed and the
// static page, all fed by a headset client of its own.
func RunWeb(broker string) error {
	cfg := config.Get()
	if broker == "" {
		broker = cfg.MQTTBroker
	}

	var (
		mu       sync.RWMutex
		latest   webStatus
		haveTick bool
	)

	// 1) Connect to the broker and build the client
	bus, err := transport.Dial(broker, cfg.MQTTClientIDWeb)
	if err != nil {
		return fmt.Errorf("web: %w", err)
	}
	defer bus.Close()
	log.Printf("web: connected to MQTT broker at %s", broker)

	client, err := questnav.New(bus, questnav.Options{
		Topics:         topicsFromConfig(cfg),
		CommandTimeout: time.Duration(cfg.CommandTimeout) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("web: %w", err)
	}

	// 2) Tick loop on its own goroutine; handlers only touch the snapshot.
	// Reset requests funnel through a channel so the client stays
	// single-goroutine.
	resetCh := make(chan geometry.Pose, 1)
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.TickInterval) * time.Millisecond)
		defer ticker.Stop()

		var (
			lastPose *geometry.Pose
			lastSeq  uint64
		)
		for {
			select {
			case now := <-ticker.C:
				tick := client.Tick(now)
				for _, ev := range tick.Events {
					log.Printf("web: quest %s", ev)
				}
				if len(tick.Frames) > 0 {
					f := tick.Frames[len(tick.Frames)-1]
					p := f.Pose
					lastPose = &p
					lastSeq = f.Sequence
				}
				mu.Lock()
				latest = buildWebStatus(tick, lastPose, lastSeq)
				haveTick = true
				mu.Unlock()

			case pose := <-resetCh:
				cmd, err := client.ResetPose(pose)
				if err != nil {
					log.Printf("web: reset failed: %v", err)
					continue
				}
				log.Printf("web: sent %s %s as %s", cmd.Kind, cmd.Pose, cmd.ID)
			}
		}
	}()

	snapshot := func() (webStatus, bool) {
		mu.RLock()
		defer mu.RUnlock()
		return latest, haveTick
	}

	// 3) JSON API endpoint: latest status
	http.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		status, ok := snapshot()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Pose reset, queued onto the tick goroutine
	http.HandleFunc("/api/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var req resetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if !finite(req.X, req.Y, req.Z, req.YawDeg) {
			http.Error(w, "pose values must be finite", http.StatusBadRequest)
			return
		}
		select {
		case resetCh <- geometry.NewPose(req.X, req.Y, req.Z, geometry.Radians(req.YawDeg)):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprintln(w, `{"status":"queued"}`)
		default:
			http.Error(w, "a reset is already queued", http.StatusTooManyRequests)
		}
	})

	// 5) Websocket feed for the live view
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		go pushStatusWS(conn, time.Duration(cfg.TickInterval)*time.Millisecond, snapshot)
	})

	// 6) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}

// pushStatusWS streams the snapshot to one websocket client until the
// connection dies.
func pushStatusWS(conn *websocket.Conn, interval time.Duration, snapshot func() (webStatus, bool)) {
	defer conn.Close()

	// Drain reads so close frames from the browser are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		status, ok := snapshot()
		if !ok {
			continue
		}
		if err := conn.WriteJSON(status); err != nil {
			return
		}
	}
}

func buildWebStatus(tick questnav.Tick, pose *geometry.Pose, seq uint64) webStatus {
	st := tick.Status
	d := tick.Diagnostics
	return webStatus{
		Connected:          st.Connected,
		Tracking:           st.Tracking,
		Battery:            st.Battery,
		LatencyMS:          st.LatencyMS,
		Pose:               pose,
		Sequence:           seq,
		RateHz:             d.AverageRate,
		TotalFrames:        d.TotalFrames,
		FrameDrops:         d.FrameDrops,
		TrackingLost:       d.TrackingLostEvents,
		DeviceFrameCount:   st.FrameCount,
		DeviceTrackingLost: st.TrackingLost,
		UptimeSeconds:      d.Uptime.Seconds(),
	}
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
