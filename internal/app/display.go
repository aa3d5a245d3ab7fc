package app

import (
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/STMARobotics/QuestNav/internal/config"
	"github.com/STMARobotics/QuestNav/internal/geometry"
	"github.com/STMARobotics/QuestNav/internal/questnav"
	"github.com/STMARobotics/QuestNav/internal/transport"
)

// RunDisplay mirrors the headset status onto a 128x64 SSD1306 panel, for a
// glanceable readout on the robot cart without opening a laptop.
func RunDisplay(broker string) error {
	cfg := config.Get()
	if broker == "" {
		broker = cfg.MQTTBroker
	}

	// 1) Bring up the panel first so a broken wire fails fast.
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	i2cBus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer i2cBus.Close()

	dev, err := ssd1306.NewI2C(i2cBus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: panel initialized on I2C bus %q", cfg.DisplayI2CBus)

	if err := drawLines(dev, []string{"", "   QuestNav", "  Pose Monitor"}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	// 2) Broker connection and a client of our own.
	bus, err := transport.Dial(broker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	defer bus.Close()
	log.Printf("display: connected to MQTT broker at %s", broker)

	client, err := questnav.New(bus, questnav.Options{
		Topics:         topicsFromConfig(cfg),
		CommandTimeout: time.Duration(cfg.CommandTimeout) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}

	// 3) Tick at full rate, redraw at panel rate.
	tickTicker := time.NewTicker(time.Duration(cfg.TickInterval) * time.Millisecond)
	defer tickTicker.Stop()
	drawTicker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer drawTicker.Stop()

	var (
		last     questnav.Tick
		lastPose *geometry.Pose
		lastSeq  uint64
		haveTick bool
	)

	log.Println("display: starting update loop")

	for {
		select {
		case now := <-tickTicker.C:
			last = client.Tick(now)
			haveTick = true
			if len(last.Frames) > 0 {
				f := last.Frames[len(last.Frames)-1]
				p := f.Pose
				lastPose = &p
				lastSeq = f.Sequence
			}

		case <-drawTicker.C:
			if !haveTick {
				continue
			}
			if err := drawStatus(dev, last, lastPose, lastSeq); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

func drawStatus(dev *ssd1306.Dev, tick questnav.Tick, pose *geometry.Pose, seq uint64) error {
	st := tick.Status

	if !st.Connected && pose == nil {
		return drawLines(dev, []string{"", "   QuestNav", "  Waiting..."})
	}

	conn, trk := "no", "no"
	if st.Connected {
		conn = "yes"
	}
	if st.Tracking {
		trk = "yes"
	}

	battery := "--"
	if st.Battery != nil {
		battery = fmt.Sprintf("%d%%", *st.Battery)
	}
	rate := "--"
	if tick.Diagnostics.AverageRate != nil {
		rate = fmt.Sprintf("%.0fHz", *tick.Diagnostics.AverageRate)
	}

	lines := []string{
		fmt.Sprintf("Conn:%s Trk:%s", conn, trk),
		fmt.Sprintf("Bat:%s %s", battery, rate),
		"Pose: --",
		"",
	}
	if pose != nil {
		lines[2] = fmt.Sprintf("X%+.2f Y%+.2f", pose.Translation.X, pose.Translation.Y)
		lines[3] = fmt.Sprintf("Yaw%+.0f #%d", geometry.Degrees(pose.Rotation.Yaw), seq)
	}
	return drawLines(dev, lines)
}

// drawLines paints up to four text rows using the 7x13 basicfont, one row
// per 13 pixel line.
func drawLines(dev *ssd1306.Dev, lines []string) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range lines {
		if line == "" {
			continue
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawBytes([]byte(line))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
