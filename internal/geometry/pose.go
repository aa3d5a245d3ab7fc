package geometry

import (
	"fmt"
	"math"
)

// Translation is a 3D position on the field, in meters.
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation is an orientation as intrinsic roll/pitch/yaw, in radians.
type Rotation struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Pose combines a translation and a rotation, suitable for JSON and MQTT.
type Pose struct {
	Translation Translation `json:"translation"`
	Rotation    Rotation    `json:"rotation"`
}

// NewPose builds a pose from a position in meters and a yaw in radians,
// with roll and pitch zero. This covers the common reset case where the
// headset is assumed level.
func NewPose(x, y, z, yaw float64) Pose {
	return Pose{
		Translation: Translation{X: x, Y: y, Z: z},
		Rotation:    Rotation{Yaw: yaw},
	}
}

// Degrees converts radians to degrees for display.
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// Radians converts degrees to radians for user input.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// String renders the pose the way the consoles print it: meters and degrees.
func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f) m yaw=%.1f°",
		p.Translation.X, p.Translation.Y, p.Translation.Z,
		Degrees(p.Rotation.Yaw))
}
