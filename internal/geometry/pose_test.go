package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPoseIsLevel(t *testing.T) {
	t.Parallel()

	p := NewPose(1.2, -3.4, 0.5, math.Pi/2)
	assert.InDelta(t, 1.2, p.Translation.X, 1e-12)
	assert.InDelta(t, -3.4, p.Translation.Y, 1e-12)
	assert.InDelta(t, 0.5, p.Translation.Z, 1e-12)
	assert.Zero(t, p.Rotation.Roll)
	assert.Zero(t, p.Rotation.Pitch)
	assert.InDelta(t, math.Pi/2, p.Rotation.Yaw, 1e-12)
}

func TestAngleConversionRoundTrip(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 180.0, Degrees(math.Pi), 1e-9)
	assert.InDelta(t, math.Pi, Radians(180.0), 1e-9)
	for _, deg := range []float64{-270, -90, 0, 45, 359.5} {
		assert.InDelta(t, deg, Degrees(Radians(deg)), 1e-9)
	}
}

func TestPoseString(t *testing.T) {
	t.Parallel()

	p := NewPose(1.0, 2.0, 0.0, math.Pi)
	assert.Equal(t, "(1.000, 2.000, 0.000) m yaw=180.0°", p.String())
}
