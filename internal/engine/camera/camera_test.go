package camera

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenery/pkg/math"
)

func TestOrbitPosition(t *testing.T) {
	c := NewOrbitCamera()
	c.Center = math.Vec3{X: 1, Y: 2, Z: 3}
	c.Distance = 5
	c.Pitch = 0
	c.Yaw = 0

	assert.InDelta(t, 1, c.Position().X, 1e-5)
	assert.InDelta(t, 2, c.Position().Y, 1e-5)
	assert.InDelta(t, 8, c.Position().Z, 1e-5)

	c.Yaw = math32.Pi / 2
	assert.InDelta(t, 6, c.Position().X, 1e-5)
	assert.InDelta(t, 3, c.Position().Z, 1e-4)
}

func TestViewLooksAtCenter(t *testing.T) {
	c := NewOrbitCamera()
	c.Center = math.Vec3{X: 4, Z: -2}
	c.Yaw = 1.1

	// The center lands on the view axis at the orbit distance.
	p := c.ViewMatrix().TransformPoint(c.Center)
	assert.InDelta(t, 0, p.X, 1e-4)
	assert.InDelta(t, 0, p.Y, 1e-4)
	assert.InDelta(t, -c.Distance, p.Z, 1e-4)
}

func TestCenterIsVisible(t *testing.T) {
	c := NewOrbitCamera()
	f := math.NewFrustum(c.Projection().Mul(c.ViewMatrix()))
	box := math.BoundingBox{Min: math.Vec3{X: -0.1, Y: -0.1, Z: -0.1}, Max: math.Vec3{X: 0.1, Y: 0.1, Z: 0.1}}
	assert.True(t, math.IsBoxInFrustum(&f, box))

	// A box straight behind the eye is not.
	eye := c.Position()
	behind := eye.Add(eye.Sub(c.Center).Normalize().Scale(5))
	box = math.BoundingBox{Min: behind.Sub(math.Vec3{X: 0.1, Y: 0.1, Z: 0.1}), Max: behind.Add(math.Vec3{X: 0.1, Y: 0.1, Z: 0.1})}
	assert.False(t, math.IsBoxInFrustum(&f, box))
}

func TestHandleDragClampsPitch(t *testing.T) {
	c := NewOrbitCamera()
	c.HandleDrag(0, 1e6)
	assert.Equal(t, c.MaxPitch, c.Pitch)
	c.HandleDrag(0, -1e6)
	assert.Equal(t, c.MinPitch, c.Pitch)

	yaw := c.Yaw
	c.HandleDrag(100, 0)
	assert.InDelta(t, yaw-100*c.DragSensitivity, c.Yaw, 1e-6)
}

func TestHandleZoomClamps(t *testing.T) {
	c := NewOrbitCamera()
	c.HandleZoom(100)
	assert.Equal(t, c.MinDistance, c.Distance)
	for i := 0; i < 1000; i++ {
		c.HandleZoom(-5)
	}
	assert.Equal(t, c.MaxDistance, c.Distance)
}

func TestHandleMovement(t *testing.T) {
	c := NewOrbitCamera()
	c.Distance = 100
	c.Yaw = 0

	// Forward moves into the scene, away from the eye on +Z.
	c.HandleMovement(1, 0, 0)
	assert.InDelta(t, -1, c.Center.Z, 1e-5)
	assert.InDelta(t, 0, c.Center.X, 1e-5)

	c.HandleMovement(0, 1, 1)
	assert.InDelta(t, 1, c.Center.X, 1e-5)
	assert.InDelta(t, 1, c.Center.Y, 1e-5)
}

func TestFitToBounds(t *testing.T) {
	c := NewOrbitCamera()
	box := math.BoundingBox{Min: math.Vec3{X: -50, Y: 0, Z: -50}, Max: math.Vec3{X: 50, Y: 20, Z: 50}}
	c.FitToBounds(box)

	assert.Equal(t, box.Center(), c.Center)
	require.Greater(t, c.Distance, box.Size().Length()/2)
	assert.GreaterOrEqual(t, c.Lens.Far, c.Distance+box.Size().Length())

	f := math.NewFrustum(c.Projection().Mul(c.ViewMatrix()))
	for _, corner := range box.Corners() {
		corner = c.Center.Add(corner.Sub(c.Center).Scale(0.95))
		p := math.BoundingBox{Min: corner, Max: corner}
		assert.True(t, math.IsBoxInFrustum(&f, p), "corner %v", corner)
	}

	before := *c
	c.FitToBounds(math.EmptyBox())
	assert.Equal(t, before, *c, "an empty box leaves the camera alone")
}

func TestSweep(t *testing.T) {
	c := NewOrbitCamera()
	poses := c.Sweep(4)
	require.Len(t, poses, 4)

	for _, p := range poses {
		assert.Equal(t, c.Center, p.Target)
		assert.InDelta(t, c.Distance, p.Eye.Distance(c.Center), 1e-4)
	}
	assert.Equal(t, c.Position(), poses[0].Eye)
	// Opposite poses mirror through the center on XZ.
	assert.InDelta(t, -poses[0].Eye.Z, poses[2].Eye.Z, 1e-4)
	assert.Equal(t, float32(0), c.Yaw, "sweeping does not move the camera")
}

func TestPoseView(t *testing.T) {
	p := Pose{Eye: math.Vec3{Z: 10}, Target: math.Vec3{}}
	assert.True(t, p.View().ApproxEqual(math.LookAt(p.Eye, p.Target, math.Vec3{Y: 1}), 1e-6))
}
