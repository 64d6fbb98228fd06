// Package camera provides the cameras used to drive culling: an orbit
// camera for interactive inspection and sweeps, and a fixed eye/target pose.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/scenery/pkg/math"
)

var up = math.Vec3{Y: 1}

// Lens holds the projection parameters.
type Lens struct {
	FovY   float32 // Vertical field of view, radians
	Aspect float32 // Width / height
	Near   float32
	Far    float32
}

// DefaultLens returns a 60 degree 16:9 lens.
func DefaultLens() Lens {
	return Lens{FovY: math32.Pi / 3, Aspect: 16.0 / 9.0, Near: 0.1, Far: 1000}
}

// Projection returns the perspective projection of the lens.
func (l Lens) Projection() math.Mat4 {
	return math.Perspective(l.FovY, l.Aspect, l.Near, l.Far)
}

// Pose is a camera at Eye looking at Target with +Y up.
type Pose struct {
	Eye    math.Vec3
	Target math.Vec3
}

// View returns the view matrix of the pose.
func (p Pose) View() math.Mat4 {
	return math.LookAt(p.Eye, p.Target, up)
}

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	// Center point to orbit around
	Center math.Vec3

	// Spherical coordinates
	Distance float32 // Distance from center
	Pitch    float32 // Vertical angle, radians
	Yaw      float32 // Horizontal angle, radians

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32

	Lens Lens
}

// NewOrbitCamera creates a new orbit camera with default settings.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:        10,
		Pitch:           0.5,
		MinDistance:     0.5,
		MaxDistance:     5000,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		Lens:            DefaultLens(),
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	cp, sp := math32.Cos(c.Pitch), math32.Sin(c.Pitch)
	return c.Center.Add(math.Vec3{
		X: c.Distance * cp * math32.Sin(c.Yaw),
		Y: c.Distance * sp,
		Z: c.Distance * cp * math32.Cos(c.Yaw),
	})
}

// Pose returns the current eye and target.
func (c *OrbitCamera) Pose() Pose {
	return Pose{Eye: c.Position(), Target: c.Center}
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	return c.Pose().View()
}

// Projection returns the projection matrix of the camera's lens.
func (c *OrbitCamera) Projection() math.Mat4 {
	return c.Lens.Projection()
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.Yaw -= deltaX * c.DragSensitivity
	c.Pitch = clamp(c.Pitch+deltaY*c.DragSensitivity, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance = clamp(c.Distance-delta*c.Distance*c.ZoomSensitivity, c.MinDistance, c.MaxDistance)
}

// HandleMovement pans the center point on the XZ plane relative to the
// current yaw, plus vertically by up.
func (c *OrbitCamera) HandleMovement(forward, right, upward float32) {
	// Speed scales with distance for consistent feel
	speed := c.Distance * 0.01

	sy, cy := math32.Sin(c.Yaw), math32.Cos(c.Yaw)
	c.Center.X += (-sy*forward + cy*right) * speed
	c.Center.Z += (-cy*forward - sy*right) * speed
	c.Center.Y += upward * speed
}

// FitToBounds centers the camera on box and backs off until the box's
// bounding sphere fits the vertical field of view. The far plane is pushed
// out to keep the whole box in range.
func (c *OrbitCamera) FitToBounds(box math.BoundingBox) {
	if box.IsEmpty() {
		return
	}
	c.Center = box.Center()
	radius := box.Size().Length() / 2
	if radius == 0 {
		radius = 1
	}

	c.Distance = radius / math32.Sin(c.Lens.FovY/2)
	if c.Distance < c.MinDistance {
		c.Distance = c.MinDistance
	}
	if c.Distance > c.MaxDistance {
		c.MaxDistance = c.Distance
	}
	if far := c.Distance + 2*radius; far > c.Lens.Far {
		c.Lens.Far = far
	}

	c.Pitch = 0.6 // Look down at ~35 degrees
	c.Yaw = 0
}

// Sweep returns n poses evenly spaced in yaw around the center, starting
// at the current yaw, at the current distance and pitch.
func (c *OrbitCamera) Sweep(n int) []Pose {
	poses := make([]Pose, 0, n)
	orbit := *c
	for i := 0; i < n; i++ {
		orbit.Yaw = c.Yaw + 2*math32.Pi*float32(i)/float32(n)
		poses = append(poses, orbit.Pose())
	}
	return poses
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
