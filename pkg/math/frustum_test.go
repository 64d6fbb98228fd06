package math

import (
	"math"
	"testing"
)

func testViewProj() Mat4 {
	proj := Perspective(math.Pi/2, 1, 1, 100)
	view := LookAt(Vec3{0, 0, 0}, Vec3{0, 0, -1}, Vec3{0, 1, 0})
	return proj.Mul(view)
}

func TestFrustumPlanesSign(t *testing.T) {
	planes := FrustumPlanes(testViewProj())
	inside := Point(Vec3{0, 0, -10})
	for i, p := range planes {
		if p.Dot(inside) < 0 {
			t.Errorf("plane %d rejects a point on the view axis", i)
		}
	}
	behind := Point(Vec3{0, 0, 10})
	if planes[PlaneNear].Dot(behind) >= 0 {
		t.Error("near plane should reject a point behind the camera")
	}
	tooFar := Point(Vec3{0, 0, -200})
	if planes[PlaneFar].Dot(tooFar) >= 0 {
		t.Error("far plane should reject a point beyond far")
	}
}

func TestFrustumCorners(t *testing.T) {
	corners := FrustumCorners(testViewProj())
	// 90 degree fov, aspect 1: near half-size 1, far half-size 100.
	near := corners[0]
	if math.Abs(float64(near[0]+1)) > 1e-3 || math.Abs(float64(near[2]+1)) > 1e-3 {
		t.Errorf("near corner = %v, want (-1,-1,-1)", near)
	}
	far := corners[6]
	if math.Abs(float64(far[0]-100)) > 0.1 || math.Abs(float64(far[2]+100)) > 0.1 {
		t.Errorf("far corner = %v, want (100,100,-100)", far)
	}
}

func TestIsBoxInFrustum(t *testing.T) {
	f := NewFrustum(testViewProj())
	unit := func(c Vec3) BoundingBox {
		return BoundingBox{Min: c.Sub(Vec3{1, 1, 1}), Max: c.Add(Vec3{1, 1, 1})}
	}
	tests := []struct {
		name string
		box  BoundingBox
		want bool
	}{
		{"inside", unit(Vec3{0, 0, -10}), true},
		{"behind", unit(Vec3{0, 0, 10}), false},
		{"left", unit(Vec3{-50, 0, -10}), false},
		{"beyond far", unit(Vec3{0, 0, -150}), false},
		{"straddles left plane", unit(Vec3{-10, 0, -10}), true},
		{"contains camera", BoundingBox{Min: Vec3{-500, -500, -500}, Max: Vec3{500, 500, 500}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBoxInFrustum(&f, tt.box); got != tt.want {
				t.Errorf("IsBoxInFrustum = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsBoxInFrustumCornerCheck(t *testing.T) {
	// Every plane keeps at least one corner of this box, but the box sits
	// above the highest frustum corner.
	f := NewFrustum(Perspective(math.Pi/2, 1, 1, 10))
	box := BoundingBox{Min: Vec3{-1, 10.5, -20}, Max: Vec3{1, 20, -9}}
	if IsBoxInFrustum(&f, box) {
		t.Error("box beyond all frustum corners should be rejected")
	}
}
