package math

// Frustum plane order.
const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// Frustum holds the six clip planes and eight corners of a view volume.
// Planes are (normal, d) with the normal pointing inwards: a point p is on
// the inner side when dot(plane, (p, 1)) >= 0.
type Frustum struct {
	Planes  [6]Vec4
	Corners [8]Vec4
}

// NewFrustum extracts the view volume of a combined projection * view matrix.
func NewFrustum(viewProj Mat4) Frustum {
	return Frustum{
		Planes:  FrustumPlanes(viewProj),
		Corners: FrustumCorners(viewProj),
	}
}

// FrustumPlanes extracts clip planes from viewProj using the Gribb/Hartmann
// method. The planes are not normalized; only their sign is used.
//
// Row i of viewProj is combined with row 3: left = r3+r0, right = r3-r0,
// bottom = r3+r1, top = r3-r1, near = r3+r2, far = r3-r2.
func FrustumPlanes(viewProj Mat4) [6]Vec4 {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)
	return [6]Vec4{
		PlaneLeft:   r3.Add(r0),
		PlaneRight:  r3.Sub(r0),
		PlaneBottom: r3.Add(r1),
		PlaneTop:    r3.Sub(r1),
		PlaneNear:   r3.Add(r2),
		PlaneFar:    r3.Sub(r2),
	}
}

// ndcCorners lists the clip-space cube corners, near face first.
var ndcCorners = [8]Vec4{
	{-1, -1, -1, 1}, {1, -1, -1, 1}, {1, 1, -1, 1}, {-1, 1, -1, 1},
	{-1, -1, 1, 1}, {1, -1, 1, 1}, {1, 1, 1, 1}, {-1, 1, 1, 1},
}

// FrustumCorners unprojects the clip-space cube corners through the
// inverse of viewProj. The returned points have w = 1.
func FrustumCorners(viewProj Mat4) [8]Vec4 {
	inv := viewProj.Inverse()
	var out [8]Vec4
	for i, c := range ndcCorners {
		p := inv.MulVec4(c)
		out[i] = Vec4{p[0] / p[3], p[1] / p[3], p[2] / p[3], 1}
	}
	return out
}

// IsBoxInFrustum reports whether box may be visible. It rejects a box only
// when all of its corners are behind a single plane, or when all frustum
// corners lie beyond one face of the box. Boxes crossing a plane count as
// visible.
func IsBoxInFrustum(f *Frustum, box BoundingBox) bool {
	corners := box.Corners()
	for _, plane := range f.Planes {
		outside := 0
		for _, c := range corners {
			if plane.Dot(Point(c)) < 0 {
				outside++
			}
		}
		if outside == 8 {
			return false
		}
	}

	for axis := 0; axis < 3; axis++ {
		lo, hi := box.Min.Axis(axis), box.Max.Axis(axis)
		above, below := 0, 0
		for _, c := range f.Corners {
			if c[axis] > hi {
				above++
			}
			if c[axis] < lo {
				below++
			}
		}
		if above == 8 || below == 8 {
			return false
		}
	}
	return true
}
