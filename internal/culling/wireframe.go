package culling

import "github.com/Faultbox/scenery/pkg/math"

// LineVertex is one endpoint of a debug line.
type LineVertex struct {
	Pos   math.Vec3
	Color [4]float32
}

// Debug line colours.
var (
	ColorVisible = [4]float32{0, 1, 0, 1}
	ColorCulled  = [4]float32{1, 0, 0, 1}
	ColorFrustum = [4]float32{1, 1, 0, 1}
)

// BoxEdgeVertexCount is the number of vertices of a box wireframe (12 edges x 2).
const BoxEdgeVertexCount = 24

// BoxEdges returns the 12 edges of box as vertex pairs: bottom face, top
// face, then the vertical edges.
func BoxEdges(box math.BoundingBox) [BoxEdgeVertexCount]math.Vec3 {
	lo, hi := box.Min, box.Max
	v := func(x, y, z float32) math.Vec3 { return math.Vec3{X: x, Y: y, Z: z} }
	return [BoxEdgeVertexCount]math.Vec3{
		// Bottom face
		v(lo.X, lo.Y, lo.Z), v(hi.X, lo.Y, lo.Z),
		v(hi.X, lo.Y, lo.Z), v(hi.X, lo.Y, hi.Z),
		v(hi.X, lo.Y, hi.Z), v(lo.X, lo.Y, hi.Z),
		v(lo.X, lo.Y, hi.Z), v(lo.X, lo.Y, lo.Z),
		// Top face
		v(lo.X, hi.Y, lo.Z), v(hi.X, hi.Y, lo.Z),
		v(hi.X, hi.Y, lo.Z), v(hi.X, hi.Y, hi.Z),
		v(hi.X, hi.Y, hi.Z), v(lo.X, hi.Y, hi.Z),
		v(lo.X, hi.Y, hi.Z), v(lo.X, hi.Y, lo.Z),
		// Vertical edges
		v(lo.X, lo.Y, lo.Z), v(lo.X, hi.Y, lo.Z),
		v(hi.X, lo.Y, lo.Z), v(hi.X, hi.Y, lo.Z),
		v(hi.X, lo.Y, hi.Z), v(hi.X, hi.Y, hi.Z),
		v(lo.X, lo.Y, hi.Z), v(lo.X, hi.Y, hi.Z),
	}
}

// frustumEdges indexes math.FrustumCorners: near quad, far quad, sides.
var frustumEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// FrustumEdges returns the 12 edges of f as vertex pairs.
func FrustumEdges(f *math.Frustum) [BoxEdgeVertexCount]math.Vec3 {
	var out [BoxEdgeVertexCount]math.Vec3
	for i, e := range frustumEdges {
		out[2*i] = f.Corners[e[0]].XYZ()
		out[2*i+1] = f.Corners[e[1]].XYZ()
	}
	return out
}

// DebugLines returns box wireframes for every drawn node, coloured by the
// current culling frustum, plus the frustum itself while the view is
// frozen.
func (e *Engine) DebugLines() []LineVertex {
	f := e.Frustum()
	n := e.target.NumCommands()
	out := make([]LineVertex, 0, (n+1)*BoxEdgeVertexCount)
	for i := 0; i < n; i++ {
		box := e.boxes[e.target.CommandNode(i)]
		color := ColorCulled
		if math.IsBoxInFrustum(&f, box) {
			color = ColorVisible
		}
		for _, p := range BoxEdges(box) {
			out = append(out, LineVertex{Pos: p, Color: color})
		}
	}
	if e.frozen {
		for _, p := range FrustumEdges(&f) {
			out = append(out, LineVertex{Pos: p, Color: ColorFrustum})
		}
	}
	return out
}
