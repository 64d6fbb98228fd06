// Package lod builds level-of-detail index buffers for triangle meshes.
//
// Simplification is vertex clustering on a uniform grid: vertices falling
// into the same cell collapse onto one representative vertex of that cell,
// and triangles that become degenerate or duplicated are dropped. Output
// indices always reference the input vertices, so every LOD shares the
// mesh's vertex range.
package lod

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/scenery/pkg/math"
)

const (
	// MinIndices stops the LOD chain once a level is this small.
	MinIndices = 1024

	// TargetError bounds the cell size of Simplify, relative to the mesh extent.
	TargetError = 0.02

	maxGrid = 1024
)

// Simplify reduces a triangle list towards targetIndices while keeping
// the clustering cell no larger than targetError times the mesh extent. The
// result may stay above targetIndices when the error bound forbids further
// reduction.
func Simplify(indices []uint32, positions []math.Vec3, targetIndices int, targetError float32) []uint32 {
	minGrid := maxGrid
	if targetError > 0 {
		minGrid = min(maxGrid, max(2, int(math32.Ceil(1/targetError))))
	}
	return simplifyGrid(indices, positions, targetIndices, minGrid)
}

// SimplifySloppy reduces a triangle list towards targetIndices without an
// error bound.
func SimplifySloppy(indices []uint32, positions []math.Vec3, targetIndices int) []uint32 {
	return simplifyGrid(indices, positions, targetIndices, 1)
}

// simplifyGrid searches the finest grid in [minGrid, maxGrid] whose result
// fits targetIndices, falling back to minGrid.
func simplifyGrid(indices []uint32, positions []math.Vec3, targetIndices, minGrid int) []uint32 {
	if len(indices) <= targetIndices || len(indices) < 3 {
		return append([]uint32(nil), indices...)
	}
	c := newClusterer(indices, positions)
	if c == nil {
		return append([]uint32(nil), indices...)
	}

	best := c.collapse(minGrid)
	if len(best) > targetIndices {
		return best
	}
	lo, hi := minGrid+1, maxGrid
	for lo <= hi {
		mid := (lo + hi) / 2
		out := c.collapse(mid)
		if len(out) <= targetIndices {
			best = out
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

type clusterer struct {
	indices   []uint32
	positions []math.Vec3
	used      []uint32 // distinct vertices referenced by indices
	origin    math.Vec3
	extent    float32
}

func newClusterer(indices []uint32, positions []math.Vec3) *clusterer {
	seen := make(map[uint32]bool)
	box := math.EmptyBox()
	c := &clusterer{indices: indices, positions: positions}
	for _, idx := range indices {
		if int(idx) >= len(positions) {
			return nil
		}
		if !seen[idx] {
			seen[idx] = true
			c.used = append(c.used, idx)
			box = box.Extend(positions[idx])
		}
	}
	size := box.Size()
	c.origin = box.Min
	c.extent = math32.Max(size.X, math32.Max(size.Y, size.Z))
	if c.extent == 0 {
		return nil
	}
	return c
}

func (c *clusterer) cell(p math.Vec3, grid int) uint64 {
	axis := func(v, o float32) uint64 {
		i := int((v - o) / c.extent * float32(grid))
		return uint64(min(max(i, 0), grid-1))
	}
	g := uint64(grid)
	return axis(p.X, c.origin.X) + axis(p.Y, c.origin.Y)*g + axis(p.Z, c.origin.Z)*g*g
}

// collapse clusters vertices on a grid of the given resolution and returns
// the surviving triangles.
func (c *clusterer) collapse(grid int) []uint32 {
	type acc struct {
		sum   math.Vec3
		count float32
	}
	cells := make(map[uint64]*acc)
	cellOf := make(map[uint32]uint64, len(c.used))
	for _, v := range c.used {
		id := c.cell(c.positions[v], grid)
		cellOf[v] = id
		a := cells[id]
		if a == nil {
			a = &acc{}
			cells[id] = a
		}
		a.sum = a.sum.Add(c.positions[v])
		a.count++
	}

	// The representative is the member vertex closest to the cell centroid.
	rep := make(map[uint64]uint32, len(cells))
	repDist := make(map[uint64]float32, len(cells))
	for _, v := range c.used {
		id := cellOf[v]
		centroid := cells[id].sum.Scale(1 / cells[id].count)
		d := c.positions[v].Distance(centroid)
		if best, ok := repDist[id]; !ok || d < best {
			rep[id] = v
			repDist[id] = d
		}
	}

	out := make([]uint32, 0, len(c.indices))
	seen := make(map[[3]uint32]bool)
	for i := 0; i+2 < len(c.indices); i += 3 {
		a := rep[cellOf[c.indices[i]]]
		b := rep[cellOf[c.indices[i+1]]]
		d := rep[cellOf[c.indices[i+2]]]
		if a == b || b == d || a == d {
			continue
		}
		key := canonical(a, b, d)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a, b, d)
	}
	return out
}

// canonical rotates a triangle so its smallest index comes first, keeping
// the winding.
func canonical(a, b, c uint32) [3]uint32 {
	switch {
	case a <= b && a <= c:
		return [3]uint32{a, b, c}
	case b <= a && b <= c:
		return [3]uint32{b, c, a}
	default:
		return [3]uint32{c, a, b}
	}
}
