package lod

import (
	"github.com/Faultbox/scenery/pkg/math"
)

// Build returns the LOD chain of a triangle list, LOD 0 being the input.
// Each level targets half the indices of the previous one. The chain stops
// at maxLODs levels, when a level has fewer than MinIndices indices, or when
// neither Simplify nor SimplifySloppy removes more than 10% of the indices.
// SimplifySloppy is only tried from the third level on.
func Build(indices []uint32, positions []math.Vec3, maxLODs int) [][]uint32 {
	lods := [][]uint32{indices}
	current := indices

	for len(current) > MinIndices && len(lods) < maxLODs {
		target := len(current) / 2

		next := Simplify(current, positions, target, TargetError)
		if float64(len(next))*1.1 > float64(len(current)) {
			if len(lods) <= 1 {
				break
			}
			next = SimplifySloppy(current, positions, target)
			if len(next) == len(current) {
				break
			}
		}
		if len(next) == 0 {
			break
		}
		lods = append(lods, next)
		current = next
	}
	return lods
}

// Flatten concatenates lods and returns the cumulative offsets in the form
// stored in a mesh's LOD table: offsets[i] is the start of LOD i and
// offsets[len(lods)] is the total index count.
func Flatten(lods [][]uint32) (indices []uint32, offsets []uint32) {
	offsets = make([]uint32, 0, len(lods)+1)
	for _, l := range lods {
		offsets = append(offsets, uint32(len(indices)))
		indices = append(indices, l...)
	}
	offsets = append(offsets, uint32(len(indices)))
	return indices, offsets
}
