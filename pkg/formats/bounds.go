package formats

import (
	"fmt"

	"github.com/Faultbox/scenery/pkg/math"
)

// MeshBoundingBox computes the box of mesh meshIdx from its LOD 0 indices.
// A mesh without indices yields an empty box.
func MeshBoundingBox(md *MeshData, view VertexView, meshIdx int) (math.BoundingBox, error) {
	box := math.EmptyBox()
	if md.Meshes[meshIdx].LODCount == 0 {
		return box, nil
	}
	indices, err := md.IndicesForLOD(meshIdx, 0)
	if err != nil {
		return box, err
	}
	base := int(md.Meshes[meshIdx].VertexOffset)
	for _, idx := range indices {
		p, err := view.Position(base + int(idx))
		if err != nil {
			return box, fmt.Errorf("mesh %d: %w", meshIdx, err)
		}
		box = box.Extend(p)
	}
	return box, nil
}

// RecalculateBoundingBoxes rebuilds md.Boxes from the vertex data.
func RecalculateBoundingBoxes(md *MeshData) error {
	view, err := md.View()
	if err != nil {
		return err
	}
	boxes := make([]math.BoundingBox, len(md.Meshes))
	for i := range md.Meshes {
		if boxes[i], err = MeshBoundingBox(md, view, i); err != nil {
			return err
		}
	}
	md.Boxes = boxes
	return nil
}
