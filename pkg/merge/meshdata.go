package merge

import (
	"fmt"

	"github.com/Faultbox/scenery/pkg/formats"
)

// MeshData concatenates containers into one. Meshes of later containers get
// their IndexOffset shifted by the number of indices before them, their
// MaterialID shifted by the number of materials before them, and their raw
// index values shifted by the number of vertices before them. VertexOffset
// is left alone because indices are relative to it.
//
// Materials and texture lists are not merged here; see MaterialLists.
func MeshData(containers []*formats.MeshData) (*formats.MeshData, formats.MeshFileHeader, error) {
	if len(containers) == 0 {
		return nil, formats.MeshFileHeader{}, ErrNoInput
	}

	out := &formats.MeshData{Layout: containers[0].Layout}
	stride := out.Layout.Stride()
	if stride == 0 {
		return nil, formats.MeshFileHeader{}, fmt.Errorf("%w: zero stride", formats.ErrInvalidVertexLayout)
	}

	var numIndices, numVertices, numMaterials uint32
	for ci, c := range containers {
		if c.Layout != out.Layout {
			return nil, formats.MeshFileHeader{}, fmt.Errorf("%w: container %d", ErrLayoutMismatch, ci)
		}

		for _, idx := range c.IndexData {
			out.IndexData = append(out.IndexData, idx+numVertices)
		}
		out.VertexData = append(out.VertexData, c.VertexData...)

		for _, m := range c.Meshes {
			m.IndexOffset += numIndices
			m.MaterialID += numMaterials
			out.Meshes = append(out.Meshes, m)
		}
		out.Boxes = append(out.Boxes, c.Boxes...)

		numIndices += uint32(len(c.IndexData))
		numVertices += uint32(len(c.VertexData)) / stride
		numMaterials += uint32(len(c.Materials))
	}

	return out, out.Header(), nil
}
