package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/math"
)

type meshSpec struct {
	vertices int
	indices  int
}

// makeContainer builds a container whose meshes each own a distinct vertex
// range. Vertex positions are unique across calls thanks to base.
func makeContainer(t *testing.T, base float32, specs ...meshSpec) *formats.MeshData {
	t.Helper()

	md := &formats.MeshData{Layout: formats.StandardLayout()}
	total := 0
	for _, s := range specs {
		total += s.vertices
	}
	md.VertexData = make([]byte, total*int(md.Layout.Stride()))
	view, err := md.View()
	require.NoError(t, err)
	for i := 0; i < total; i++ {
		require.NoError(t, view.SetFloats(i, formats.LocationPosition, base+float32(i), float32(i)*2, -float32(i)))
	}

	vertexOffset := 0
	for mi, s := range specs {
		m := formats.Mesh{
			LODCount:     1,
			IndexOffset:  uint32(len(md.IndexData)),
			VertexOffset: uint32(vertexOffset),
			VertexCount:  uint32(s.vertices),
			MaterialID:   uint32(mi),
		}
		m.LODOffset[1] = uint32(s.indices)
		for i := 0; i < s.indices; i++ {
			md.IndexData = append(md.IndexData, uint32(i%s.vertices))
		}
		md.Meshes = append(md.Meshes, m)
		vertexOffset += s.vertices
	}
	md.Boxes = make([]math.BoundingBox, len(md.Meshes))
	require.NoError(t, formats.RecalculateBoundingBoxes(md))
	return md
}

// meshPositions resolves every LOD 0 index of mesh mi to a position.
func meshPositions(t *testing.T, md *formats.MeshData, mi int) []math.Vec3 {
	t.Helper()
	view, err := md.View()
	require.NoError(t, err)
	idx, err := md.IndicesForLOD(mi, 0)
	require.NoError(t, err)
	out := make([]math.Vec3, len(idx))
	for i, v := range idx {
		out[i], err = view.Position(int(md.Meshes[mi].VertexOffset + v))
		require.NoError(t, err)
	}
	return out
}
