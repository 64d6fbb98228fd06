package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenery/pkg/formats"
)

func TestMeshDataExample(t *testing.T) {
	a := makeContainer(t, 0, meshSpec{vertices: 40, indices: 100}, meshSpec{vertices: 20, indices: 50})
	b := makeContainer(t, 1000, meshSpec{vertices: 12, indices: 30})
	a.Materials = []formats.Material{formats.NewMaterial(), formats.NewMaterial()}

	merged, header, err := MeshData([]*formats.MeshData{a, b})
	require.NoError(t, err)

	require.Len(t, merged.Meshes, 3)
	assert.Len(t, merged.IndexData, 180)
	assert.Len(t, merged.Boxes, 3)
	assert.Equal(t, uint32(150), merged.Meshes[2].IndexOffset)
	assert.Equal(t, uint32(0), merged.Meshes[2].VertexOffset, "vertex offsets are not shifted")
	assert.Equal(t, uint32(2), merged.Meshes[2].MaterialID, "material ids shifted by prior material count")
	assert.Equal(t, b.IndexData[0]+60, merged.IndexData[150], "indices shifted past the 60 vertices of a")

	assert.Equal(t, uint32(formats.MeshFileMagic), header.MagicValue)
	assert.Equal(t, uint32(3), header.MeshCount)
	assert.Equal(t, uint32(180*4), header.IndexDataSize)
	assert.Equal(t, uint32(len(a.VertexData)+len(b.VertexData)), header.VertexDataSize)
}

func TestMeshDataPreservesTriangles(t *testing.T) {
	a := makeContainer(t, 0, meshSpec{vertices: 3, indices: 6}, meshSpec{vertices: 4, indices: 9})
	b := makeContainer(t, 500, meshSpec{vertices: 5, indices: 12}, meshSpec{vertices: 3, indices: 3})
	c := makeContainer(t, 900, meshSpec{vertices: 6, indices: 6})

	merged, _, err := MeshData([]*formats.MeshData{a, b, c})
	require.NoError(t, err)

	out := 0
	for _, src := range []*formats.MeshData{a, b, c} {
		for mi := range src.Meshes {
			assert.Equal(t, meshPositions(t, src, mi), meshPositions(t, merged, out), "mesh %d", out)
			assert.Equal(t, src.Boxes[mi], merged.Boxes[out])
			out++
		}
	}
}

func TestMeshDataErrors(t *testing.T) {
	_, _, err := MeshData(nil)
	assert.True(t, errors.Is(err, ErrNoInput))

	a := makeContainer(t, 0, meshSpec{vertices: 3, indices: 3})
	b := makeContainer(t, 0, meshSpec{vertices: 3, indices: 3})
	b.Layout.Bindings[0].Stride = 48
	_, _, err = MeshData([]*formats.MeshData{a, b})
	assert.True(t, errors.Is(err, ErrLayoutMismatch))
}
