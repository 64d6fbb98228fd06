package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/scene"
)

// leafScene has a root with three mesh nodes: leaf, bark, leaf.
func leafScene(t *testing.T) (*scene.Scene, *formats.MeshData) {
	t.Helper()
	md := makeContainer(t, 0,
		meshSpec{vertices: 3, indices: 3},
		meshSpec{vertices: 3, indices: 3},
		meshSpec{vertices: 3, indices: 3},
	)

	s := scene.New()
	root := s.AddNode(-1, 0)
	s.SetNodeName(root, "root")
	s.MaterialNames = []string{"leaf", "bark"}
	for i, mat := range []uint32{0, 1, 0} {
		n := s.AddNode(root, 1)
		s.MeshForNode[uint32(n)] = uint32(i)
		s.MaterialForNode[uint32(n)] = mat
	}
	return s, md
}

func TestNodesWithMaterial(t *testing.T) {
	s, md := leafScene(t)
	leaf0 := meshPositions(t, md, 0)
	leaf2 := meshPositions(t, md, 2)
	bark := meshPositions(t, md, 1)
	barkBox := md.Boxes[1]
	leafBox := md.Boxes[0].Union(md.Boxes[2])

	node, err := NodesWithMaterial(s, md, "leaf")
	require.NoError(t, err)

	require.Equal(t, 3, s.NumNodes(), "root, bark node, merged node")
	assert.Equal(t, 2, node)
	assert.Equal(t, []int{1, 2}, s.Children(0))
	assert.Equal(t, map[uint32]uint32{1: 0, 2: 1}, s.MeshForNode)
	assert.Equal(t, map[uint32]uint32{1: 1, 2: 0}, s.MaterialForNode)
	assert.Equal(t, "leaf", s.NodeName(node))

	require.Len(t, md.Meshes, 2)
	assert.Len(t, md.IndexData, 9)
	assert.Equal(t, bark, meshPositions(t, md, 0))
	assert.Equal(t, append(leaf0, leaf2...), meshPositions(t, md, 1))

	merged := md.Meshes[1]
	assert.Equal(t, uint32(3), merged.IndexOffset, "merged range sits at the tail")
	assert.Equal(t, uint32(1), merged.LODCount)
	assert.Equal(t, uint32(6), merged.LODIndicesCount(0))
	assert.Equal(t, uint32(0), merged.VertexOffset)
	assert.Equal(t, uint32(9), merged.VertexCount)
	assert.Equal(t, []uint32{0, 1, 2, 6, 7, 8}, md.IndexData[3:])

	assert.Equal(t, barkBox, md.Boxes[0])
	assert.Equal(t, leafBox, md.Boxes[1])
}

func TestNodesWithMaterialKeepsOtherLODs(t *testing.T) {
	s, md := leafScene(t)
	// Give the bark mesh a second LOD stored after everything else.
	bark := &md.Meshes[1]
	bark.IndexOffset = uint32(len(md.IndexData))
	md.IndexData = append(md.IndexData, 0, 1, 2, 0, 1, 2)
	bark.LODCount = 2
	bark.LODOffset[2] = 6

	_, err := NodesWithMaterial(s, md, "leaf")
	require.NoError(t, err)

	assert.Equal(t, uint32(2), md.Meshes[0].LODCount)
	assert.Equal(t, uint32(3), md.Meshes[0].LODIndicesCount(1))
	lod1, err := md.IndicesForLOD(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, lod1)
}

func TestNodesWithMaterialErrors(t *testing.T) {
	s, md := leafScene(t)
	_, err := NodesWithMaterial(s, md, "chrome")
	assert.ErrorIs(t, err, ErrMaterialNotFound)

	s.MaterialNames = append(s.MaterialNames, "unused")
	_, err = NodesWithMaterial(s, md, "unused")
	assert.ErrorIs(t, err, ErrNothingToMerge)
	assert.Equal(t, 4, s.NumNodes(), "scene untouched on error")
}
