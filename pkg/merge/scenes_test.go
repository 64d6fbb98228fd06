package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenery/pkg/math"
	"github.com/Faultbox/scenery/pkg/scene"
)

// twoNodeScene returns root -> child with the child owning mesh 0 and
// material 0.
func twoNodeScene(name, material string) *scene.Scene {
	s := scene.New()
	root := s.AddNode(-1, 0)
	child := s.AddNode(root, 1)
	s.SetNodeName(root, name)
	s.SetNodeName(child, name+"_child")
	s.MeshForNode[uint32(child)] = 0
	s.MaterialForNode[uint32(child)] = 0
	s.MaterialNames = []string{material}
	s.LocalTransform[child] = math.Translate(math.Vec3{X: 1})
	return s
}

func TestScenesLinksAndLevels(t *testing.T) {
	a := twoNodeScene("a", "stone")
	b := twoNodeScene("b", "glass")

	out, err := Scenes([]*scene.Scene{a, b}, SceneOptions{MeshCounts: []uint32{2, 1}})
	require.NoError(t, err)
	require.Equal(t, 5, out.NumNodes())

	assert.Equal(t, []int{1, 3}, out.Children(0))
	assert.Equal(t, []int{2}, out.Children(1))
	assert.Equal(t, []int{4}, out.Children(3))
	for i, want := range []int32{0, 1, 2, 1, 2} {
		assert.Equal(t, want, out.Hierarchy[i].Level, "level of node %d", i)
	}
	assert.Equal(t, int32(3), out.Hierarchy[1].LastSibling)

	assert.Equal(t, []string{RootName, "a", "a_child", "b", "b_child"},
		[]string{out.NodeName(0), out.NodeName(1), out.NodeName(2), out.NodeName(3), out.NodeName(4)})
	assert.Equal(t, map[uint32]uint32{2: 0, 4: 2}, out.MeshForNode)
	assert.Equal(t, map[uint32]uint32{2: 0, 4: 1}, out.MaterialForNode)
	assert.Equal(t, []string{"stone", "glass"}, out.MaterialNames)
	assert.Equal(t, "glass", out.MaterialName(4))
}

func TestScenesSharedSpaces(t *testing.T) {
	a := twoNodeScene("a", "stone")
	b := twoNodeScene("b", "glass")

	out, err := Scenes([]*scene.Scene{a, b}, SceneOptions{SharedMeshes: true, SharedMaterials: true})
	require.NoError(t, err)
	assert.Equal(t, map[uint32]uint32{2: 0, 4: 0}, out.MeshForNode)
	assert.Equal(t, map[uint32]uint32{2: 0, 4: 0}, out.MaterialForNode)
	assert.Equal(t, []string{"stone"}, out.MaterialNames)
}

func TestScenesRootTransforms(t *testing.T) {
	a := twoNodeScene("a", "stone")
	b := twoNodeScene("b", "glass")
	shift := math.Translate(math.Vec3{Y: 10})

	out, err := Scenes([]*scene.Scene{a, b}, SceneOptions{
		MeshCounts:     []uint32{1, 1},
		RootTransforms: []math.Mat4{math.Identity(), shift},
	})
	require.NoError(t, err)

	out.MarkAsChanged(0)
	out.RecalculateGlobalTransforms()
	assert.Equal(t, math.Vec3{X: 1}, out.GlobalTransform[2].Translation())
	assert.Equal(t, math.Vec3{X: 1, Y: 10}, out.GlobalTransform[4].Translation())
}

func TestScenesThenAddNode(t *testing.T) {
	out, err := Scenes([]*scene.Scene{twoNodeScene("a", "m"), twoNodeScene("b", "m")}, SceneOptions{MeshCounts: []uint32{1, 1}})
	require.NoError(t, err)

	n := out.AddNode(0, 1)
	assert.Equal(t, []int{1, 3, n}, out.Children(0))
}

func TestScenesEmptyAndMissingCounts(t *testing.T) {
	out, err := Scenes(nil, SceneOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.NumNodes())
	assert.Equal(t, int32(-1), out.Hierarchy[0].FirstChild)

	_, err = Scenes([]*scene.Scene{twoNodeScene("a", "m")}, SceneOptions{})
	assert.ErrorIs(t, err, ErrMeshCountMissing)
}

func TestScenesMaterialCounts(t *testing.T) {
	a := twoNodeScene("a", "stone")
	b := twoNodeScene("b", "glass")
	// Scenes written without names carry no material names at all.
	a.MaterialNames = nil

	out, err := Scenes([]*scene.Scene{a, b}, SceneOptions{
		MeshCounts:     []uint32{1, 1},
		MaterialCounts: []uint32{2, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, map[uint32]uint32{2: 0, 4: 2}, out.MaterialForNode)
	assert.Equal(t, []string{"", "", "glass"}, out.MaterialNames)
	assert.Equal(t, "glass", out.MaterialName(4))

	_, err = Scenes([]*scene.Scene{a, b}, SceneOptions{
		MeshCounts:     []uint32{1, 1},
		MaterialCounts: []uint32{2},
	})
	assert.ErrorIs(t, err, ErrMaterialCountMissing)
}
