package merge

import (
	"fmt"

	"github.com/Faultbox/scenery/pkg/math"
	"github.com/Faultbox/scenery/pkg/scene"
)

// RootName is the name given to the synthetic root of a merged scene.
const RootName = "NewRoot"

// SceneOptions controls Scenes.
type SceneOptions struct {
	// RootTransforms, when set, are premultiplied into the local transform
	// of each input scene's root.
	RootTransforms []math.Mat4

	// MeshCounts holds the number of meshes of each input's mesh container.
	// Mesh indices of later scenes are shifted by the counts before them.
	MeshCounts []uint32

	// SharedMeshes keeps mesh indices unchanged, for scenes that already
	// index one common mesh container.
	SharedMeshes bool

	// MaterialCounts holds the number of materials of each input's
	// material list. When set, material indices of later scenes are shifted
	// by the counts before them and the material names of each scene are
	// padded to its count. Otherwise the shift is the number of material
	// names, which is 0 for scenes saved without names.
	MaterialCounts []uint32

	// SharedMaterials keeps material indices unchanged and takes the
	// material names from the first scene.
	SharedMaterials bool
}

// Scenes merges scenes under one new root node. Nodes keep their input
// order: node 0 is the new root, followed by every node of scenes[0], then
// scenes[1] and so on. Each input's node 0 becomes a child of the new root.
// Global transforms are not recomputed; mark node 0 as changed afterwards.
func Scenes(scenes []*scene.Scene, opts SceneOptions) (*scene.Scene, error) {
	if !opts.SharedMeshes && len(opts.MeshCounts) < len(scenes) {
		return nil, fmt.Errorf("%w: have %d counts for %d scenes", ErrMeshCountMissing, len(opts.MeshCounts), len(scenes))
	}
	if opts.MaterialCounts != nil && len(opts.MaterialCounts) < len(scenes) {
		return nil, fmt.Errorf("%w: have %d counts for %d scenes", ErrMaterialCountMissing, len(opts.MaterialCounts), len(scenes))
	}

	out := scene.New()
	out.Hierarchy = []scene.Hierarchy{{Parent: -1, FirstChild: -1, NextSibling: -1, LastSibling: -1, Level: 0}}
	out.LocalTransform = []math.Mat4{math.Identity()}
	out.GlobalTransform = []math.Mat4{math.Identity()}
	out.NameForNode[0] = 0
	out.NodeNames = []string{RootName}

	if len(scenes) == 0 {
		return out, nil
	}
	out.Hierarchy[0].FirstChild = 1

	if opts.SharedMaterials {
		out.MaterialNames = append(out.MaterialNames, scenes[0].MaterialNames...)
	}

	var (
		offs        = int32(1)
		meshOffs    uint32
		materialOfs uint32
		nameOffs    = uint32(len(out.NodeNames))
		roots       []int32
	)
	for si, s := range scenes {
		out.LocalTransform = append(out.LocalTransform, s.LocalTransform...)
		out.GlobalTransform = append(out.GlobalTransform, s.GlobalTransform...)
		for _, h := range s.Hierarchy {
			out.Hierarchy = append(out.Hierarchy, shiftLinks(h, offs))
		}
		out.NodeNames = append(out.NodeNames, s.NodeNames...)
		materialCount := uint32(len(s.MaterialNames))
		if opts.MaterialCounts != nil {
			materialCount = opts.MaterialCounts[si]
		}
		if !opts.SharedMaterials {
			out.MaterialNames = append(out.MaterialNames, s.MaterialNames...)
			for n := uint32(len(s.MaterialNames)); n < materialCount; n++ {
				out.MaterialNames = append(out.MaterialNames, "")
			}
		}

		meshShift, materialShift := meshOffs, materialOfs
		if opts.SharedMeshes {
			meshShift = 0
		}
		if opts.SharedMaterials {
			materialShift = 0
		}
		mergeMap(out.MeshForNode, s.MeshForNode, uint32(offs), meshShift)
		mergeMap(out.MaterialForNode, s.MaterialForNode, uint32(offs), materialShift)
		mergeMap(out.NameForNode, s.NameForNode, uint32(offs), nameOffs)

		roots = append(roots, offs)
		offs += int32(len(s.Hierarchy))
		materialOfs += materialCount
		nameOffs += uint32(len(s.NodeNames))
		if !opts.SharedMeshes {
			meshOffs += opts.MeshCounts[si]
		}
	}

	// Hang the old roots under the new root as one sibling chain.
	for i, r := range roots {
		h := &out.Hierarchy[r]
		h.Parent = 0
		h.NextSibling = -1
		h.LastSibling = -1
		if i+1 < len(roots) {
			h.NextSibling = roots[i+1]
		}
		if i < len(opts.RootTransforms) {
			out.LocalTransform[r] = opts.RootTransforms[i].Mul(out.LocalTransform[r])
		}
	}
	out.Hierarchy[roots[0]].LastSibling = roots[len(roots)-1]

	for i := 1; i < len(out.Hierarchy); i++ {
		out.Hierarchy[i].Level++
	}
	return out, nil
}

func shiftLinks(h scene.Hierarchy, offs int32) scene.Hierarchy {
	shift := func(v int32) int32 {
		if v == -1 {
			return -1
		}
		return v + offs
	}
	h.Parent = shift(h.Parent)
	h.FirstChild = shift(h.FirstChild)
	h.NextSibling = shift(h.NextSibling)
	h.LastSibling = shift(h.LastSibling)
	return h
}

func mergeMap(dst, src map[uint32]uint32, keyShift, valueShift uint32) {
	for k, v := range src {
		dst[k+keyShift] = v + valueShift
	}
}
