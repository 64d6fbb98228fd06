package merge

import (
	"fmt"
	"slices"

	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/math"
	"github.com/Faultbox/scenery/pkg/scene"
)

// NodesWithMaterial collapses every mesh node whose material is named
// materialName into one mesh owned by a single new child of node 0, and
// deletes the original nodes. The merged index range is moved to the tail
// of md.IndexData. It returns the new node.
//
// The merged mesh draws with one transform, so this is only correct when the
// original nodes' global transforms are identical.
func NodesWithMaterial(s *scene.Scene, md *formats.MeshData, materialName string) (int, error) {
	material := slices.Index(s.MaterialNames, materialName)
	if material < 0 {
		return -1, fmt.Errorf("%w: %q", ErrMaterialNotFound, materialName)
	}

	var nodes []int
	var meshes []uint32
	for i := range s.Hierarchy {
		mesh, hasMesh := s.MeshForNode[uint32(i)]
		mat, hasMaterial := s.MaterialForNode[uint32(i)]
		if hasMesh && hasMaterial && mat == uint32(material) {
			nodes = append(nodes, i)
			meshes = append(meshes, mesh)
		}
	}
	if len(nodes) == 0 {
		return -1, fmt.Errorf("%w: %q", ErrNothingToMerge, materialName)
	}
	slices.Sort(meshes)
	meshes = slices.Compact(meshes)

	oldToNew := mergeIndexArray(md, meshes)

	for node, mesh := range s.MeshForNode {
		s.MeshForNode[node] = oldToNew[mesh]
	}

	newNode := s.AddNode(0, 1)
	s.MeshForNode[uint32(newNode)] = uint32(len(md.Meshes) - 1)
	s.MaterialForNode[uint32(newNode)] = uint32(material)
	s.SetNodeName(newNode, materialName)

	// Compaction keeps order, so the new node stays last.
	s.DeleteNodes(nodes)
	return s.NumNodes() - 1, nil
}

// shiftMeshIndices rebases the LOD 0 indices of every mesh in merged onto
// the smallest VertexOffset among them. It returns that offset and the end
// of the vertex range the merged meshes cover.
func shiftMeshIndices(md *formats.MeshData, merged []uint32) (start, end uint32) {
	start = md.Meshes[merged[0]].VertexOffset
	for _, mi := range merged {
		m := &md.Meshes[mi]
		start = min(start, m.VertexOffset)
		end = max(end, m.VertexOffset+m.VertexCount)
	}
	for _, mi := range merged {
		m := &md.Meshes[mi]
		delta := m.VertexOffset - start
		first := m.IndexOffset + m.LODOffset[0]
		for i := first; i < first+m.LODIndicesCount(0); i++ {
			md.IndexData[i] += delta
		}
		m.VertexOffset = start
	}
	return start, end
}

// mergeIndexArray rebuilds the index stream with the kept meshes first,
// each with all of its LODs, followed by the LOD 0 ranges of the merged
// meshes. The merged meshes are replaced by one mesh appended at the end.
// It returns the old to new mesh index mapping.
func mergeIndexArray(md *formats.MeshData, merged []uint32) map[uint32]uint32 {
	vertexOffset, vertexEnd := shiftMeshIndices(md, merged)

	isMerged := make(map[uint32]bool, len(merged))
	for _, mi := range merged {
		isMerged[mi] = true
	}
	mergedIndex := uint32(len(md.Meshes) - len(merged))

	var keptIndices, mergedIndices []uint32
	keptMeshes := make([]formats.Mesh, 0, mergedIndex+1)
	keptBoxes := make([]math.BoundingBox, 0, mergedIndex+1)
	mergedBox := math.EmptyBox()
	oldToNew := make(map[uint32]uint32, len(md.Meshes))

	for mi := range md.Meshes {
		m := md.Meshes[mi]
		if isMerged[uint32(mi)] {
			oldToNew[uint32(mi)] = mergedIndex
			start := m.IndexOffset + m.LODOffset[0]
			mergedIndices = append(mergedIndices, md.IndexData[start:start+m.LODIndicesCount(0)]...)
			if mi < len(md.Boxes) {
				mergedBox = mergedBox.Union(md.Boxes[mi])
			}
			continue
		}

		oldToNew[uint32(mi)] = uint32(len(keptMeshes))
		start := m.IndexOffset + m.LODOffset[0]
		count := m.TotalIndices()
		m.IndexOffset = uint32(len(keptIndices))
		keptIndices = append(keptIndices, md.IndexData[start:start+count]...)
		base := m.LODOffset[0]
		for l := uint32(0); l <= m.LODCount; l++ {
			m.LODOffset[l] -= base
		}
		keptMeshes = append(keptMeshes, m)
		if mi < len(md.Boxes) {
			keptBoxes = append(keptBoxes, md.Boxes[mi])
		}
	}

	first := md.Meshes[merged[0]]
	collapsed := formats.Mesh{
		LODCount:     1,
		IndexOffset:  uint32(len(keptIndices)),
		VertexOffset: vertexOffset,
		VertexCount:  vertexEnd - vertexOffset,
		MaterialID:   first.MaterialID,
	}
	collapsed.LODOffset[1] = uint32(len(mergedIndices))

	md.IndexData = append(keptIndices, mergedIndices...)
	md.Meshes = append(keptMeshes, collapsed)
	if len(md.Boxes) > 0 {
		md.Boxes = append(keptBoxes, mergedBox)
	}
	return oldToNew
}
