package drawset

import (
	"slices"

	"github.com/Faultbox/scenery/internal/gpu"
	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/scene"
)

// DrawData pairs a draw with the node transform and material it uses. The
// draw's baseInstance indexes the DrawData array.
type DrawData struct {
	TransformID uint32
	MaterialID  uint32
}

// drawDataSize is the GPU stride of DrawData.
const drawDataSize = 8

// BuildCommands returns one indirect command per node that has a mesh, in
// ascending node order, and the DrawData record each command points at.
// lod selects the index range of every mesh, clamped to its last LOD.
func BuildCommands(md *formats.MeshData, s *scene.Scene, lod int) ([]gpu.DrawIndexedIndirectCommand, []DrawData, []int) {
	nodes := make([]int, 0, len(s.MeshForNode))
	for node := range s.MeshForNode {
		nodes = append(nodes, int(node))
	}
	slices.Sort(nodes)

	cmds := make([]gpu.DrawIndexedIndirectCommand, 0, len(nodes))
	data := make([]DrawData, 0, len(nodes))
	for _, node := range nodes {
		meshIdx := s.MeshForNode[uint32(node)]
		mesh := md.Meshes[meshIdx]

		level := uint32(max(lod, 0))
		if mesh.LODCount > 0 && level > mesh.LODCount-1 {
			level = mesh.LODCount - 1
		}

		i := uint32(len(cmds))
		cmds = append(cmds, gpu.DrawIndexedIndirectCommand{
			Count:         mesh.LODIndicesCount(level),
			InstanceCount: 1,
			FirstIndex:    mesh.IndexOffset + mesh.LODOffset[level],
			BaseVertex:    int32(mesh.VertexOffset),
			BaseInstance:  i,
		})
		data = append(data, DrawData{TransformID: uint32(node), MaterialID: mesh.MaterialID})
	}
	return cmds, data, nodes
}

func encodeCommands(cmds []gpu.DrawIndexedIndirectCommand) []byte {
	b := make([]byte, 4+len(cmds)*gpu.DrawCommandSize)
	byteOrder.PutUint32(b, uint32(len(cmds)))
	for i, c := range cmds {
		c.Put(b[4+i*gpu.DrawCommandSize:])
	}
	return b
}

func encodeDrawData(data []DrawData) []byte {
	b := make([]byte, len(data)*drawDataSize)
	for i, d := range data {
		byteOrder.PutUint32(b[i*drawDataSize:], d.TransformID)
		byteOrder.PutUint32(b[i*drawDataSize+4:], d.MaterialID)
	}
	return b
}
