package culling

import (
	"github.com/Faultbox/scenery/internal/gpu"
	"github.com/Faultbox/scenery/pkg/math"
)

// Push constant block: buffer handles of the draw commands, draw data,
// world boxes and culling parameters, in that order.
const pushConstantsSize = 16

func encodePushConstants(commands, drawData, boxes, params gpu.Buffer) []byte {
	b := make([]byte, pushConstantsSize)
	byteOrder.PutUint32(b[0:], uint32(commands))
	byteOrder.PutUint32(b[4:], uint32(drawData))
	byteOrder.PutUint32(b[8:], uint32(boxes))
	byteOrder.PutUint32(b[12:], uint32(params))
	return b
}

// cullKernel is the host version of shaders.FrustumCullCompute. One
// invocation handles one draw command.
func cullKernel(inv gpu.Invocation) {
	pc := inv.PushConstants
	commands := gpu.Buffer(byteOrder.Uint32(pc[0:]))
	drawData := gpu.Buffer(byteOrder.Uint32(pc[4:]))
	boxes := gpu.Buffer(byteOrder.Uint32(pc[8:]))
	params := gpu.Buffer(byteOrder.Uint32(pc[12:]))

	p := inv.Memory.Bytes(params)
	if inv.GlobalID >= byteOrder.Uint32(p[offsetNumMeshesToCull:]) {
		return
	}
	frustum := decodeFrustum(p)

	cmd := inv.Memory.Bytes(commands)[4+int(inv.GlobalID)*gpu.DrawCommandSize:]
	baseInstance := byteOrder.Uint32(cmd[16:])
	transformID := byteOrder.Uint32(inv.Memory.Bytes(drawData)[baseInstance*drawDataSize:])
	box := decodeBox(inv.Memory.Bytes(boxes)[transformID*boxSize:])

	var visible uint32
	if math.IsBoxInFrustum(&frustum, box) {
		visible = 1
	}
	byteOrder.PutUint32(cmd[gpu.InstanceCountOffset:], visible)
	inv.Memory.AtomicAdd(params, offsetNumVisible, visible)
}

// drawDataSize is the stride of DrawData{transformId, materialId}.
const drawDataSize = 8
