// Package culling toggles the visibility of indirect draw commands by
// testing each node's world-space bounding box against the camera frustum.
//
// The test runs either on the CPU, writing straight into the persistently
// mapped indirect buffer, or as a compute dispatch recorded ahead of the
// draw. Both paths share math.IsBoxInFrustum and produce the same
// instanceCount values for the same input.
package culling

import (
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"
	"strings"

	"github.com/Faultbox/scenery/internal/gpu"
	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/math"
	"github.com/Faultbox/scenery/pkg/scene"
)

var (
	ErrUnknownMode = errors.New("unknown culling mode")
	ErrMissingBox  = errors.New("draw command references a node without a bounding box")
)

var byteOrder = binary.LittleEndian

// Mode selects where culling runs.
type Mode uint8

const (
	// ModeNone draws everything.
	ModeNone Mode = iota
	ModeCPU
	ModeGPU
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeCPU:
		return "cpu"
	case ModeGPU:
		return "gpu"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode parses "none", "cpu" or "gpu".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return ModeNone, nil
	case "cpu":
		return ModeCPU, nil
	case "gpu":
		return ModeGPU, nil
	default:
		return ModeNone, fmt.Errorf("%q: %w", s, ErrUnknownMode)
	}
}

// Target is the draw set being culled. Command i draws node CommandNode(i),
// and the DrawData record at the command's baseInstance names that node.
type Target interface {
	NumCommands() int
	IndirectBuffer() gpu.Buffer
	DrawDataBuffer() gpu.Buffer
	CommandNode(i int) int
}

// WorldBoxes returns one box per scene node: the node's mesh box moved by
// its global transform, or an empty box when the node has no mesh.
func WorldBoxes(s *scene.Scene, md *formats.MeshData) []math.BoundingBox {
	boxes := make([]math.BoundingBox, s.NumNodes())
	for i := range boxes {
		boxes[i] = math.EmptyBox()
	}
	for node, mesh := range s.MeshForNode {
		if int(mesh) >= len(md.Boxes) || int(node) >= len(boxes) {
			continue
		}
		boxes[node] = md.Boxes[mesh].Transformed(s.GlobalTransform[node])
	}
	return boxes
}

// GPU layout of the culling parameters:
//
//	vec4 planes[6]; vec4 corners[8]; uint numMeshesToCull; uint numVisibleMeshes;
const (
	cullingDataSize       = 6*16 + 8*16 + 4 + 4
	offsetCorners         = 6 * 16
	offsetNumMeshesToCull = offsetCorners + 8*16
	offsetNumVisible      = offsetNumMeshesToCull + 4
)

// GPU layout of a box: vec4 min, vec4 max.
const boxSize = 32

func putVec4(b []byte, v math.Vec4) {
	for i, f := range v {
		byteOrder.PutUint32(b[i*4:], gomath.Float32bits(f))
	}
}

func getVec4(b []byte) math.Vec4 {
	var v math.Vec4
	for i := range v {
		v[i] = gomath.Float32frombits(byteOrder.Uint32(b[i*4:]))
	}
	return v
}

func encodeCullingData(f *math.Frustum, numMeshes uint32) []byte {
	b := make([]byte, cullingDataSize)
	for i, p := range f.Planes {
		putVec4(b[i*16:], p)
	}
	for i, c := range f.Corners {
		putVec4(b[offsetCorners+i*16:], c)
	}
	byteOrder.PutUint32(b[offsetNumMeshesToCull:], numMeshes)
	return b
}

func decodeFrustum(b []byte) math.Frustum {
	var f math.Frustum
	for i := range f.Planes {
		f.Planes[i] = getVec4(b[i*16:])
	}
	for i := range f.Corners {
		f.Corners[i] = getVec4(b[offsetCorners+i*16:])
	}
	return f
}

func encodeBoxes(boxes []math.BoundingBox) []byte {
	b := make([]byte, len(boxes)*boxSize)
	for i, box := range boxes {
		putVec4(b[i*boxSize:], math.Point(box.Min))
		putVec4(b[i*boxSize+16:], math.Point(box.Max))
	}
	return b
}

func decodeBox(b []byte) math.BoundingBox {
	return math.BoundingBox{Min: getVec4(b).XYZ(), Max: getVec4(b[16:]).XYZ()}
}
