// Package gpu defines the narrow GPU interface the draw set and culling
// engine are written against: buffers, textures, compute dispatch and
// indexed-indirect-count draws recorded into command buffers.
package gpu

import (
	"encoding/binary"
	"errors"
)

// Device errors.
var (
	ErrInvalidHandle = errors.New("invalid GPU handle")
	ErrOutOfRange    = errors.New("GPU buffer access out of range")
	ErrNotMapped     = errors.New("buffer is not host visible")
	ErrInvalidDesc   = errors.New("invalid resource description")
)

// BufferUsage is a bit set of the ways a buffer may be bound.
type BufferUsage uint8

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageStorage
	BufferUsageIndirect
	BufferUsageUniform
)

// StorageType selects where a buffer lives.
type StorageType uint8

const (
	// StorageDevice buffers are only written through Upload or UpdateBuffer.
	StorageDevice StorageType = iota
	// StorageHostVisible buffers are persistently mapped; see MappedBytes.
	StorageHostVisible
)

// Buffer is a buffer handle. The zero value is invalid.
type Buffer uint32

// Texture is a texture handle. The zero value is invalid and shaders treat
// it as "no texture".
type Texture uint32

// ComputePipeline is a compute pipeline handle.
type ComputePipeline uint32

// SubmitHandle identifies one submitted command buffer.
type SubmitHandle uint64

// BufferDesc describes a buffer to create. When Data is set it is uploaded
// as initial contents and Size may be left zero.
type BufferDesc struct {
	Usage     BufferUsage
	Storage   StorageType
	Size      int
	Data      []byte
	DebugName string
}

// TextureFormat is the pixel format of a texture.
type TextureFormat uint8

const (
	TextureFormatRGBA8 TextureFormat = iota
)

// TextureDesc describes a 2D texture created from decoded pixels.
type TextureDesc struct {
	Width     int
	Height    int
	Format    TextureFormat
	Data      []byte
	DebugName string
}

// Dimensions is a 3D dispatch size in workgroups.
type Dimensions struct {
	X, Y, Z uint32
}

// Memory resolves buffer handles inside a software compute kernel.
type Memory interface {
	Bytes(b Buffer) []byte
	AtomicAdd(b Buffer, offset int, delta uint32) uint32
}

// Invocation is one compute shader invocation.
type Invocation struct {
	GlobalID      uint32
	PushConstants []byte
	Memory        Memory
}

// Kernel is the host implementation of a compute shader, used by devices
// that execute compute on the CPU.
type Kernel func(inv Invocation)

// ComputePipelineDesc describes a compute pipeline. Hardware devices compile
// Source; software devices run Kernel.
type ComputePipelineDesc struct {
	Name      string
	LocalSize uint32
	Source    string
	Kernel    Kernel
}

// Device creates resources and executes command buffers.
type Device interface {
	CreateBuffer(desc BufferDesc) (Buffer, error)
	Upload(b Buffer, data []byte, offset int) error
	Download(b Buffer, offset int, dst []byte) error
	MappedBytes(b Buffer) ([]byte, error)
	FlushMappedMemory(b Buffer, offset, size int) error
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateComputePipeline(desc ComputePipelineDesc) (ComputePipeline, error)
	AcquireCommandBuffer() CommandBuffer
	Submit(cmd CommandBuffer) (SubmitHandle, error)
	Wait(h SubmitHandle) error
}

// CommandBuffer records work for one submission. Commands execute in
// recording order; a dispatch finishes before any later draw reads the
// buffers it wrote.
type CommandBuffer interface {
	UpdateBuffer(b Buffer, offset int, data []byte)
	BindComputePipeline(p ComputePipeline)
	PushConstants(data []byte)
	Dispatch(groups Dimensions, deps ...Buffer)
	BindVertexBuffer(b Buffer)
	BindIndexBuffer(b Buffer)
	DrawIndexedIndirectCount(indirect Buffer, indirectOffset int, count Buffer, countOffset int, maxDrawCount uint32)
}

// DrawIndexedIndirectCommand is the GPU layout of one indirect draw.
type DrawIndexedIndirectCommand struct {
	Count         uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	BaseInstance  uint32
}

// DrawCommandSize is the byte stride of DrawIndexedIndirectCommand.
const DrawCommandSize = 20

// Offset of InstanceCount inside DrawIndexedIndirectCommand.
const InstanceCountOffset = 4

// Put encodes c into b.
func (c DrawIndexedIndirectCommand) Put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], c.Count)
	binary.LittleEndian.PutUint32(b[4:], c.InstanceCount)
	binary.LittleEndian.PutUint32(b[8:], c.FirstIndex)
	binary.LittleEndian.PutUint32(b[12:], uint32(c.BaseVertex))
	binary.LittleEndian.PutUint32(b[16:], c.BaseInstance)
}

// ReadDrawCommand decodes a command from b.
func ReadDrawCommand(b []byte) DrawIndexedIndirectCommand {
	return DrawIndexedIndirectCommand{
		Count:         binary.LittleEndian.Uint32(b[0:]),
		InstanceCount: binary.LittleEndian.Uint32(b[4:]),
		FirstIndex:    binary.LittleEndian.Uint32(b[8:]),
		BaseVertex:    int32(binary.LittleEndian.Uint32(b[12:])),
		BaseInstance:  binary.LittleEndian.Uint32(b[16:]),
	}
}

// GroupsFor returns the number of workgroups of localSize needed to cover n
// invocations.
func GroupsFor(n, localSize uint32) uint32 {
	return (n + localSize - 1) / localSize
}
