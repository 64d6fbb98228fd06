package soft

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenery/internal/gpu"
)

func TestBufferUploadDownload(t *testing.T) {
	d := New()
	b, err := d.CreateBuffer(gpu.BufferDesc{Usage: gpu.BufferUsageStorage, Size: 8, Data: []byte{1, 2}})
	require.NoError(t, err)

	require.NoError(t, d.Upload(b, []byte{9, 9}, 6))
	got := make([]byte, 8)
	require.NoError(t, d.Download(b, 0, got))
	assert.Equal(t, []byte{1, 2, 0, 0, 0, 0, 9, 9}, got)

	assert.ErrorIs(t, d.Upload(b, []byte{1, 2, 3}, 6), gpu.ErrOutOfRange)
	assert.ErrorIs(t, d.Upload(0, nil, 0), gpu.ErrInvalidHandle)
	_, err = d.CreateBuffer(gpu.BufferDesc{})
	assert.ErrorIs(t, err, gpu.ErrInvalidDesc)
}

func TestMappedBytes(t *testing.T) {
	d := New()
	dev, err := d.CreateBuffer(gpu.BufferDesc{Size: 4})
	require.NoError(t, err)
	_, err = d.MappedBytes(dev)
	assert.ErrorIs(t, err, gpu.ErrNotMapped)

	host, err := d.CreateBuffer(gpu.BufferDesc{Size: 4, Storage: gpu.StorageHostVisible})
	require.NoError(t, err)
	m, err := d.MappedBytes(host)
	require.NoError(t, err)
	m[0] = 7
	require.NoError(t, d.FlushMappedMemory(host, 0, 4))
	assert.Equal(t, 1, d.Flushes(host))

	got := make([]byte, 1)
	require.NoError(t, d.Download(host, 0, got))
	assert.Equal(t, byte(7), got[0])
	assert.ErrorIs(t, d.FlushMappedMemory(host, 2, 4), gpu.ErrOutOfRange)
}

func TestTextures(t *testing.T) {
	d := New()
	_, err := d.CreateTexture(gpu.TextureDesc{Width: 2, Height: 2, Data: make([]byte, 3)})
	assert.ErrorIs(t, err, gpu.ErrInvalidDesc)

	tex, err := d.CreateTexture(gpu.TextureDesc{Width: 1, Height: 1, Data: []byte{1, 2, 3, 4}, DebugName: "white"})
	require.NoError(t, err)
	assert.NotZero(t, tex)
	desc, ok := d.TextureDesc(tex)
	require.True(t, ok)
	assert.Equal(t, "white", desc.DebugName)
	assert.Equal(t, 1, d.NumTextures())
}

func TestDispatchWritesEveryInvocation(t *testing.T) {
	d := New(WithWorkers(3))
	const n = 100
	out, err := d.CreateBuffer(gpu.BufferDesc{Size: n * 4})
	require.NoError(t, err)
	counter, err := d.CreateBuffer(gpu.BufferDesc{Size: 4})
	require.NoError(t, err)

	p, err := d.CreateComputePipeline(gpu.ComputePipelineDesc{
		Name:      "iota",
		LocalSize: 64,
		Kernel: func(inv gpu.Invocation) {
			limit := binary.LittleEndian.Uint32(inv.PushConstants)
			if inv.GlobalID >= limit {
				return
			}
			binary.LittleEndian.PutUint32(inv.Memory.Bytes(out)[inv.GlobalID*4:], inv.GlobalID*2)
			inv.Memory.AtomicAdd(counter, 0, 1)
		},
	})
	require.NoError(t, err)

	push := make([]byte, 4)
	binary.LittleEndian.PutUint32(push, n)

	cmd := d.AcquireCommandBuffer()
	cmd.BindComputePipeline(p)
	cmd.PushConstants(push)
	cmd.Dispatch(gpu.Dimensions{X: gpu.GroupsFor(n, 64), Y: 1, Z: 1}, out)
	h, err := d.Submit(cmd)
	require.NoError(t, err)
	require.NoError(t, d.Wait(h))

	data := make([]byte, n*4)
	require.NoError(t, d.Download(out, 0, data))
	for i := uint32(0); i < n; i++ {
		assert.Equal(t, i*2, binary.LittleEndian.Uint32(data[i*4:]))
	}
	cnt := make([]byte, 4)
	require.NoError(t, d.Download(counter, 0, cnt))
	assert.Equal(t, uint32(n), binary.LittleEndian.Uint32(cnt))

	_, err = d.Submit(cmd)
	assert.ErrorIs(t, err, gpu.ErrInvalidHandle)
}

func TestDrawIndexedIndirectCount(t *testing.T) {
	d := New()
	buf := make([]byte, 4+3*gpu.DrawCommandSize)
	binary.LittleEndian.PutUint32(buf, 3)
	for i := 0; i < 3; i++ {
		gpu.DrawIndexedIndirectCommand{Count: 6, InstanceCount: uint32(i % 2), BaseInstance: uint32(i)}.
			Put(buf[4+i*gpu.DrawCommandSize:])
	}
	indirect, err := d.CreateBuffer(gpu.BufferDesc{Usage: gpu.BufferUsageIndirect, Data: buf})
	require.NoError(t, err)

	cmd := d.AcquireCommandBuffer()
	cmd.DrawIndexedIndirectCount(indirect, 4, indirect, 0, 2)
	_, err = d.Submit(cmd)
	require.NoError(t, err)

	rec, ok := d.LastDraw()
	require.True(t, ok)
	require.Len(t, rec.Commands, 2)
	assert.Equal(t, uint32(1), rec.Commands[1].BaseInstance)
	assert.Equal(t, 1, rec.Instances())
	assert.Equal(t, 2, rec.Triangles())

	d.ResetDraws()
	assert.Empty(t, d.Draws())
}

func TestGroupsFor(t *testing.T) {
	assert.Equal(t, uint32(0), gpu.GroupsFor(0, 64))
	assert.Equal(t, uint32(1), gpu.GroupsFor(64, 64))
	assert.Equal(t, uint32(2), gpu.GroupsFor(65, 64))
}
