package soft

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/scenery/internal/gpu"
)

// CommandBuffer records operations and replays them on Submit.
type CommandBuffer struct {
	dev       *Device
	ops       []func() error
	pipeline  gpu.ComputePipeline
	push      []byte
	vertex    gpu.Buffer
	index     gpu.Buffer
	submitted bool
}

var _ gpu.CommandBuffer = (*CommandBuffer)(nil)

// UpdateBuffer schedules a copy of data into b.
func (c *CommandBuffer) UpdateBuffer(b gpu.Buffer, offset int, data []byte) {
	data = append([]byte(nil), data...)
	c.ops = append(c.ops, func() error {
		return c.dev.Upload(b, data, offset)
	})
}

// BindComputePipeline selects the pipeline for following dispatches.
func (c *CommandBuffer) BindComputePipeline(p gpu.ComputePipeline) {
	c.pipeline = p
}

// PushConstants sets the push constant block for following dispatches.
func (c *CommandBuffer) PushConstants(data []byte) {
	c.push = append([]byte(nil), data...)
}

// Dispatch runs groups.X workgroups of the bound pipeline. Y and Z must be
// one. Dependencies are implicit because ops run in order.
func (c *CommandBuffer) Dispatch(groups gpu.Dimensions, _ ...gpu.Buffer) {
	p, push := c.pipeline, c.push
	c.ops = append(c.ops, func() error {
		return c.dev.dispatch(p, push, groups)
	})
}

// BindVertexBuffer sets the vertex buffer for following draws.
func (c *CommandBuffer) BindVertexBuffer(b gpu.Buffer) {
	c.vertex = b
}

// BindIndexBuffer sets the index buffer for following draws.
func (c *CommandBuffer) BindIndexBuffer(b gpu.Buffer) {
	c.index = b
}

// DrawIndexedIndirectCount reads the draw count from count at countOffset,
// clamps it to maxDrawCount and records the commands read from indirect.
func (c *CommandBuffer) DrawIndexedIndirectCount(indirect gpu.Buffer, indirectOffset int, count gpu.Buffer, countOffset int, maxDrawCount uint32) {
	vb, ib := c.vertex, c.index
	c.ops = append(c.ops, func() error {
		return c.dev.drawIndirect(vb, ib, indirect, indirectOffset, count, countOffset, maxDrawCount)
	})
}

func (d *Device) drawIndirect(vb, ib, indirect gpu.Buffer, indirectOffset int, count gpu.Buffer, countOffset int, maxDrawCount uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cbuf, err := d.buffer(count)
	if err != nil {
		return err
	}
	if err := checkRange(len(cbuf.data), countOffset, 4); err != nil {
		return err
	}
	n := binary.LittleEndian.Uint32(cbuf.data[countOffset:])
	if n > maxDrawCount {
		n = maxDrawCount
	}

	ibuf, err := d.buffer(indirect)
	if err != nil {
		return err
	}
	if err := checkRange(len(ibuf.data), indirectOffset, int(n)*gpu.DrawCommandSize); err != nil {
		return err
	}

	rec := DrawRecord{VertexBuffer: vb, IndexBuffer: ib, Commands: make([]gpu.DrawIndexedIndirectCommand, n)}
	for i := range rec.Commands {
		rec.Commands[i] = gpu.ReadDrawCommand(ibuf.data[indirectOffset+i*gpu.DrawCommandSize:])
	}
	d.draws = append(d.draws, rec)
	return nil
}

func (d *Device) dispatch(p gpu.ComputePipeline, push []byte, groups gpu.Dimensions) error {
	d.mu.Lock()
	if p == 0 || int(p) > len(d.pipelines) {
		d.mu.Unlock()
		return fmt.Errorf("compute pipeline %d: %w", p, gpu.ErrInvalidHandle)
	}
	desc := d.pipelines[p-1]
	d.mu.Unlock()

	if groups.Y > 1 || groups.Z > 1 {
		return fmt.Errorf("pipeline %q: only 1D dispatch is supported: %w", desc.Name, gpu.ErrInvalidDesc)
	}

	mem := memory{dev: d}
	var g errgroup.Group
	g.SetLimit(d.workers)
	for group := uint32(0); group < groups.X; group++ {
		base := group * desc.LocalSize
		g.Go(func() error {
			for local := uint32(0); local < desc.LocalSize; local++ {
				desc.Kernel(gpu.Invocation{GlobalID: base + local, PushConstants: push, Memory: mem})
			}
			return nil
		})
	}
	return g.Wait()
}

// memory gives kernels raw buffer access. Slices are stable for the
// duration of a dispatch because buffers are never resized.
type memory struct {
	dev *Device
}

func (m memory) Bytes(b gpu.Buffer) []byte {
	m.dev.mu.Lock()
	defer m.dev.mu.Unlock()
	buf, err := m.dev.buffer(b)
	if err != nil {
		return nil
	}
	return buf.data
}

func (m memory) AtomicAdd(b gpu.Buffer, offset int, delta uint32) uint32 {
	data := m.Bytes(b)
	if offset < 0 || offset+4 > len(data) {
		return 0
	}
	m.dev.atomicMu.Lock()
	defer m.dev.atomicMu.Unlock()
	old := binary.LittleEndian.Uint32(data[offset:])
	binary.LittleEndian.PutUint32(data[offset:], old+delta)
	return old
}
