// Package soft is a host-memory implementation of gpu.Device. Compute
// pipelines run their Kernel on a bounded set of goroutines and indirect
// draws are resolved into DrawRecords instead of rasterized, which makes the
// device usable for headless tools and for tests of GPU-driven code.
package soft

import (
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/scenery/internal/gpu"
	"github.com/Faultbox/scenery/internal/logger"
)

type buffer struct {
	desc    gpu.BufferDesc
	data    []byte
	flushes int
}

type texture struct {
	desc gpu.TextureDesc
}

// DrawRecord is the resolved result of one DrawIndexedIndirectCount.
type DrawRecord struct {
	VertexBuffer gpu.Buffer
	IndexBuffer  gpu.Buffer
	Commands     []gpu.DrawIndexedIndirectCommand
}

// Instances returns the total instance count across the record's commands.
func (r DrawRecord) Instances() int {
	n := 0
	for _, c := range r.Commands {
		n += int(c.InstanceCount)
	}
	return n
}

// Triangles returns the number of triangles the record would rasterize.
func (r DrawRecord) Triangles() int {
	n := 0
	for _, c := range r.Commands {
		n += int(c.Count/3) * int(c.InstanceCount)
	}
	return n
}

// Device is a gpu.Device backed by host memory.
type Device struct {
	mu        sync.Mutex
	atomicMu  sync.Mutex
	buffers   []*buffer
	textures  []*texture
	pipelines []gpu.ComputePipelineDesc
	submits   uint64
	draws     []DrawRecord
	workers   int
	log       *zap.Logger
}

// Option configures a Device.
type Option func(*Device)

// WithWorkers bounds the number of goroutines a dispatch may use.
func WithWorkers(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithLogger sets the device logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Device) {
		d.log = logger.OrNop(l)
	}
}

// New creates an empty device.
func New(options ...Option) *Device {
	d := &Device{
		workers: runtime.GOMAXPROCS(0),
		log:     zap.NewNop(),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

var _ gpu.Device = (*Device)(nil)

func (d *Device) buffer(b gpu.Buffer) (*buffer, error) {
	if b == 0 || int(b) > len(d.buffers) {
		return nil, fmt.Errorf("buffer %d: %w", b, gpu.ErrInvalidHandle)
	}
	return d.buffers[b-1], nil
}

func checkRange(size, offset, n int) error {
	if offset < 0 || n < 0 || offset+n > size {
		return fmt.Errorf("[%d,%d) of %d bytes: %w", offset, offset+n, size, gpu.ErrOutOfRange)
	}
	return nil
}

// CreateBuffer allocates a zeroed buffer of desc.Size bytes, or of
// len(desc.Data) when Size is zero.
func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	size := desc.Size
	if size == 0 {
		size = len(desc.Data)
	}
	if size <= 0 || len(desc.Data) > size {
		return 0, fmt.Errorf("buffer %q size %d data %d: %w", desc.DebugName, desc.Size, len(desc.Data), gpu.ErrInvalidDesc)
	}
	buf := &buffer{desc: desc, data: make([]byte, size)}
	copy(buf.data, desc.Data)
	buf.desc.Data = nil
	buf.desc.Size = size

	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffers = append(d.buffers, buf)
	d.log.Debug("buffer created", zap.String("name", desc.DebugName), zap.Int("size", size))
	return gpu.Buffer(len(d.buffers)), nil
}

// Upload copies data into b at offset.
func (d *Device) Upload(b gpu.Buffer, data []byte, offset int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.upload(b, data, offset)
}

func (d *Device) upload(b gpu.Buffer, data []byte, offset int) error {
	buf, err := d.buffer(b)
	if err != nil {
		return err
	}
	if err := checkRange(len(buf.data), offset, len(data)); err != nil {
		return err
	}
	copy(buf.data[offset:], data)
	return nil
}

// Download copies len(dst) bytes of b starting at offset into dst.
func (d *Device) Download(b gpu.Buffer, offset int, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, err := d.buffer(b)
	if err != nil {
		return err
	}
	if err := checkRange(len(buf.data), offset, len(dst)); err != nil {
		return err
	}
	copy(dst, buf.data[offset:])
	return nil
}

// MappedBytes returns the persistent mapping of a host-visible buffer.
func (d *Device) MappedBytes(b gpu.Buffer) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, err := d.buffer(b)
	if err != nil {
		return nil, err
	}
	if buf.desc.Storage != gpu.StorageHostVisible {
		return nil, fmt.Errorf("buffer %q: %w", buf.desc.DebugName, gpu.ErrNotMapped)
	}
	return buf.data, nil
}

// FlushMappedMemory validates the range and counts the flush. Host memory
// is always coherent here.
func (d *Device) FlushMappedMemory(b gpu.Buffer, offset, size int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, err := d.buffer(b)
	if err != nil {
		return err
	}
	if buf.desc.Storage != gpu.StorageHostVisible {
		return fmt.Errorf("buffer %q: %w", buf.desc.DebugName, gpu.ErrNotMapped)
	}
	if err := checkRange(len(buf.data), offset, size); err != nil {
		return err
	}
	buf.flushes++
	return nil
}

// Flushes returns how many times b was flushed.
func (d *Device) Flushes(b gpu.Buffer) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, err := d.buffer(b)
	if err != nil {
		return 0
	}
	return buf.flushes
}

// CreateTexture stores a copy of the texture description.
func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 || len(desc.Data) != desc.Width*desc.Height*4 {
		return 0, fmt.Errorf("texture %q %dx%d with %d bytes: %w",
			desc.DebugName, desc.Width, desc.Height, len(desc.Data), gpu.ErrInvalidDesc)
	}
	desc.Data = append([]byte(nil), desc.Data...)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.textures = append(d.textures, &texture{desc: desc})
	return gpu.Texture(len(d.textures)), nil
}

// TextureDesc returns the description t was created with.
func (d *Device) TextureDesc(t gpu.Texture) (gpu.TextureDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t == 0 || int(t) > len(d.textures) {
		return gpu.TextureDesc{}, false
	}
	return d.textures[t-1].desc, true
}

// NumTextures returns the number of textures created so far.
func (d *Device) NumTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures)
}

// CreateComputePipeline registers a pipeline. Only the Kernel is used.
func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.ComputePipeline, error) {
	if desc.Kernel == nil || desc.LocalSize == 0 {
		return 0, fmt.Errorf("compute pipeline %q: %w", desc.Name, gpu.ErrInvalidDesc)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipelines = append(d.pipelines, desc)
	return gpu.ComputePipeline(len(d.pipelines)), nil
}

// AcquireCommandBuffer returns an empty command buffer for this device.
func (d *Device) AcquireCommandBuffer() gpu.CommandBuffer {
	return &CommandBuffer{dev: d}
}

// Submit executes cmd synchronously. The returned handle is already
// complete.
func (d *Device) Submit(cmd gpu.CommandBuffer) (gpu.SubmitHandle, error) {
	cb, ok := cmd.(*CommandBuffer)
	if !ok || cb.dev != d {
		return 0, fmt.Errorf("command buffer from another device: %w", gpu.ErrInvalidHandle)
	}
	if cb.submitted {
		return 0, fmt.Errorf("command buffer submitted twice: %w", gpu.ErrInvalidHandle)
	}
	cb.submitted = true
	for _, op := range cb.ops {
		if err := op(); err != nil {
			return 0, err
		}
	}

	d.mu.Lock()
	d.submits++
	h := gpu.SubmitHandle(d.submits)
	d.mu.Unlock()
	return h, nil
}

// Wait returns immediately; Submit runs to completion.
func (d *Device) Wait(h gpu.SubmitHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == 0 || uint64(h) > d.submits {
		return fmt.Errorf("submit %d: %w", h, gpu.ErrInvalidHandle)
	}
	return nil
}

// Draws returns the draws resolved since the last ResetDraws.
func (d *Device) Draws() []DrawRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DrawRecord(nil), d.draws...)
}

// LastDraw returns the most recent draw record.
func (d *Device) LastDraw() (DrawRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.draws) == 0 {
		return DrawRecord{}, false
	}
	return d.draws[len(d.draws)-1], true
}

// ResetDraws forgets recorded draws.
func (d *Device) ResetDraws() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws = d.draws[:0]
}
