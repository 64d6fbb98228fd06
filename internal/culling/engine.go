package culling

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/scenery/internal/gpu"
	"github.com/Faultbox/scenery/internal/logger"
	"github.com/Faultbox/scenery/internal/shaders"
	"github.com/Faultbox/scenery/pkg/math"
)

// numBufferedFrames is the number of culling parameter buffers cycled
// between frames so the visible count can be read back without a stall.
const numBufferedFrames = 2

// Stats describes one culled frame.
type Stats struct {
	Mode       Mode
	Candidates int
	// Visible is exact for ModeCPU. For ModeGPU it is the count read back
	// from an earlier frame and only fit for display.
	Visible int
	Stale   bool
}

// Engine culls one draw set every frame.
type Engine struct {
	dev    gpu.Device
	target Target
	log    *zap.Logger

	mode   Mode
	frozen bool
	view   math.Mat4
	proj   math.Mat4

	boxes    []math.BoundingBox
	boxBuf   gpu.Buffer
	params   [numBufferedFrames]gpu.Buffer
	submits  [numBufferedFrames]gpu.SubmitHandle
	current  int
	pending  bool
	pipeline gpu.ComputePipeline
	mapped   []byte

	visible int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode sets the initial mode.
func WithMode(m Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = logger.OrNop(l) }
}

// New creates the culling buffers and compute pipeline for target. boxes
// holds one world-space box per scene node (see WorldBoxes).
func New(dev gpu.Device, target Target, boxes []math.BoundingBox, options ...Option) (*Engine, error) {
	e := &Engine{
		dev:    dev,
		target: target,
		log:    zap.NewNop(),
		view:   math.Identity(),
		proj:   math.Identity(),
	}
	for _, option := range options {
		option(e)
	}

	for i := 0; i < target.NumCommands(); i++ {
		if node := target.CommandNode(i); node < 0 || node >= len(boxes) {
			return nil, fmt.Errorf("command %d node %d of %d: %w", i, node, len(boxes), ErrMissingBox)
		}
	}

	mapped, err := dev.MappedBytes(target.IndirectBuffer())
	if err != nil {
		return nil, fmt.Errorf("map indirect buffer: %w", err)
	}
	e.mapped = mapped

	if err := e.uploadBoxes(boxes); err != nil {
		return nil, err
	}

	for i := range e.params {
		e.params[i], err = dev.CreateBuffer(gpu.BufferDesc{
			Usage:     gpu.BufferUsageStorage,
			Storage:   gpu.StorageHostVisible,
			Size:      cullingDataSize,
			DebugName: fmt.Sprintf("culling data %d", i),
		})
		if err != nil {
			return nil, fmt.Errorf("create culling data buffer: %w", err)
		}
	}

	e.pipeline, err = dev.CreateComputePipeline(gpu.ComputePipelineDesc{
		Name:      "frustum cull",
		LocalSize: shaders.FrustumCullLocalSize,
		Source:    shaders.FrustumCullCompute,
		Kernel:    cullKernel,
	})
	if err != nil {
		return nil, fmt.Errorf("create culling pipeline: %w", err)
	}

	e.log.Info("culling engine ready",
		zap.Stringer("mode", e.mode),
		zap.Int("commands", target.NumCommands()),
		zap.Int("boxes", len(boxes)))
	return e, nil
}

func (e *Engine) uploadBoxes(boxes []math.BoundingBox) error {
	data := encodeBoxes(boxes)
	if len(data) == 0 {
		data = make([]byte, boxSize)
	}
	if e.boxBuf == 0 || len(boxes) != len(e.boxes) {
		buf, err := e.dev.CreateBuffer(gpu.BufferDesc{
			Usage:     gpu.BufferUsageStorage,
			Data:      data,
			DebugName: "world boxes",
		})
		if err != nil {
			return fmt.Errorf("create box buffer: %w", err)
		}
		e.boxBuf = buf
	} else if err := e.dev.Upload(e.boxBuf, data, 0); err != nil {
		return fmt.Errorf("upload boxes: %w", err)
	}
	e.boxes = boxes
	return nil
}

// UpdateBoxes replaces the world boxes after the scene's transforms changed.
func (e *Engine) UpdateBoxes(boxes []math.BoundingBox) error {
	for i := 0; i < e.target.NumCommands(); i++ {
		if node := e.target.CommandNode(i); node >= len(boxes) {
			return fmt.Errorf("command %d node %d of %d: %w", i, node, len(boxes), ErrMissingBox)
		}
	}
	return e.uploadBoxes(boxes)
}

// Mode returns the active mode.
func (e *Engine) Mode() Mode { return e.mode }

// SetMode switches between none, CPU and GPU culling.
func (e *Engine) SetMode(m Mode) {
	if m == e.mode {
		return
	}
	e.log.Info("culling mode changed", zap.Stringer("from", e.mode), zap.Stringer("to", m))
	e.mode = m
}

// Freeze stops tracking the live camera. While frozen, Cull keeps using the
// view and projection of the last unfrozen frame.
func (e *Engine) Freeze(on bool) {
	if on == e.frozen {
		return
	}
	e.frozen = on
	e.log.Info("culling view frozen", zap.Bool("frozen", on))
}

// Frozen reports whether the culling view is frozen.
func (e *Engine) Frozen() bool { return e.frozen }

// CullingView returns the view and projection culling currently uses.
func (e *Engine) CullingView() (view, proj math.Mat4) { return e.view, e.proj }

// Frustum returns the frustum culling currently uses.
func (e *Engine) Frustum() math.Frustum {
	return math.NewFrustum(e.proj.Mul(e.view))
}

// VisibleMeshes returns the latest known visible count.
func (e *Engine) VisibleMeshes() int { return e.visible }

// Cull updates every command's instanceCount for the camera (view, proj).
// In GPU mode the dispatch is recorded into cmd, which must be submitted
// before the draw that reads the indirect buffer; pass the handle to
// FrameSubmitted afterwards. CPU and none modes write the mapped buffer
// immediately and leave cmd untouched.
func (e *Engine) Cull(cmd gpu.CommandBuffer, view, proj math.Mat4) (Stats, error) {
	if !e.frozen {
		e.view, e.proj = view, proj
	}
	n := e.target.NumCommands()
	stats := Stats{Mode: e.mode, Candidates: n}

	switch e.mode {
	case ModeNone:
		for i := 0; i < n; i++ {
			e.setInstanceCount(i, 1)
		}
		e.visible = n
	case ModeCPU:
		f := e.Frustum()
		visible := 0
		for i := 0; i < n; i++ {
			var count uint32
			if math.IsBoxInFrustum(&f, e.boxes[e.target.CommandNode(i)]) {
				count = 1
				visible++
			}
			e.setInstanceCount(i, count)
		}
		e.visible = visible
	case ModeGPU:
		f := e.Frustum()
		params := e.params[e.current]
		cmd.UpdateBuffer(params, 0, encodeCullingData(&f, uint32(n)))
		cmd.BindComputePipeline(e.pipeline)
		cmd.PushConstants(encodePushConstants(e.target.IndirectBuffer(), e.target.DrawDataBuffer(), e.boxBuf, params))
		cmd.Dispatch(gpu.Dimensions{X: gpu.GroupsFor(uint32(n), shaders.FrustumCullLocalSize), Y: 1, Z: 1},
			e.target.IndirectBuffer(), params)
		e.pending = true
		stats.Visible = e.visible
		stats.Stale = true
		return stats, nil
	default:
		return stats, fmt.Errorf("%v: %w", e.mode, ErrUnknownMode)
	}

	if err := e.dev.FlushMappedMemory(e.target.IndirectBuffer(), 0, 4+n*gpu.DrawCommandSize); err != nil {
		return stats, fmt.Errorf("flush indirect buffer: %w", err)
	}
	stats.Visible = e.visible
	return stats, nil
}

func (e *Engine) setInstanceCount(i int, count uint32) {
	byteOrder.PutUint32(e.mapped[4+i*gpu.DrawCommandSize+gpu.InstanceCountOffset:], count)
}

// FrameSubmitted records the submission of a frame that Cull recorded a
// dispatch into, then reads back the visible count of the previous
// dispatch.
func (e *Engine) FrameSubmitted(h gpu.SubmitHandle) error {
	if !e.pending {
		return nil
	}
	e.pending = false
	e.submits[e.current] = h
	e.current = (e.current + 1) % numBufferedFrames

	prev := e.submits[e.current]
	if prev == 0 {
		return nil
	}
	if err := e.dev.Wait(prev); err != nil {
		return fmt.Errorf("wait for culling frame: %w", err)
	}
	var count [4]byte
	if err := e.dev.Download(e.params[e.current], offsetNumVisible, count[:]); err != nil {
		return fmt.Errorf("read back visible count: %w", err)
	}
	e.visible = int(byteOrder.Uint32(count[:]))
	e.log.Debug("gpu culling", zap.Int("visible", e.visible), zap.Int("candidates", e.target.NumCommands()))
	return nil
}

// InstanceCounts returns the instanceCount of every command as currently
// stored in the indirect buffer.
func (e *Engine) InstanceCounts() []uint32 {
	out := make([]uint32, e.target.NumCommands())
	for i := range out {
		out[i] = byteOrder.Uint32(e.mapped[4+i*gpu.DrawCommandSize+gpu.InstanceCountOffset:])
	}
	return out
}
