// Package drawset uploads a scene to the GPU and draws all of it with a
// single indexed-indirect-count call.
//
// The indirect buffer is laid out as [uint32 count][command x count] and is
// host visible, so the culling engine can toggle each command's
// instanceCount in place. Commands are built once, in ascending node order,
// and never resized.
package drawset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	gomath "math"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/scenery/internal/gpu"
	"github.com/Faultbox/scenery/internal/logger"
	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/scene"
)

var byteOrder = binary.LittleEndian

var (
	ErrNoGeometry      = errors.New("mesh data has no geometry")
	ErrMeshReference   = errors.New("node references a missing mesh")
	ErrNoTextureLoader = errors.New("materials reference textures but no texture loader is set")
)

// TextureLoader decodes a texture file into RGBA pixels.
type TextureLoader interface {
	Load(path string) (*image.RGBA, error)
}

// LazyConfig enables background texture loading.
type LazyConfig struct {
	Workers   int
	QueueSize int
	// MaxUploadsPerFrame caps how many loaded textures
	// ProcessLoadedTextures uploads per call.
	MaxUploadsPerFrame int
}

// DefaultLazyConfig uploads one texture per frame using two workers.
func DefaultLazyConfig() LazyConfig {
	return LazyConfig{Workers: 2, QueueSize: 64, MaxUploadsPerFrame: 1}
}

type options struct {
	lod        int
	loader     TextureLoader
	textureDir string
	lazy       *LazyConfig
	log        *zap.Logger
}

// Option configures New.
type Option func(*options)

// WithLOD draws every mesh at the given LOD, clamped per mesh.
func WithLOD(lod int) Option {
	return func(o *options) { o.lod = lod }
}

// WithTextures resolves texture file names relative to dir and decodes them
// with loader.
func WithTextures(loader TextureLoader, dir string) Option {
	return func(o *options) {
		o.loader = loader
		o.textureDir = dir
	}
}

// WithLazyTextures loads textures in the background. Materials start out
// untextured and are patched by ProcessLoadedTextures.
func WithLazyTextures(cfg LazyConfig) Option {
	return func(o *options) { o.lazy = &cfg }
}

// WithLogger sets the draw set logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = logger.OrNop(l) }
}

// DrawSet owns the GPU buffers of one scene.
type DrawSet struct {
	dev gpu.Device
	log *zap.Logger

	vertexBuf    gpu.Buffer
	indexBuf     gpu.Buffer
	transformBuf gpu.Buffer
	materialBuf  gpu.Buffer
	drawDataBuf  gpu.Buffer
	indirectBuf  gpu.Buffer

	commands  []gpu.DrawIndexedIndirectCommand
	drawData  []DrawData
	nodes     []int
	materials []formats.Material
	gpuMats   []GPUMaterial

	textureFiles []string
	textureDir   string
	textures     *textureCache
	lazy         *lazyLoader
}

// New uploads md and the transforms of s and builds the indirect commands.
func New(dev gpu.Device, md *formats.MeshData, s *scene.Scene, opts ...Option) (*DrawSet, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if len(md.VertexData) == 0 || len(md.IndexData) == 0 {
		return nil, ErrNoGeometry
	}
	for node, mesh := range s.MeshForNode {
		if int(mesh) >= len(md.Meshes) {
			return nil, fmt.Errorf("node %d mesh %d of %d: %w", node, mesh, len(md.Meshes), ErrMeshReference)
		}
	}
	if o.loader == nil && usesTextures(md.Materials) {
		return nil, ErrNoTextureLoader
	}

	ds := &DrawSet{
		dev:          dev,
		log:          o.log,
		materials:    md.Materials,
		textureFiles: md.TextureFiles,
		textureDir:   o.textureDir,
		textures:     newTextureCache(),
	}
	ds.commands, ds.drawData, ds.nodes = BuildCommands(md, s, o.lod)

	var err error
	if ds.vertexBuf, err = dev.CreateBuffer(gpu.BufferDesc{
		Usage: gpu.BufferUsageVertex | gpu.BufferUsageStorage, Data: md.VertexData, DebugName: "vertices",
	}); err != nil {
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}
	if ds.indexBuf, err = dev.CreateBuffer(gpu.BufferDesc{
		Usage: gpu.BufferUsageIndex, Data: encodeIndices(md.IndexData), DebugName: "indices",
	}); err != nil {
		return nil, fmt.Errorf("create index buffer: %w", err)
	}
	if ds.transformBuf, err = dev.CreateBuffer(gpu.BufferDesc{
		Usage: gpu.BufferUsageStorage, Data: nonEmpty(encodeTransforms(s)), DebugName: "transforms",
	}); err != nil {
		return nil, fmt.Errorf("create transform buffer: %w", err)
	}
	if ds.drawDataBuf, err = dev.CreateBuffer(gpu.BufferDesc{
		Usage: gpu.BufferUsageStorage, Data: nonEmpty(encodeDrawData(ds.drawData)), DebugName: "draw data",
	}); err != nil {
		return nil, fmt.Errorf("create draw data buffer: %w", err)
	}
	if ds.indirectBuf, err = dev.CreateBuffer(gpu.BufferDesc{
		Usage:     gpu.BufferUsageIndirect | gpu.BufferUsageStorage,
		Storage:   gpu.StorageHostVisible,
		Data:      encodeCommands(ds.commands),
		DebugName: "indirect commands",
	}); err != nil {
		return nil, fmt.Errorf("create indirect buffer: %w", err)
	}

	if o.lazy != nil {
		ds.gpuMats = ds.convertMaterials(func(int32) gpu.Texture { return 0 })
	} else {
		ds.gpuMats, err = ds.loadMaterialsEager(o.loader)
		if err != nil {
			return nil, err
		}
	}
	if ds.materialBuf, err = dev.CreateBuffer(gpu.BufferDesc{
		Usage: gpu.BufferUsageStorage, Data: nonEmpty(encodeMaterials(ds.gpuMats)), DebugName: "materials",
	}); err != nil {
		return nil, fmt.Errorf("create material buffer: %w", err)
	}

	ds.log.Info("draw set created",
		zap.Int("commands", len(ds.commands)),
		zap.Int("materials", len(ds.materials)),
		zap.Int("vertexBytes", len(md.VertexData)),
		zap.Int("indices", len(md.IndexData)),
		zap.Bool("lazyTextures", o.lazy != nil))

	if o.lazy != nil && o.loader != nil {
		ds.lazy = newLazyLoader(ds, o.loader, *o.lazy)
		ds.lazy.start(ds.referencedTextures())
	}
	return ds, nil
}

func usesTextures(materials []formats.Material) bool {
	for i := range materials {
		for _, t := range materials[i].Textures() {
			if *t != formats.NoTexture {
				return true
			}
		}
	}
	return false
}

// referencedTextures returns the texture file indices used by any material,
// in ascending order.
func (ds *DrawSet) referencedTextures() []int32 {
	seen := make([]bool, len(ds.textureFiles))
	var out []int32
	for i := range ds.materials {
		for _, t := range ds.materials[i].Textures() {
			if *t != formats.NoTexture && int(*t) < len(seen) && !seen[*t] {
				seen[*t] = true
			}
		}
	}
	for i, ok := range seen {
		if ok {
			out = append(out, int32(i))
		}
	}
	return out
}

func (ds *DrawSet) texturePath(file int32) string {
	name := ds.textureFiles[file]
	if filepath.IsAbs(name) || ds.textureDir == "" {
		return name
	}
	return filepath.Join(ds.textureDir, name)
}

func (ds *DrawSet) convertMaterials(resolve func(int32) gpu.Texture) []GPUMaterial {
	out := make([]GPUMaterial, len(ds.materials))
	for i, m := range ds.materials {
		out[i] = newGPUMaterial(m, resolve)
	}
	return out
}

func (ds *DrawSet) loadMaterialsEager(loader TextureLoader) ([]GPUMaterial, error) {
	for _, file := range ds.referencedTextures() {
		if err := ds.loadTexture(loader, file); err != nil {
			return nil, err
		}
	}
	return ds.convertMaterials(ds.textures.get), nil
}

func (ds *DrawSet) loadTexture(loader TextureLoader, file int32) error {
	path := ds.texturePath(file)
	img, err := loader.Load(path)
	if err != nil {
		return fmt.Errorf("load texture %s: %w", path, err)
	}
	return ds.uploadTexture(file, img)
}

func (ds *DrawSet) uploadTexture(file int32, img *image.RGBA) error {
	tex, err := ds.dev.CreateTexture(gpu.TextureDesc{
		Width:     img.Rect.Dx(),
		Height:    img.Rect.Dy(),
		Format:    gpu.TextureFormatRGBA8,
		Data:      tightPixels(img),
		DebugName: ds.textureFiles[file],
	})
	if err != nil {
		return fmt.Errorf("create texture %s: %w", ds.textureFiles[file], err)
	}
	ds.textures.put(file, tex)
	return nil
}

// tightPixels returns img's pixels without row padding.
func tightPixels(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Stride == w*4 && len(img.Pix) == w*h*4 {
		return img.Pix
	}
	out := make([]byte, 0, w*h*4)
	for y := 0; y < h; y++ {
		start := y * img.Stride
		out = append(out, img.Pix[start:start+w*4]...)
	}
	return out
}

func encodeIndices(indices []uint32) []byte {
	b := make([]byte, len(indices)*4)
	for i, idx := range indices {
		byteOrder.PutUint32(b[i*4:], idx)
	}
	return b
}

func encodeTransforms(s *scene.Scene) []byte {
	b := make([]byte, len(s.GlobalTransform)*64)
	for i, m := range s.GlobalTransform {
		for j, f := range m {
			byteOrder.PutUint32(b[i*64+j*4:], gomath.Float32bits(f))
		}
	}
	return b
}

// nonEmpty pads zero-length data so the buffer can still be created and
// bound.
func nonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return make([]byte, 16)
	}
	return b
}

// UpdateTransforms re-uploads every node's global transform. The node
// count must not have changed.
func (ds *DrawSet) UpdateTransforms(s *scene.Scene) error {
	return ds.dev.Upload(ds.transformBuf, encodeTransforms(s), 0)
}

// Draw records the single indirect draw of the whole set.
func (ds *DrawSet) Draw(cmd gpu.CommandBuffer) {
	cmd.BindVertexBuffer(ds.vertexBuf)
	cmd.BindIndexBuffer(ds.indexBuf)
	cmd.DrawIndexedIndirectCount(ds.indirectBuf, 4, ds.indirectBuf, 0, uint32(len(ds.commands)))
}

// NumCommands returns the number of indirect commands.
func (ds *DrawSet) NumCommands() int { return len(ds.commands) }

// Commands returns the commands as built at construction.
func (ds *DrawSet) Commands() []gpu.DrawIndexedIndirectCommand { return ds.commands }

// DrawData returns the per-command transform and material records.
func (ds *DrawSet) DrawData() []DrawData { return ds.drawData }

// CommandNode returns the node drawn by command i.
func (ds *DrawSet) CommandNode(i int) int { return ds.nodes[i] }

// IndirectBuffer returns the [count][commands] buffer.
func (ds *DrawSet) IndirectBuffer() gpu.Buffer { return ds.indirectBuf }

// DrawDataBuffer returns the DrawData storage buffer.
func (ds *DrawSet) DrawDataBuffer() gpu.Buffer { return ds.drawDataBuf }

// TransformBuffer returns the per-node mat4 storage buffer.
func (ds *DrawSet) TransformBuffer() gpu.Buffer { return ds.transformBuf }

// MaterialBuffer returns the GPUMaterial storage buffer.
func (ds *DrawSet) MaterialBuffer() gpu.Buffer { return ds.materialBuf }

// Materials returns the GPU materials as last uploaded.
func (ds *DrawSet) Materials() []GPUMaterial { return ds.gpuMats }

// Texture returns the handle of texture file index file, or 0 if it is not
// loaded yet.
func (ds *DrawSet) Texture(file int32) gpu.Texture { return ds.textures.get(file) }
