package drawset

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"go.uber.org/zap"

	"github.com/Faultbox/scenery/internal/gpu"
)

// textureCache maps texture file indices to live handles. It is shared
// between loader goroutines and the frame loop.
type textureCache struct {
	mu      sync.Mutex
	handles map[int32]gpu.Texture
}

func newTextureCache() *textureCache {
	return &textureCache{handles: make(map[int32]gpu.Texture)}
}

func (c *textureCache) get(file int32) gpu.Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[file]
}

func (c *textureCache) put(file int32, tex gpu.Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles[file] = tex
}

func (c *textureCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

type loadedTexture struct {
	file int32
	img  *image.RGBA
	err  error
}

// lazyLoader decodes textures on a worker pool and hands them to the frame
// loop through a channel sized to the number of textures, so workers never
// block on a slow consumer. A feeder goroutine submits the loads, so the
// pool queue bounds how many of them wait at a time.
type lazyLoader struct {
	ds          *DrawSet
	loader      TextureLoader
	cfg         LazyConfig
	log         *zap.Logger
	pool        worker.DynamicWorkerPool
	loaded      chan loadedTexture
	outstanding atomic.Int32
	closed      atomic.Bool
	fed         chan struct{}
	stopOnce    sync.Once
}

func newLazyLoader(ds *DrawSet, loader TextureLoader, cfg LazyConfig) *lazyLoader {
	def := DefaultLazyConfig()
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxUploadsPerFrame < 1 {
		cfg.MaxUploadsPerFrame = def.MaxUploadsPerFrame
	}
	return &lazyLoader{ds: ds, loader: loader, cfg: cfg, log: ds.log.Named("textures")}
}

func (l *lazyLoader) start(files []int32) {
	l.outstanding.Store(int32(len(files)))
	l.loaded = make(chan loadedTexture, len(files))
	l.fed = make(chan struct{})
	if len(files) == 0 {
		close(l.fed)
		return
	}

	// The queue must also hold one exit task per worker.
	l.pool = worker.NewDynamicWorkerPool(l.cfg.Workers, max(l.cfg.QueueSize, l.cfg.Workers), time.Second)
	go func() {
		defer close(l.fed)
		for i, file := range files {
			if l.closed.Load() {
				return
			}
			l.pool.SubmitTask(worker.Task{ID: i, Do: l.loadTask(file)})
		}
	}()
}

func (l *lazyLoader) loadTask(file int32) func() (any, error) {
	path := l.ds.texturePath(file)
	return func() (any, error) {
		l.log.Debug("texture load started", zap.String("path", path))
		img, err := l.loader.Load(path)
		if err != nil {
			l.log.Warn("texture load failed", zap.String("path", path), zap.Error(err))
		} else {
			l.log.Debug("texture load finished", zap.String("path", path))
		}
		l.loaded <- loadedTexture{file: file, img: img, err: err}
		return nil, nil
	}
}

// stop drops queued loads and ends the pool workers. Loads already running
// finish into the buffered channel.
func (l *lazyLoader) stop() {
	l.stopOnce.Do(func() {
		l.closed.Store(true)
		<-l.fed
		if l.pool == nil {
			return
		}
		l.pool.ClearTaskQueue()
		// Pool.Stop signals workers by id over one shared channel and a worker
		// discards ids that are not its own, so it can miss some of them. Each
		// worker also gets a task that ends its goroutine.
		for i := 0; i < l.cfg.Workers; i++ {
			l.pool.SubmitTask(worker.Task{ID: -1, Do: func() (any, error) {
				runtime.Goexit()
				return nil, nil
			}})
		}
		l.pool.Stop()
		l.log.Debug("texture workers stopped", zap.Int32("abandoned", l.outstanding.Load()))
	})
}

// process uploads up to MaxUploadsPerFrame loaded textures, then patches
// and re-uploads the materials once. It never blocks on the workers.
func (l *lazyLoader) process() (int, error) {
	if l.closed.Load() {
		return 0, nil
	}
	uploaded := 0
	var firstErr error
drain:
	for uploaded < l.cfg.MaxUploadsPerFrame {
		select {
		case t := <-l.loaded:
			l.outstanding.Add(-1)
			if t.err != nil {
				firstErr = fmt.Errorf("load texture %s: %w", l.ds.textureFiles[t.file], t.err)
				break drain
			}
			if err := l.ds.uploadTexture(t.file, t.img); err != nil {
				firstErr = err
				break drain
			}
			uploaded++
		default:
			break drain
		}
	}

	if uploaded > 0 {
		if err := l.ds.refreshMaterials(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if l.outstanding.Load() == 0 {
		l.stop()
	}
	return uploaded, firstErr
}

func (ds *DrawSet) refreshMaterials() error {
	ds.gpuMats = ds.convertMaterials(ds.textures.get)
	if err := ds.dev.Upload(ds.materialBuf, encodeMaterials(ds.gpuMats), 0); err != nil {
		return fmt.Errorf("upload materials: %w", err)
	}
	return nil
}

// ProcessLoadedTextures uploads textures that finished loading in the
// background, at most LazyConfig.MaxUploadsPerFrame per call, and returns
// how many were uploaded. Call it once per frame. It is a no-op for draw
// sets with eager textures.
func (ds *DrawSet) ProcessLoadedTextures() (int, error) {
	if ds.lazy == nil {
		return 0, nil
	}
	return ds.lazy.process()
}

// PendingTextures returns the number of textures not yet uploaded. It is
// 0 after Close.
func (ds *DrawSet) PendingTextures() int {
	if ds.lazy == nil || ds.lazy.closed.Load() {
		return 0
	}
	return int(ds.lazy.outstanding.Load())
}

// Close stops background texture loading. Textures not yet uploaded stay
// unloaded. The workers also stop on their own once every texture has been
// uploaded. Close does not release GPU buffers, which belong to the device.
func (ds *DrawSet) Close() {
	if ds.lazy != nil {
		ds.lazy.stop()
	}
}

// LoadedTextures returns the number of textures with a live handle.
func (ds *DrawSet) LoadedTextures() int {
	return ds.textures.len()
}
