package drawset

import (
	"errors"
	"image"
	"image/color"
	gomath "math"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenery/internal/gpu"
	"github.com/Faultbox/scenery/internal/gpu/soft"
	"github.com/Faultbox/scenery/internal/testscene"
	"github.com/Faultbox/scenery/pkg/math"
)

type fakeLoader struct {
	mu    sync.Mutex
	calls []string
	fail  string
	gate  chan struct{}
}

func (f *fakeLoader) Load(path string) (*image.RGBA, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()
	if path == f.fail {
		return nil, errors.New("corrupt image")
	}
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img, nil
}

func positions(n int) []math.Vec3 {
	out := make([]math.Vec3, n)
	for i := range out {
		out[i] = math.Vec3{X: float32(i) * 3, Z: -5}
	}
	return out
}

func TestBuildCommands(t *testing.T) {
	md, s := testscene.Cubes(positions(3))

	cmds, data, nodes := BuildCommands(md, s, 0)
	require.Len(t, cmds, 3)
	assert.Equal(t, []int{1, 2, 3}, nodes)

	for i, c := range cmds {
		assert.Equal(t, uint32(1), c.InstanceCount)
		assert.Equal(t, uint32(i), c.BaseInstance)
		assert.Equal(t, uint32(36), c.Count)
		assert.Equal(t, uint32(nodes[i]), data[i].TransformID)
	}
	assert.Equal(t, uint32(0), cmds[0].FirstIndex)
	assert.Equal(t, int32(0), cmds[0].BaseVertex)
	assert.Equal(t, uint32(42), cmds[1].FirstIndex)
	assert.Equal(t, int32(8), cmds[1].BaseVertex)
	assert.Equal(t, uint32(1), data[1].MaterialID)
}

func TestBuildCommandsLODClamped(t *testing.T) {
	md, s := testscene.Cubes(positions(2))

	cmds, _, _ := BuildCommands(md, s, 5)
	// Mesh 0 has two LODs: the last one is a single face.
	assert.Equal(t, uint32(6), cmds[0].Count)
	assert.Equal(t, uint32(36), cmds[0].FirstIndex)
	// Mesh 1 has one LOD.
	assert.Equal(t, uint32(36), cmds[1].Count)
	assert.Equal(t, uint32(42), cmds[1].FirstIndex)
}

func TestNewUploadsIndirectLayout(t *testing.T) {
	dev := soft.New()
	md, s := testscene.Cubes(positions(4))

	ds, err := New(dev, md.WithoutTextures(), s)
	require.NoError(t, err)
	require.Equal(t, 4, ds.NumCommands())

	raw := make([]byte, 4+4*gpu.DrawCommandSize)
	require.NoError(t, dev.Download(ds.IndirectBuffer(), 0, raw))
	assert.Equal(t, uint32(4), byteOrder.Uint32(raw))
	for i, want := range ds.Commands() {
		assert.Equal(t, want, gpu.ReadDrawCommand(raw[4+i*gpu.DrawCommandSize:]))
	}

	dd := make([]byte, 4*drawDataSize)
	require.NoError(t, dev.Download(ds.DrawDataBuffer(), 0, dd))
	assert.Equal(t, uint32(ds.CommandNode(2)), byteOrder.Uint32(dd[2*drawDataSize:]))

	// Transforms are indexed by node, including the mesh-less root.
	tr := make([]byte, 64*s.NumNodes())
	require.NoError(t, dev.Download(ds.TransformBuffer(), 0, tr))
	assert.Equal(t, float32(3), gomath.Float32frombits(byteOrder.Uint32(tr[2*64+12*4:])))
}

func TestDrawRecordsAllVisible(t *testing.T) {
	dev := soft.New()
	md, s := testscene.Cubes(positions(5))
	ds, err := New(dev, md.WithoutTextures(), s)
	require.NoError(t, err)

	cmd := dev.AcquireCommandBuffer()
	ds.Draw(cmd)
	_, err = dev.Submit(cmd)
	require.NoError(t, err)

	rec, ok := dev.LastDraw()
	require.True(t, ok)
	assert.Len(t, rec.Commands, 5)
	assert.Equal(t, 5, rec.Instances())
	assert.Equal(t, 5*12, rec.Triangles())
}

func TestNewErrors(t *testing.T) {
	dev := soft.New()
	md, s := testscene.Cubes(positions(1))

	_, err := New(dev, md, s)
	assert.ErrorIs(t, err, ErrNoTextureLoader)

	bad := *md.WithoutTextures()
	bad.IndexData = nil
	_, err = New(dev, &bad, s)
	assert.ErrorIs(t, err, ErrNoGeometry)

	s.MeshForNode[0] = 9
	_, err = New(dev, md.WithoutTextures(), s)
	assert.ErrorIs(t, err, ErrMeshReference)
}

func TestEagerTextures(t *testing.T) {
	dev := soft.New()
	md, s := testscene.Cubes(positions(2))
	loader := &fakeLoader{}

	ds, err := New(dev, md, s, WithTextures(loader, "/assets"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/assets/base.png", "/assets/normal.png"}, loader.calls)
	assert.Equal(t, 2, dev.NumTextures())

	mats := ds.Materials()
	require.Len(t, mats, 2)
	assert.Equal(t, uint32(ds.Texture(0)), mats[0].BaseColorTexture)
	assert.Equal(t, uint32(ds.Texture(1)), mats[0].NormalTexture)
	assert.Zero(t, mats[0].EmissiveTexture)
	assert.Zero(t, mats[1].BaseColorTexture)
	assert.Equal(t, 0, ds.PendingTextures())

	n, err := ds.ProcessLoadedTextures()
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestEagerTextureFailure(t *testing.T) {
	dev := soft.New()
	md, s := testscene.Cubes(positions(1))
	_, err := New(dev, md, s, WithTextures(&fakeLoader{fail: "normal.png"}, ""))
	assert.ErrorContains(t, err, "normal.png")
}

func TestLazyTexturesRespectUploadCap(t *testing.T) {
	dev := soft.New()
	md, s := testscene.Cubes(positions(2))
	loader := &fakeLoader{gate: make(chan struct{})}

	ds, err := New(dev, md, s,
		WithTextures(loader, ""),
		WithLazyTextures(LazyConfig{Workers: 2, QueueSize: 4, MaxUploadsPerFrame: 1}))
	require.NoError(t, err)

	// Nothing has loaded yet: materials are untextured and the frame step
	// does not block.
	assert.Zero(t, ds.Materials()[0].BaseColorTexture)
	n, err := ds.ProcessLoadedTextures()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, ds.PendingTextures())

	close(loader.gate)
	var maxPerFrame int
	var frameErr error
	require.Eventually(t, func() bool {
		n, err := ds.ProcessLoadedTextures()
		if err != nil {
			frameErr = err
		}
		maxPerFrame = max(maxPerFrame, n)
		return ds.PendingTextures() == 0
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, frameErr)
	assert.Equal(t, 1, maxPerFrame)

	assert.Equal(t, 2, ds.LoadedTextures())
	mats := ds.Materials()
	assert.NotZero(t, mats[0].BaseColorTexture)
	assert.NotZero(t, mats[0].NormalTexture)

	// The uploaded material buffer matches the patched materials.
	raw := make([]byte, 2*GPUMaterialSize)
	require.NoError(t, dev.Download(ds.MaterialBuffer(), 0, raw))
	assert.Equal(t, encodeMaterials(mats), raw)
}

func TestLazyTextureFailure(t *testing.T) {
	dev := soft.New()
	md, s := testscene.Cubes(positions(1))
	ds, err := New(dev, md, s,
		WithTextures(&fakeLoader{fail: "base.png"}, ""),
		WithLazyTextures(LazyConfig{MaxUploadsPerFrame: 2}))
	require.NoError(t, err)

	var failed error
	require.Eventually(t, func() bool {
		if _, err := ds.ProcessLoadedTextures(); err != nil {
			failed = err
		}
		return ds.PendingTextures() == 0
	}, 5*time.Second, time.Millisecond)
	assert.ErrorContains(t, failed, "base.png")
}

// settleGoroutines waits until at most want goroutines are running.
func settleGoroutines(want int) int {
	deadline := time.Now().Add(5 * time.Second)
	for runtime.NumGoroutine() > want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return runtime.NumGoroutine()
}

func TestLazyTexturesReleaseWorkers(t *testing.T) {
	before := runtime.NumGoroutine()
	dev := soft.New()
	md, s := testscene.Cubes(positions(2))
	ds, err := New(dev, md, s,
		WithTextures(&fakeLoader{}, ""),
		WithLazyTextures(LazyConfig{Workers: 3, QueueSize: 1, MaxUploadsPerFrame: 1}))
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for ds.PendingTextures() > 0 && time.Now().Before(deadline) {
		_, err := ds.ProcessLoadedTextures()
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	require.Zero(t, ds.PendingTextures())
	assert.Equal(t, 2, ds.LoadedTextures())
	assert.LessOrEqual(t, settleGoroutines(before), before)
}

func TestCloseStopsTextureLoading(t *testing.T) {
	before := runtime.NumGoroutine()
	dev := soft.New()
	md, s := testscene.Cubes(positions(2))
	loader := &fakeLoader{gate: make(chan struct{})}
	ds, err := New(dev, md, s,
		WithTextures(loader, ""),
		WithLazyTextures(LazyConfig{Workers: 2, MaxUploadsPerFrame: 2}))
	require.NoError(t, err)
	require.Equal(t, 2, ds.PendingTextures())

	ds.Close()
	ds.Close()
	assert.Zero(t, ds.PendingTextures())

	// Loads already running finish but are never uploaded.
	close(loader.gate)
	assert.LessOrEqual(t, settleGoroutines(before), before)
	n, err := ds.ProcessLoadedTextures()
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, ds.LoadedTextures())
	assert.Zero(t, ds.Materials()[0].BaseColorTexture)
}

func TestCloseWithoutLazyTextures(t *testing.T) {
	md, s := testscene.Cubes(positions(1))
	ds, err := New(soft.New(), md.WithoutTextures(), s)
	require.NoError(t, err)
	ds.Close()
	assert.Zero(t, ds.PendingTextures())
}

func TestGPUMaterialLayout(t *testing.T) {
	assert.Equal(t, 80, GPUMaterialSize)
}
