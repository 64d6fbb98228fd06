package importer

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/scenery/internal/logger"
	"github.com/Faultbox/scenery/internal/texture"
	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/math"
	"github.com/Faultbox/scenery/pkg/merge"
	"github.com/Faultbox/scenery/pkg/scene"
)

// Asset is a scene in its cached form: the mesh container, which also
// carries the materials and texture list, and the scene graph.
type Asset struct {
	Meshes *formats.MeshData
	Scene  *scene.Scene
}

// Files names the three cache files of an asset.
type Files struct {
	Mesh     string
	Scene    string
	Material string
}

// Valid reports whether all three files exist and the mesh and material
// files pass their consistency checks.
func (f Files) Valid() bool {
	if !formats.IsMeshDataValid(f.Mesh) || !formats.IsMaterialFileValid(f.Material) {
		return false
	}
	_, err := os.Stat(f.Scene)
	return err == nil
}

// LoadAsset reads a cached asset.
func LoadAsset(files Files) (*Asset, error) {
	_, md, err := formats.LoadMeshData(files.Mesh)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", files.Mesh)
	}
	md.Materials, md.TextureFiles, err = formats.LoadMaterials(files.Material)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", files.Material)
	}
	s, err := scene.LoadScene(files.Scene)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", files.Scene)
	}
	return &Asset{Meshes: md, Scene: s}, nil
}

// Save writes the asset's three cache files.
func (a *Asset) Save(files Files) error {
	if err := formats.SaveMeshData(files.Mesh, a.Meshes); err != nil {
		return errors.Wrapf(err, "save %s", files.Mesh)
	}
	if err := formats.SaveMaterials(files.Material, a.Meshes.Materials, a.Meshes.TextureFiles); err != nil {
		return errors.Wrapf(err, "save %s", files.Material)
	}
	if err := scene.SaveScene(files.Scene, a.Scene); err != nil {
		return errors.Wrapf(err, "save %s", files.Scene)
	}
	return nil
}

// MergeMaterials collapses the nodes of every named material into one node
// per material and recalculates bounding boxes. Materials nobody draws
// with are skipped with a warning.
func (a *Asset) MergeMaterials(names []string, log *zap.Logger) error {
	log = logger.OrNop(log)
	for _, name := range names {
		node, err := merge.NodesWithMaterial(a.Scene, a.Meshes, name)
		if errors.Is(err, merge.ErrNothingToMerge) {
			log.Warn("nothing to merge", zap.String("material", name))
			continue
		}
		if err != nil {
			return err
		}
		log.Info("merged material nodes", zap.String("material", name), zap.Int("node", node))
	}
	if len(names) > 0 {
		a.Scene.MarkAsChanged(0)
		a.Scene.RecalculateGlobalTransforms()
		if err := formats.RecalculateBoundingBoxes(a.Meshes); err != nil {
			return errors.Wrap(err, "bounding boxes")
		}
	}
	return nil
}

// ConvertOptions controls Convert.
type ConvertOptions struct {
	Source string
	Files  Files

	// TextureCacheDir, when set, receives a WebP copy of every texture and
	// the texture list is rewritten to names inside it.
	TextureCacheDir string
	TextureMaxSize  int
	TextureWorkers  int

	GenerateLODs   bool
	MergeMaterials []string

	// Force ignores valid cache files.
	Force bool
	Log   *zap.Logger
}

// Convert returns the cached asset for opts.Source, importing and saving
// it first unless every cache file is already valid. The second result
// reports a cache hit.
func Convert(ctx context.Context, opts ConvertOptions) (*Asset, bool, error) {
	log := logger.OrNop(opts.Log)

	if !opts.Force && opts.Files.Valid() {
		a, err := LoadAsset(opts.Files)
		if err == nil {
			log.Info("cache hit", zap.String("mesh", opts.Files.Mesh))
			return a, true, nil
		}
		log.Warn("cache unreadable, converting", zap.Error(err))
	} else {
		log.Info("cache miss", zap.String("source", opts.Source))
	}

	raw, err := ReadGLTF(opts.Source)
	if err != nil {
		return nil, false, err
	}
	md, s, err := Build(raw, BuildOptions{GenerateLODs: opts.GenerateLODs, Log: log})
	if err != nil {
		return nil, false, err
	}
	a := &Asset{Meshes: md, Scene: s}

	if opts.TextureCacheDir != "" && len(md.TextureFiles) > 0 {
		conv := texture.Converter{
			CacheDir: opts.TextureCacheDir,
			MaxSize:  opts.TextureMaxSize,
			Workers:  opts.TextureWorkers,
			Log:      log,
		}
		names, err := conv.ConvertAll(ctx, "", md.TextureFiles)
		if err != nil {
			return nil, false, errors.Wrap(err, "textures")
		}
		md.TextureFiles = names
	}

	if err := a.MergeMaterials(opts.MergeMaterials, log); err != nil {
		return nil, false, err
	}
	if err := a.Save(opts.Files); err != nil {
		return nil, false, err
	}
	return a, false, nil
}

// MergeAssets combines assets into one. Materials and textures are merged
// first, then mesh data, then the scenes under a new root whose children
// get rootTransforms premultiplied when given.
func MergeAssets(assets []*Asset, rootTransforms []math.Mat4) (*Asset, error) {
	if len(assets) == 0 {
		return nil, merge.ErrNoInput
	}

	materials := make([][]formats.Material, len(assets))
	textures := make([][]string, len(assets))
	containers := make([]*formats.MeshData, len(assets))
	scenes := make([]*scene.Scene, len(assets))
	meshCounts := make([]uint32, len(assets))
	materialCounts := make([]uint32, len(assets))
	for i, a := range assets {
		materials[i] = a.Meshes.Materials
		textures[i] = a.Meshes.TextureFiles
		containers[i] = a.Meshes
		scenes[i] = a.Scene
		meshCounts[i] = uint32(len(a.Meshes.Meshes))
		materialCounts[i] = uint32(len(a.Meshes.Materials))
	}

	md, _, err := merge.MeshData(containers)
	if err != nil {
		return nil, errors.Wrap(err, "mesh data")
	}
	md.Materials, md.TextureFiles = merge.MaterialLists(materials, textures)

	s, err := merge.Scenes(scenes, merge.SceneOptions{
		RootTransforms: rootTransforms,
		MeshCounts:     meshCounts,
		MaterialCounts: materialCounts,
	})
	if err != nil {
		return nil, errors.Wrap(err, "scenes")
	}
	s.MarkAsChanged(0)
	s.RecalculateGlobalTransforms()
	return &Asset{Meshes: md, Scene: s}, nil
}
