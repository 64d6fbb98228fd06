package importer

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenery/internal/texture"
	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/math"
	"github.com/Faultbox/scenery/pkg/merge"
)

// testDocument builds a document with a textured quad under a root node and
// a second node whose mesh has two untextured triangle primitives.
func testDocument() *gltf.Document {
	doc := gltf.NewDocument()

	quadPos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}})
	quadNrm := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	quadUV := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
	quadIdx := modeler.WriteIndices(doc, []uint16{0, 1, 2, 0, 2, 3})

	triPos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {2, 0, 0}, {0, 2, 0}})
	triIdx := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	farPos := modeler.WritePosition(doc, [][3]float32{{0, 0, -5}, {1, 0, -5}, {0, 1, -5}})

	doc.Images = append(doc.Images,
		&gltf.Image{URI: "tex/base.png"},
		&gltf.Image{URI: "tex/normal.png"},
	)
	doc.Textures = append(doc.Textures,
		&gltf.Texture{Source: gltf.Index(0)},
		&gltf.Texture{Source: gltf.Index(1)},
	)
	doc.Materials = append(doc.Materials, &gltf.Material{
		Name:      "brick",
		AlphaMode: gltf.AlphaBlend,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor:  &[4]float32{0.5, 0.5, 0.5, 0.75},
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		},
		NormalTexture: &gltf.NormalTexture{Index: gltf.Index(1)},
	})

	doc.Meshes = append(doc.Meshes,
		&gltf.Mesh{Name: "quad", Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(quadIdx),
			Material:   gltf.Index(0),
			Attributes: map[string]uint32{"POSITION": quadPos, "NORMAL": quadNrm, "TEXCOORD_0": quadUV},
		}}},
		&gltf.Mesh{Name: "pair", Primitives: []*gltf.Primitive{
			{Indices: gltf.Index(triIdx), Attributes: map[string]uint32{"POSITION": triPos}},
			{Attributes: map[string]uint32{"POSITION": farPos}},
		}},
	)

	doc.Nodes = append(doc.Nodes,
		&gltf.Node{Name: "root", Children: []uint32{1, 2}},
		&gltf.Node{Name: "quad", Mesh: gltf.Index(0), Translation: [3]float32{1, 0, 0}},
		&gltf.Node{Name: "pair", Mesh: gltf.Index(1)},
	)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc
}

func writeGLB(t *testing.T, dir string, doc *gltf.Document) string {
	t.Helper()
	path := filepath.Join(dir, "scene.glb")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := gltf.NewEncoder(f)
	enc.AsBinary = true
	require.NoError(t, enc.Encode(doc))
	return path
}

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestFromDocument(t *testing.T) {
	raw, err := FromDocument(testDocument(), "assets")
	require.NoError(t, err)

	require.Len(t, raw.Meshes, 3)
	assert.Len(t, raw.Meshes[0].Positions, 4)
	assert.Len(t, raw.Meshes[0].Normals, 4)
	assert.Len(t, raw.Meshes[0].UVs, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, raw.Meshes[0].Indices)
	assert.Equal(t, 0, raw.Meshes[0].Material)

	assert.Nil(t, raw.Meshes[1].Normals)
	assert.Equal(t, -1, raw.Meshes[1].Material)
	assert.Equal(t, []uint32{0, 1, 2}, raw.Meshes[2].Indices, "non-indexed primitive gets a sequential list")

	require.Len(t, raw.Nodes, 3)
	assert.Equal(t, -1, raw.Nodes[0].Parent)
	assert.Equal(t, 0, raw.Nodes[1].Parent)
	assert.Equal(t, 0, raw.Nodes[2].Parent)
	assert.Equal(t, []int{0}, raw.Nodes[1].Meshes)
	assert.Equal(t, []int{1, 2}, raw.Nodes[2].Meshes)
	assert.Equal(t, math.Vec3{X: 1}, raw.Nodes[1].Transform.Translation())

	require.Len(t, raw.Materials, 1)
	mat := raw.Materials[0]
	assert.Equal(t, "brick", mat.Name)
	assert.True(t, mat.Transparent)
	assert.Equal(t, [4]float32{0.5, 0.5, 0.5, 0.75}, mat.BaseColor)
	assert.Equal(t, filepath.Join("assets", "tex", "base.png"), mat.BaseColorTexture)
	assert.Equal(t, mat.BaseColorTexture, mat.OpacityTexture)
	assert.Equal(t, filepath.Join("assets", "tex", "normal.png"), mat.NormalTexture)
}

func TestFromDocumentRejectsBadIndices(t *testing.T) {
	doc := testDocument()
	bad := modeler.WriteIndices(doc, []uint16{0, 1, 9})
	doc.Meshes[1].Primitives[0].Indices = gltf.Index(bad)

	_, err := FromDocument(doc, "")
	assert.Error(t, err)
}

func TestFromDocumentRejectsCycles(t *testing.T) {
	doc := testDocument()
	doc.Nodes[2].Children = []uint32{0}

	_, err := FromDocument(doc, "")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	raw, err := FromDocument(testDocument(), "assets")
	require.NoError(t, err)

	md, s, err := Build(raw, BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, uint32(32), md.Layout.Stride())
	require.Len(t, md.Meshes, 3)
	assert.Equal(t, []uint32{0, 4, 7}, []uint32{md.Meshes[0].VertexOffset, md.Meshes[1].VertexOffset, md.Meshes[2].VertexOffset})
	assert.Equal(t, []uint32{0, 6, 9}, []uint32{md.Meshes[0].IndexOffset, md.Meshes[1].IndexOffset, md.Meshes[2].IndexOffset})
	assert.Equal(t, 10, md.VertexCount())
	for i := range md.Meshes {
		assert.Equal(t, uint32(1), md.Meshes[i].LODCount)
	}

	// Indices stay relative to each mesh's vertex offset.
	idx, err := md.IndicesForLOD(1, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, idx)

	assert.Equal(t, math.Vec3{X: 2, Y: 2}, md.Boxes[1].Max)
	assert.Equal(t, float32(-5), md.Boxes[2].Min.Z)

	require.Len(t, md.Materials, 2)
	assert.Equal(t, []string{"brick", DefaultMaterialName}, s.MaterialNames)
	assert.True(t, md.Materials[0].IsTransparent())
	assert.Equal(t, int32(0), md.Materials[0].BaseColorTexture)
	assert.Equal(t, int32(0), md.Materials[0].OpacityTexture)
	assert.Equal(t, int32(1), md.Materials[0].NormalTexture)
	assert.Equal(t, formats.NoTexture, md.Materials[1].BaseColorTexture)
	assert.Len(t, md.TextureFiles, 2)
	assert.Equal(t, uint32(1), md.Meshes[1].MaterialID)

	assert.Equal(t, 5, s.NumNodes())
	quad := s.FindNodeByName("quad")
	require.GreaterOrEqual(t, quad, 0)
	assert.Equal(t, math.Vec3{X: 1}, s.GlobalTransform[quad].Translation())
	assert.Equal(t, uint32(0), s.MeshForNode[uint32(quad)])

	pair := s.FindNodeByName("pair")
	require.GreaterOrEqual(t, pair, 0)
	_, hasMesh := s.MeshForNode[uint32(pair)]
	assert.False(t, hasMesh, "a node with several meshes owns none itself")
	for j, mesh := range []uint32{1, 2} {
		sub := s.FindNodeByName("pair_Mesh_" + string(rune('0'+j)))
		require.GreaterOrEqual(t, sub, 0)
		assert.Equal(t, int32(pair), s.Hierarchy[sub].Parent)
		assert.Equal(t, mesh, s.MeshForNode[uint32(sub)])
		assert.Equal(t, DefaultMaterialName, s.MaterialName(sub))
	}
}

func TestBuildNoMeshes(t *testing.T) {
	_, _, err := Build(&RawScene{}, BuildOptions{})
	assert.ErrorIs(t, err, ErrNoMeshes)
}

func TestBuildWithoutNodes(t *testing.T) {
	tri := RawMesh{
		Positions: []math.Vec3{{}, {X: 1}, {Y: 1}},
		Indices:   []uint32{0, 1, 2},
		Material:  -1,
	}
	a, b := tri, tri
	a.Name, b.Name = "a", "b"

	_, s, err := Build(&RawScene{Meshes: []RawMesh{a, b}}, BuildOptions{})
	require.NoError(t, err)

	require.Equal(t, 3, s.NumNodes())
	assert.Equal(t, RootNodeName, s.NodeName(0))
	assert.Equal(t, []int{1, 2}, s.Children(0))
	assert.Equal(t, uint32(0), s.MeshForNode[1])
	assert.Equal(t, uint32(1), s.MeshForNode[2])
}

func TestBuildGeneratesLODs(t *testing.T) {
	const n = 64
	rm := RawMesh{Name: "grid", Material: -1}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			rm.Positions = append(rm.Positions, math.Vec3{X: float32(x), Z: float32(y)})
		}
	}
	for y := 0; y+1 < n; y++ {
		for x := 0; x+1 < n; x++ {
			i := uint32(y*n + x)
			rm.Indices = append(rm.Indices, i, i+1, i+n, i+1, i+n+1, i+n)
		}
	}

	md, _, err := Build(&RawScene{Meshes: []RawMesh{rm}}, BuildOptions{GenerateLODs: true, MaxLODs: 4})
	require.NoError(t, err)

	mesh := md.Meshes[0]
	require.Greater(t, mesh.LODCount, uint32(1))
	assert.LessOrEqual(t, mesh.LODCount, uint32(4))
	assert.Equal(t, uint32(len(rm.Indices)), mesh.LODIndicesCount(0))
	assert.Equal(t, uint32(len(md.IndexData)), mesh.TotalIndices())
	for l := uint32(1); l < mesh.LODCount; l++ {
		assert.Less(t, mesh.LODIndicesCount(l), mesh.LODIndicesCount(l-1))
	}
}

func TestReadGLTFBinary(t *testing.T) {
	dir := t.TempDir()
	path := writeGLB(t, dir, testDocument())

	raw, err := ReadGLTF(path)
	require.NoError(t, err)
	assert.Len(t, raw.Meshes, 3)
	assert.Equal(t, filepath.Join(dir, "tex", "base.png"), raw.Materials[0].BaseColorTexture)

	_, err = ReadGLTF(filepath.Join(dir, "missing.glb"))
	assert.Error(t, err)
}

func testFiles(dir string) Files {
	return Files{
		Mesh:     filepath.Join(dir, "scene.meshes"),
		Scene:    filepath.Join(dir, "scene.scene"),
		Material: filepath.Join(dir, "scene.materials"),
	}
}

func TestConvertCachesFiles(t *testing.T) {
	dir := t.TempDir()
	src := writeGLB(t, dir, testDocument())
	writePNG(t, filepath.Join(dir, "tex", "base.png"), color.RGBA{R: 200, A: 255})
	writePNG(t, filepath.Join(dir, "tex", "normal.png"), color.RGBA{B: 255, A: 255})

	opts := ConvertOptions{
		Source:          src,
		Files:           testFiles(dir),
		TextureCacheDir: filepath.Join(dir, "cache"),
		TextureMaxSize:  4,
	}
	assert.False(t, opts.Files.Valid())

	a, cached, err := Convert(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.True(t, opts.Files.Valid())
	require.Len(t, a.Meshes.TextureFiles, 2)
	assert.Equal(t, texture.CachedName(filepath.Join(dir, "tex", "base.png")), a.Meshes.TextureFiles[0])
	assert.FileExists(t, filepath.Join(opts.TextureCacheDir, a.Meshes.TextureFiles[0]))

	b, cached, err := Convert(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, a.Meshes.Meshes, b.Meshes.Meshes)
	assert.Equal(t, a.Meshes.TextureFiles, b.Meshes.TextureFiles)
	assert.Equal(t, a.Scene.NodeNames, b.Scene.NodeNames)

	opts.Force = true
	_, cached, err = Convert(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestConvertMissingTextureFails(t *testing.T) {
	dir := t.TempDir()
	src := writeGLB(t, dir, testDocument())

	_, _, err := Convert(context.Background(), ConvertOptions{
		Source:          src,
		Files:           testFiles(dir),
		TextureCacheDir: filepath.Join(dir, "cache"),
	})
	assert.Error(t, err)
	assert.False(t, testFiles(dir).Valid())
}

func buildAsset(t *testing.T) *Asset {
	t.Helper()
	raw, err := FromDocument(testDocument(), "assets")
	require.NoError(t, err)
	md, s, err := Build(raw, BuildOptions{})
	require.NoError(t, err)
	return &Asset{Meshes: md, Scene: s}
}

func TestMergeMaterials(t *testing.T) {
	a := buildAsset(t)
	require.NoError(t, a.MergeMaterials([]string{DefaultMaterialName}, nil))

	assert.Equal(t, 4, a.Scene.NumNodes())
	node := a.Scene.FindNodeByName(DefaultMaterialName)
	require.GreaterOrEqual(t, node, 0)
	mesh := a.Scene.MeshForNode[uint32(node)]
	assert.Equal(t, uint32(6), a.Meshes.Meshes[mesh].LODIndicesCount(0))
	assert.Len(t, a.Meshes.Boxes, len(a.Meshes.Meshes))

	err := a.MergeMaterials([]string{"marble"}, nil)
	assert.ErrorIs(t, err, merge.ErrMaterialNotFound)
}

func TestMergeAssets(t *testing.T) {
	first, second := buildAsset(t), buildAsset(t)
	shift := math.Translate(math.Vec3{Z: 10})

	out, err := MergeAssets([]*Asset{first, second}, []math.Mat4{math.Identity(), shift})
	require.NoError(t, err)

	assert.Len(t, out.Meshes.Meshes, 6)
	assert.Len(t, out.Meshes.Materials, 4)
	assert.Len(t, out.Meshes.TextureFiles, 2, "texture files are deduplicated")
	assert.Equal(t, uint32(3), out.Meshes.Meshes[4].MaterialID)
	assert.Equal(t, uint32(12), out.Meshes.Meshes[3].IndexOffset)
	assert.Equal(t, 11, out.Scene.NumNodes())
	assert.Equal(t, merge.RootName, out.Scene.NodeName(0))

	// The second quad sits at its own translation plus the root shift.
	secondQuad := 1 + first.Scene.NumNodes() + second.Scene.FindNodeByName("quad")
	assert.Equal(t, math.Vec3{X: 1, Z: 10}, out.Scene.GlobalTransform[secondQuad].Translation())
	assert.Equal(t, uint32(3), out.Scene.MeshForNode[uint32(secondQuad)])
	assert.Equal(t, out.Meshes.Meshes[3].MaterialID, out.Scene.MaterialForNode[uint32(secondQuad)])

	// A scene without names still shifts the materials of later scenes.
	unnamed := buildAsset(t)
	unnamed.Scene.MaterialNames = nil
	out, err = MergeAssets([]*Asset{unnamed, buildAsset(t)}, nil)
	require.NoError(t, err)
	mesh := out.Scene.MeshForNode[uint32(secondQuad)]
	assert.Equal(t, out.Meshes.Meshes[mesh].MaterialID, out.Scene.MaterialForNode[uint32(secondQuad)])
	assert.Len(t, out.Scene.MaterialNames, 4)

	_, err = MergeAssets(nil, nil)
	assert.ErrorIs(t, err, merge.ErrNoInput)
}

func TestAssetSaveLoad(t *testing.T) {
	dir := t.TempDir()
	a := buildAsset(t)
	files := testFiles(dir)
	require.NoError(t, a.Save(files))

	b, err := LoadAsset(files)
	require.NoError(t, err)
	assert.Equal(t, a.Meshes.Meshes, b.Meshes.Meshes)
	assert.Equal(t, a.Meshes.Materials, b.Meshes.Materials)
	assert.Equal(t, a.Meshes.IndexData, b.Meshes.IndexData)
	assert.Equal(t, a.Scene.Hierarchy, b.Scene.Hierarchy)
}
