// Package testscene builds small in-memory scenes for tests of the GPU
// facing packages.
package testscene

import (
	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/math"
	"github.com/Faultbox/scenery/pkg/scene"
)

// Texture file names used by the materials of Cubes.
const (
	BaseTexture   = "base.png"
	NormalTexture = "normal.png"
)

var cubeCorners = []math.Vec3{
	{X: -0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: 0.5, Z: -0.5}, {X: -0.5, Y: 0.5, Z: -0.5},
	{X: -0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: 0.5}, {X: -0.5, Y: 0.5, Z: 0.5},
}

var cubeIndices = []uint32{
	0, 2, 1, 0, 3, 2, // back
	4, 5, 6, 4, 6, 7, // front
	0, 1, 5, 0, 5, 4, // bottom
	3, 7, 6, 3, 6, 2, // top
	0, 4, 7, 0, 7, 3, // left
	1, 2, 6, 1, 6, 5, // right
}

// Cubes returns two unit cube meshes and a scene with one root and one
// child node per position. Even children use mesh 0 (two LODs, textured
// material 0), odd children mesh 1 (one LOD, untextured material 1).
func Cubes(positions []math.Vec3) (*formats.MeshData, *scene.Scene) {
	md := &formats.MeshData{Layout: formats.StandardLayout()}
	stride := int(md.Layout.Stride())
	md.VertexData = make([]byte, 2*len(cubeCorners)*stride)
	view, err := md.View()
	if err != nil {
		panic(err)
	}
	for copyIdx := 0; copyIdx < 2; copyIdx++ {
		for i, p := range cubeCorners {
			v := copyIdx*len(cubeCorners) + i
			mustSet(view.SetFloats(v, formats.LocationPosition, p.X, p.Y, p.Z))
			mustSet(view.SetFloats(v, formats.LocationNormal, 0, 1, 0))
		}
	}

	md.IndexData = append(md.IndexData, cubeIndices...)
	md.IndexData = append(md.IndexData, cubeIndices[:6]...)
	md.IndexData = append(md.IndexData, cubeIndices...)
	md.Meshes = []formats.Mesh{
		{
			LODCount: 2, IndexOffset: 0, VertexOffset: 0, VertexCount: 8,
			LODOffset: [formats.MaxLODs + 1]uint32{0, 36, 42},
		},
		{
			LODCount: 1, IndexOffset: 42, VertexOffset: 8, VertexCount: 8,
			LODOffset: [formats.MaxLODs + 1]uint32{0, 36}, MaterialID: 1,
		},
	}
	md.Boxes = make([]math.BoundingBox, len(md.Meshes))
	if err := formats.RecalculateBoundingBoxes(md); err != nil {
		panic(err)
	}

	textured := formats.NewMaterial()
	textured.BaseColorTexture = 0
	textured.NormalTexture = 1
	plain := formats.NewMaterial()
	plain.BaseColorFactor = [4]float32{1, 0, 0, 1}
	md.Materials = []formats.Material{textured, plain}
	md.TextureFiles = []string{BaseTexture, NormalTexture}

	s := scene.New()
	root := s.AddNode(-1, 0)
	s.SetNodeName(root, "root")
	for i, p := range positions {
		node := s.AddNode(root, 1)
		mesh := uint32(i % 2)
		s.MeshForNode[uint32(node)] = mesh
		s.MaterialForNode[uint32(node)] = mesh
		s.SetLocalTransform(node, math.Translate(p))
	}
	s.MaterialNames = []string{"textured", "plain"}
	s.MarkAsChanged(root)
	s.RecalculateGlobalTransforms()
	return md, s
}

func mustSet(err error) {
	if err != nil {
		panic(err)
	}
}
