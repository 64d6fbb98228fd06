// Package importer turns source models into the binary mesh container and
// scene graph.
//
// Import happens in two steps. An adapter (ReadGLTF) flattens the source
// format into a RawScene of plain arrays; Build then packs the RawScene
// into formats.MeshData and a scene.Scene, optionally generating LODs.
// Nothing past the adapter depends on the source format.
package importer

import "github.com/Faultbox/scenery/pkg/math"

// RawMesh is one triangle list. Normals and UVs are optional and, when
// present, have one entry per position.
type RawMesh struct {
	Name      string
	Positions []math.Vec3
	Normals   []math.Vec3
	UVs       [][2]float32
	Indices   []uint32
	// Material indexes RawScene.Materials; -1 means none.
	Material int
}

// RawMaterial holds material factors and texture file paths. Empty paths
// mean no texture.
type RawMaterial struct {
	Name             string
	BaseColor        [4]float32
	Emissive         [3]float32
	Metallic         float32
	Roughness        float32
	AlphaCutoff      float32
	Transparent      bool
	BaseColorTexture string
	EmissiveTexture  string
	NormalTexture    string
	OpacityTexture   string
}

// RawNode is one node of the source hierarchy. Nodes are listed parents
// first.
type RawNode struct {
	Name      string
	Parent    int
	Transform math.Mat4
	Meshes    []int
}

// RawScene is the format-independent import result.
type RawScene struct {
	Meshes    []RawMesh
	Materials []RawMaterial
	Nodes     []RawNode
}
