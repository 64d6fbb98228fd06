package importer

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/scenery/pkg/math"
)

// ReadGLTF reads a .gltf or .glb file. Texture paths are resolved to
// absolute paths relative to the file's directory.
func ReadGLTF(path string) (*RawScene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	raw, err := FromDocument(doc, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "import %s", path)
	}
	return raw, nil
}

// FromDocument converts a decoded glTF document. Every triangle primitive
// becomes a RawMesh; other primitive modes are skipped.
func FromDocument(doc *gltf.Document, baseDir string) (*RawScene, error) {
	raw := &RawScene{}

	for i, m := range doc.Materials {
		raw.Materials = append(raw.Materials, convertMaterial(doc, m, i, baseDir))
	}

	meshPrims := make([][]int, len(doc.Meshes))
	for mi, mesh := range doc.Meshes {
		for pi, prim := range mesh.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			rm, err := readPrimitive(doc, prim)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %d primitive %d", mi, pi)
			}
			rm.Name = mesh.Name
			meshPrims[mi] = append(meshPrims[mi], len(raw.Meshes))
			raw.Meshes = append(raw.Meshes, rm)
		}
	}

	var visit func(idx uint32, parent int) error
	visiting := make([]bool, len(doc.Nodes))
	visit = func(idx uint32, parent int) error {
		if int(idx) >= len(doc.Nodes) {
			return errors.Errorf("node index %d out of range", idx)
		}
		if visiting[idx] {
			return errors.Errorf("node %d is reachable twice", idx)
		}
		visiting[idx] = true

		n := doc.Nodes[idx]
		rn := RawNode{Name: n.Name, Parent: parent, Transform: nodeTransform(n)}
		if rn.Name == "" {
			rn.Name = "node" + strconv.Itoa(int(idx))
		}
		if n.Mesh != nil && int(*n.Mesh) < len(meshPrims) {
			rn.Meshes = meshPrims[*n.Mesh]
		}
		self := len(raw.Nodes)
		raw.Nodes = append(raw.Nodes, rn)
		for _, child := range n.Children {
			if err := visit(child, self); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range rootNodes(doc) {
		if err := visit(root, -1); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// rootNodes returns the nodes of the default scene, or every node that is
// nobody's child when the document has no scenes.
func rootNodes(doc *gltf.Document) []uint32 {
	if len(doc.Scenes) > 0 {
		sc := 0
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			sc = int(*doc.Scene)
		}
		if len(doc.Scenes[sc].Nodes) > 0 {
			return doc.Scenes[sc].Nodes
		}
	}
	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if int(c) < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []uint32
	for i, child := range isChild {
		if !child {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

func nodeTransform(n *gltf.Node) math.Mat4 {
	if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
		return math.Mat4(m)
	}
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	return math.TRS(
		math.Vec3{X: n.Translation[0], Y: n.Translation[1], Z: n.Translation[2]},
		math.Quat{X: r[0], Y: r[1], Z: r[2], W: r[3]},
		math.Vec3{X: s[0], Y: s[1], Z: s[2]},
	)
}

func readPrimitive(doc *gltf.Document, prim *gltf.Primitive) (RawMesh, error) {
	rm := RawMesh{Material: -1}
	if prim.Material != nil {
		rm.Material = int(*prim.Material)
	}

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return rm, errors.New("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return rm, errors.Wrap(err, "read positions")
	}
	rm.Positions = make([]math.Vec3, len(positions))
	for i, p := range positions {
		rm.Positions[i] = math.Vec3{X: p[0], Y: p[1], Z: p[2]}
	}

	if idx, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[idx], nil)
		if err != nil {
			return rm, errors.Wrap(err, "read normals")
		}
		if len(normals) == len(positions) {
			rm.Normals = make([]math.Vec3, len(normals))
			for i, n := range normals {
				rm.Normals[i] = math.Vec3{X: n[0], Y: n[1], Z: n[2]}
			}
		}
	}

	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
		if err != nil {
			return rm, errors.Wrap(err, "read texture coordinates")
		}
		if len(uvs) == len(positions) {
			rm.UVs = uvs
		}
	}

	if prim.Indices != nil {
		rm.Indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return rm, errors.Wrap(err, "read indices")
		}
	} else {
		rm.Indices = make([]uint32, len(positions))
		for i := range rm.Indices {
			rm.Indices[i] = uint32(i)
		}
	}
	for _, idx := range rm.Indices {
		if int(idx) >= len(positions) {
			return rm, errors.Errorf("index %d outside %d vertices", idx, len(positions))
		}
	}
	rm.Indices = rm.Indices[:len(rm.Indices)/3*3]
	return rm, nil
}

func convertMaterial(doc *gltf.Document, m *gltf.Material, idx int, baseDir string) RawMaterial {
	rm := RawMaterial{
		Name:      m.Name,
		BaseColor: [4]float32{1, 1, 1, 1},
		Emissive:  m.EmissiveFactor,
		Metallic:  1,
		Roughness: 1,
	}
	if rm.Name == "" {
		rm.Name = "material" + strconv.Itoa(idx)
	}
	if pbr := m.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			rm.BaseColor = *pbr.BaseColorFactor
		}
		if pbr.MetallicFactor != nil {
			rm.Metallic = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			rm.Roughness = *pbr.RoughnessFactor
		}
		if pbr.BaseColorTexture != nil {
			rm.BaseColorTexture = texturePath(doc, pbr.BaseColorTexture.Index, baseDir)
		}
	}
	if m.EmissiveTexture != nil {
		rm.EmissiveTexture = texturePath(doc, m.EmissiveTexture.Index, baseDir)
	}
	if m.NormalTexture != nil && m.NormalTexture.Index != nil {
		rm.NormalTexture = texturePath(doc, *m.NormalTexture.Index, baseDir)
	}

	switch m.AlphaMode {
	case gltf.AlphaBlend:
		rm.Transparent = true
		// Blended materials take opacity from the base colour alpha.
		rm.OpacityTexture = rm.BaseColorTexture
	case gltf.AlphaMask:
		rm.AlphaCutoff = 0.5
		if m.AlphaCutoff != nil {
			rm.AlphaCutoff = *m.AlphaCutoff
		}
	}
	return rm
}

// texturePath resolves a texture index to an image file path. Embedded
// images have no path and are treated as missing.
func texturePath(doc *gltf.Document, tex uint32, baseDir string) string {
	if int(tex) >= len(doc.Textures) || doc.Textures[tex].Source == nil {
		return ""
	}
	src := *doc.Textures[tex].Source
	if int(src) >= len(doc.Images) {
		return ""
	}
	uri := doc.Images[src].URI
	if uri == "" || strings.HasPrefix(uri, "data:") {
		return ""
	}
	if filepath.IsAbs(uri) || baseDir == "" {
		return filepath.Clean(uri)
	}
	return filepath.Join(baseDir, filepath.FromSlash(uri))
}
