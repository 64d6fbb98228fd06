package importer

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/scenery/internal/logger"
	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/lod"
	"github.com/Faultbox/scenery/pkg/math"
	"github.com/Faultbox/scenery/pkg/merge"
	"github.com/Faultbox/scenery/pkg/scene"
)

// ErrNoMeshes is returned when the source has nothing to draw.
var ErrNoMeshes = errors.New("source scene has no meshes")

// DefaultMaterialName names the material given to meshes without one.
const DefaultMaterialName = "default"

// RootNodeName names the node added above a source with several roots.
const RootNodeName = "Root"

// BuildOptions controls Build.
type BuildOptions struct {
	GenerateLODs bool
	// MaxLODs bounds the LOD chain, including LOD 0.
	MaxLODs int
	Log     *zap.Logger
}

// Build packs raw into a mesh container and a scene graph. Each mesh gets
// vertices in the standard layout and indices relative to its own
// vertexOffset. A node with several meshes gets one child per mesh, named
// "<node>_Mesh_<i>".
func Build(raw *RawScene, opts BuildOptions) (*formats.MeshData, *scene.Scene, error) {
	log := logger.OrNop(opts.Log)
	if len(raw.Meshes) == 0 {
		return nil, nil, ErrNoMeshes
	}
	if opts.MaxLODs < 1 || opts.MaxLODs > formats.MaxLODs {
		opts.MaxLODs = formats.MaxLODs
	}

	md := &formats.MeshData{Layout: formats.StandardLayout()}
	for i := range raw.Materials {
		md.Materials = append(md.Materials, convertRawMaterial(&raw.Materials[i], &md.TextureFiles))
	}
	defaultMaterial := -1
	materialFor := func(m int) uint32 {
		if m >= 0 && m < len(raw.Materials) {
			return uint32(m)
		}
		if defaultMaterial < 0 {
			defaultMaterial = len(md.Materials)
			md.Materials = append(md.Materials, formats.NewMaterial())
		}
		return uint32(defaultMaterial)
	}

	stride := int(md.Layout.Stride())
	lods := 0
	for i := range raw.Meshes {
		rm := &raw.Meshes[i]
		if err := packMesh(md, rm, materialFor(rm.Material), stride, opts); err != nil {
			return nil, nil, errors.Wrapf(err, "mesh %d (%s)", i, rm.Name)
		}
		lods += int(md.Meshes[i].LODCount)
	}
	md.Boxes = make([]math.BoundingBox, len(md.Meshes))
	if err := formats.RecalculateBoundingBoxes(md); err != nil {
		return nil, nil, errors.Wrap(err, "bounding boxes")
	}

	s, err := buildScene(raw, md)
	if err != nil {
		return nil, nil, err
	}
	s.MaterialNames = make([]string, len(md.Materials))
	for i := range raw.Materials {
		s.MaterialNames[i] = raw.Materials[i].Name
	}
	if defaultMaterial >= 0 {
		s.MaterialNames[defaultMaterial] = DefaultMaterialName
	}

	log.Info("scene imported",
		zap.Int("meshes", len(md.Meshes)),
		zap.Int("lods", lods),
		zap.Int("nodes", s.NumNodes()),
		zap.Int("materials", len(md.Materials)),
		zap.Int("textures", len(md.TextureFiles)))
	return md, s, nil
}

func packMesh(md *formats.MeshData, rm *RawMesh, material uint32, stride int, opts BuildOptions) error {
	vertexOffset := md.VertexCount()
	vertexStart := len(md.VertexData)
	md.VertexData = append(md.VertexData, make([]byte, len(rm.Positions)*stride)...)
	view, err := formats.NewVertexView(md.VertexData[vertexStart:], md.Layout)
	if err != nil {
		return err
	}
	for v, p := range rm.Positions {
		if err := view.SetFloats(v, formats.LocationPosition, p.X, p.Y, p.Z); err != nil {
			return err
		}
		if rm.UVs != nil {
			if err := view.SetFloats(v, formats.LocationTexCoord, rm.UVs[v][0], rm.UVs[v][1]); err != nil {
				return err
			}
		}
		n := math.Vec3{Y: 1}
		if rm.Normals != nil {
			n = rm.Normals[v]
		}
		if err := view.SetFloats(v, formats.LocationNormal, n.X, n.Y, n.Z); err != nil {
			return err
		}
	}

	levels := [][]uint32{rm.Indices}
	if opts.GenerateLODs {
		levels = lod.Build(rm.Indices, rm.Positions, opts.MaxLODs)
	}
	indices, offsets := lod.Flatten(levels)

	mesh := formats.Mesh{
		LODCount:     uint32(len(levels)),
		IndexOffset:  uint32(len(md.IndexData)),
		VertexOffset: uint32(vertexOffset),
		VertexCount:  uint32(len(rm.Positions)),
		MaterialID:   material,
	}
	if len(offsets) > len(mesh.LODOffset) {
		return fmt.Errorf("%d LODs exceed the limit of %d", len(levels), formats.MaxLODs)
	}
	copy(mesh.LODOffset[:], offsets)
	md.IndexData = append(md.IndexData, indices...)
	md.Meshes = append(md.Meshes, mesh)
	return nil
}

func convertRawMaterial(rm *RawMaterial, textures *[]string) formats.Material {
	m := formats.NewMaterial()
	m.BaseColorFactor = rm.BaseColor
	m.EmissiveFactor = [4]float32{rm.Emissive[0], rm.Emissive[1], rm.Emissive[2], 1}
	m.MetallicFactor = rm.Metallic
	m.Roughness = rm.Roughness
	m.AlphaTest = rm.AlphaCutoff
	m.TransparencyFactor = rm.BaseColor[3]
	if rm.Transparent {
		m.Flags |= formats.MaterialTransparent
	}

	slots := m.Textures()
	for i, path := range [4]string{rm.BaseColorTexture, rm.EmissiveTexture, rm.NormalTexture, rm.OpacityTexture} {
		if path != "" {
			*slots[i] = int32(merge.AddUnique(textures, path))
		}
	}
	return m
}

func buildScene(raw *RawScene, md *formats.MeshData) (*scene.Scene, error) {
	nodes := raw.Nodes
	if len(nodes) == 0 {
		// A node-less source still draws every mesh once.
		for i := range raw.Meshes {
			nodes = append(nodes, RawNode{Name: raw.Meshes[i].Name, Parent: -1, Transform: math.Identity(), Meshes: []int{i}})
		}
	}

	s := scene.New()
	rootParent, rootLevel := -1, 0
	roots := 0
	for _, rn := range nodes {
		if rn.Parent < 0 {
			roots++
		}
	}
	if roots > 1 {
		// Merging and dirty propagation start at node 0, so several source
		// roots hang under one.
		rootParent = s.AddNode(-1, 0)
		s.SetNodeName(rootParent, RootNodeName)
		rootLevel = 1
	}

	newIndex := make([]int, len(nodes))
	for i, rn := range nodes {
		parent, level := rootParent, rootLevel
		if rn.Parent >= 0 {
			if rn.Parent >= i {
				return nil, errors.Errorf("node %d listed before its parent %d", i, rn.Parent)
			}
			parent = newIndex[rn.Parent]
			level = s.NodeLevel(parent) + 1
		}
		node := s.AddNode(parent, level)
		newIndex[i] = node
		if rn.Name != "" {
			s.SetNodeName(node, rn.Name)
		}
		s.LocalTransform[node] = rn.Transform

		attach := func(target, mesh int) error {
			if mesh < 0 || mesh >= len(md.Meshes) {
				return errors.Errorf("node %d references mesh %d of %d", i, mesh, len(md.Meshes))
			}
			s.MeshForNode[uint32(target)] = uint32(mesh)
			s.MaterialForNode[uint32(target)] = md.Meshes[mesh].MaterialID
			return nil
		}

		switch len(rn.Meshes) {
		case 0:
		case 1:
			if err := attach(node, rn.Meshes[0]); err != nil {
				return nil, err
			}
		default:
			for j, mesh := range rn.Meshes {
				sub := s.AddNode(node, level+1)
				s.SetNodeName(sub, fmt.Sprintf("%s_Mesh_%d", s.NodeName(node), j))
				if err := attach(sub, mesh); err != nil {
					return nil, err
				}
			}
		}
	}

	s.MarkAsChanged(0)
	s.RecalculateGlobalTransforms()
	return s, nil
}
