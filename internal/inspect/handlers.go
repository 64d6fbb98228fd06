package inspect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Faultbox/scenery/internal/culling"
	"github.com/Faultbox/scenery/internal/engine/camera"
	"github.com/Faultbox/scenery/internal/engine/picking"
	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/math"
	"github.com/Faultbox/scenery/pkg/scene"
)

// Box is a JSON-safe bounding box. Empty boxes are never encoded because
// their infinite bounds have no JSON form.
type Box struct {
	Min math.Vec3 `json:"min"`
	Max math.Vec3 `json:"max"`
}

func boxOf(b math.BoundingBox) *Box {
	if b.IsEmpty() {
		return nil
	}
	return &Box{Min: b.Min, Max: b.Max}
}

// Summary describes the whole scene.
type Summary struct {
	Nodes       int    `json:"nodes"`
	Meshes      int    `json:"meshes"`
	Materials   int    `json:"materials"`
	Textures    int    `json:"textures"`
	Vertices    int    `json:"vertices"`
	Indices     int    `json:"indices"`
	LODs        int    `json:"lods"`
	Commands    int    `json:"commands"`
	VertexBytes uint32 `json:"vertexStride"`
	Bounds      *Box   `json:"bounds,omitempty"`
	Culling     string `json:"culling"`
}

// Node describes one scene node.
type Node struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Parent   int       `json:"parent"`
	Level    int       `json:"level"`
	Children []int     `json:"children"`
	Mesh     *uint32   `json:"mesh,omitempty"`
	Material string    `json:"material,omitempty"`
	Local    math.Mat4 `json:"local"`
	Global   math.Mat4 `json:"global"`
	WorldBox *Box      `json:"worldBox,omitempty"`
}

// Mesh describes one mesh of the container.
type Mesh struct {
	ID           int      `json:"id"`
	LODCount     uint32   `json:"lodCount"`
	LODIndices   []uint32 `json:"lodIndices"`
	IndexOffset  uint32   `json:"indexOffset"`
	VertexOffset uint32   `json:"vertexOffset"`
	VertexCount  uint32   `json:"vertexCount"`
	MaterialID   uint32   `json:"materialId"`
	Box          *Box     `json:"box,omitempty"`
}

// Material describes one material with its texture file names.
type Material struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	BaseColor   [4]float32        `json:"baseColor"`
	Emissive    [4]float32        `json:"emissive"`
	Roughness   float32           `json:"roughness"`
	Metallic    float32           `json:"metallic"`
	AlphaTest   float32           `json:"alphaTest"`
	Transparent bool              `json:"transparent"`
	Textures    map[string]string `json:"textures,omitempty"`
}

// CullResult is the answer to a culling request.
type CullResult struct {
	Mode         string    `json:"mode"`
	Eye          math.Vec3 `json:"eye"`
	Target       math.Vec3 `json:"target"`
	FovY         float32   `json:"fovY"`
	Candidates   int       `json:"candidates"`
	Visible      int       `json:"visible"`
	VisibleNodes []int     `json:"visibleNodes"`
}

var textureSlots = [4]string{"baseColor", "emissive", "normal", "opacity"}

func writeJSON(w http.ResponseWriter, log *zap.Logger, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, log, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		log.Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, status int, err error) {
	type jError struct {
		Error string `json:"error"`
	}
	log.Debug("request failed", zap.Int("status", status), zap.Error(err))
	data, _ := json.Marshal(jError{Error: err.Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (srv *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	lods := 0
	for _, m := range srv.md.Meshes {
		lods += int(m.LODCount)
	}
	writeJSON(w, srv.log, Summary{
		Nodes:       srv.scene.NumNodes(),
		Meshes:      len(srv.md.Meshes),
		Materials:   len(srv.md.Materials),
		Textures:    len(srv.md.TextureFiles),
		Vertices:    srv.md.VertexCount(),
		Indices:     len(srv.md.IndexData),
		LODs:        lods,
		Commands:    srv.draws.NumCommands(),
		VertexBytes: srv.md.Layout.Stride(),
		Bounds:      boxOf(srv.bounds),
		Culling:     srv.mode.String(),
	})
}

func pathID(r *http.Request, limit int) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return 0, err
	}
	if id < 0 || id >= limit {
		return 0, fmt.Errorf("id %d out of range [0, %d)", id, limit)
	}
	return id, nil
}

func (srv *Server) node(id int) Node {
	s := srv.scene
	n := Node{
		ID:       id,
		Name:     s.NodeName(id),
		Parent:   int(s.Hierarchy[id].Parent),
		Level:    int(s.Hierarchy[id].Level),
		Children: s.Children(id),
		Material: s.MaterialName(id),
		Local:    s.LocalTransform[id],
		Global:   s.GlobalTransform[id],
		WorldBox: boxOf(srv.boxes[id]),
	}
	if n.Children == nil {
		n.Children = []int{}
	}
	if mesh, ok := s.MeshForNode[uint32(id)]; ok {
		n.Mesh = &mesh
	}
	return n
}

func (srv *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	nodes := make([]Node, srv.scene.NumNodes())
	for i := range nodes {
		nodes[i] = srv.node(i)
	}
	writeJSON(w, srv.log, nodes)
}

func (srv *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, srv.scene.NumNodes())
	if err != nil {
		writeError(w, srv.log, http.StatusNotFound, err)
		return
	}
	writeJSON(w, srv.log, srv.node(id))
}

func (srv *Server) handleMesh(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, len(srv.md.Meshes))
	if err != nil {
		writeError(w, srv.log, http.StatusNotFound, err)
		return
	}
	m := srv.md.Meshes[id]
	out := Mesh{
		ID:           id,
		LODCount:     m.LODCount,
		IndexOffset:  m.IndexOffset,
		VertexOffset: m.VertexOffset,
		VertexCount:  m.VertexCount,
		MaterialID:   m.MaterialID,
	}
	for l := uint32(0); l < m.LODCount; l++ {
		out.LODIndices = append(out.LODIndices, m.LODIndicesCount(l))
	}
	if id < len(srv.md.Boxes) {
		out.Box = boxOf(srv.md.Boxes[id])
	}
	writeJSON(w, srv.log, out)
}

func (srv *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	out := make([]Material, len(srv.md.Materials))
	for i := range srv.md.Materials {
		m := srv.md.Materials[i]
		mat := Material{
			ID:          i,
			BaseColor:   m.BaseColorFactor,
			Emissive:    m.EmissiveFactor,
			Roughness:   m.Roughness,
			Metallic:    m.MetallicFactor,
			AlphaTest:   m.AlphaTest,
			Transparent: m.IsTransparent(),
		}
		if i < len(srv.scene.MaterialNames) {
			mat.Name = srv.scene.MaterialNames[i]
		}
		for slot, tex := range m.Textures() {
			if *tex == formats.NoTexture || int(*tex) >= len(srv.md.TextureFiles) {
				continue
			}
			if mat.Textures == nil {
				mat.Textures = make(map[string]string)
			}
			mat.Textures[textureSlots[slot]] = srv.md.TextureFiles[*tex]
		}
		out[i] = mat
	}
	writeJSON(w, srv.log, out)
}

func parseVec3(s string) (math.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return math.Vec3{}, fmt.Errorf("%q: want x,y,z", s)
	}
	var v [3]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return math.Vec3{}, fmt.Errorf("%q: %w", s, err)
		}
		v[i] = float32(f)
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

// requestCamera reads ?eye=x,y,z&target=x,y,z and an optional vertical
// ?fov in degrees. Missing eye or target fall back to the camera framing
// the scene.
func (srv *Server) requestCamera(q url.Values) (camera.Pose, camera.Lens, error) {
	pose := srv.orbit.Pose()
	lens := srv.orbit.Lens

	var err error
	if v := q.Get("eye"); v != "" {
		if pose.Eye, err = parseVec3(v); err != nil {
			return pose, lens, fmt.Errorf("eye: %w", err)
		}
	}
	if v := q.Get("target"); v != "" {
		if pose.Target, err = parseVec3(v); err != nil {
			return pose, lens, fmt.Errorf("target: %w", err)
		}
	}
	if pose.Eye == pose.Target {
		return pose, lens, fmt.Errorf("eye and target coincide")
	}
	if v := q.Get("fov"); v != "" {
		deg, err := strconv.ParseFloat(v, 32)
		if err != nil || deg <= 0 || deg >= 180 {
			return pose, lens, fmt.Errorf("fov %q: want degrees in (0, 180)", v)
		}
		lens.FovY = float32(deg) * math32.Pi / 180
	}
	return pose, lens, nil
}

// handleCull culls from the request camera with an optional ?mode.
func (srv *Server) handleCull(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pose, lens, err := srv.requestCamera(q)
	if err != nil {
		writeError(w, srv.log, http.StatusBadRequest, err)
		return
	}

	mode := srv.mode
	if v := q.Get("mode"); v != "" {
		if mode, err = culling.ParseMode(v); err != nil {
			writeError(w, srv.log, http.StatusBadRequest, err)
			return
		}
	}

	res, err := srv.cull(pose, lens, mode)
	if err != nil {
		writeError(w, srv.log, http.StatusInternalServerError, err)
		return
	}
	if res.VisibleNodes == nil {
		res.VisibleNodes = []int{}
	}
	writeJSON(w, srv.log, res)
}

// LastCull returns the result of the most recent culling pass.
func (srv *Server) LastCull() CullResult {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.last
}

func (srv *Server) handleDebugLines(w http.ResponseWriter, r *http.Request) {
	srv.mu.Lock()
	lines := srv.culler.DebugLines()
	srv.mu.Unlock()
	writeJSON(w, srv.log, lines)
}

// handleDot writes the hierarchy as Graphviz, highlighting the nodes in
// ?highlight=1,2,3 or, with ?highlight=visible, the last culled set.
func (srv *Server) handleDot(w http.ResponseWriter, r *http.Request) {
	var highlight []int
	switch v := r.URL.Query().Get("highlight"); v {
	case "":
	case "visible":
		highlight = srv.LastCull().VisibleNodes
	default:
		for _, p := range strings.Split(v, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || id < 0 || id >= srv.scene.NumNodes() {
				writeError(w, srv.log, http.StatusBadRequest, fmt.Errorf("highlight %q: not a node id", p))
				return
			}
			highlight = append(highlight, id)
		}
	}

	var buf bytes.Buffer
	if err := scene.DumpToDot(&buf, srv.scene, highlight...); err != nil {
		writeError(w, srv.log, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.Write(buf.Bytes())
}

// PickResult names the node under a viewport position.
type PickResult struct {
	Hit      bool      `json:"hit"`
	Node     int       `json:"node"`
	Name     string    `json:"name,omitempty"`
	Distance float32   `json:"distance,omitempty"`
	Point    math.Vec3 `json:"point"`
}

// handlePick casts a ray through pixel ?x,?y of a ?width by ?height
// viewport seen from the request camera and reports the nearest node box.
func (srv *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pose, lens, err := srv.requestCamera(q)
	if err != nil {
		writeError(w, srv.log, http.StatusBadRequest, err)
		return
	}

	var px [4]float32
	for i, name := range []string{"x", "y", "width", "height"} {
		f, err := strconv.ParseFloat(q.Get(name), 32)
		if err != nil {
			writeError(w, srv.log, http.StatusBadRequest, fmt.Errorf("%s: %w", name, err))
			return
		}
		px[i] = float32(f)
	}
	x, y, width, height := px[0], px[1], px[2], px[3]
	if width <= 0 || height <= 0 || x < 0 || y < 0 || x > width || y > height {
		writeError(w, srv.log, http.StatusBadRequest, fmt.Errorf("pixel (%g, %g) outside %gx%g viewport", x, y, width, height))
		return
	}

	// Picking follows the request viewport, not the lens aspect.
	lens.Aspect = width / height
	inv := lens.Projection().Mul(pose.View()).Inverse()
	ray := picking.ScreenToRay(x, y, width, height, inv)

	res := PickResult{Node: -1}
	if hit, ok := picking.PickNode(ray, srv.boxes); ok {
		res = PickResult{
			Hit:      true,
			Node:     hit.Node,
			Name:     srv.scene.NodeName(hit.Node),
			Distance: hit.Distance,
			Point:    ray.At(hit.Distance),
		}
	}
	writeJSON(w, srv.log, res)
}
