package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/scenery/pkg/math"
)

// Mesh file errors.
var (
	ErrInvalidMeshMagic   = errors.New("invalid mesh file magic")
	ErrTruncatedMeshData  = errors.New("truncated mesh data")
	ErrMeshSizeMismatch   = errors.New("mesh file size does not match header")
	ErrBoxCountMismatch   = errors.New("bounding box count does not match mesh count")
	ErrLODOutOfRange      = errors.New("LOD index out of range")
	ErrMeshOutOfRange     = errors.New("mesh index out of range")
	ErrIndexRangeOverflow = errors.New("mesh index range exceeds index data")
	ErrInvalidMeshRecord  = errors.New("invalid mesh record")
)

// MeshFileMagic is the value stored in MeshFileHeader.MagicValue.
const MeshFileMagic = 0x12345678

// MaxLODs is the maximum number of LOD levels per mesh.
const MaxLODs = 7

// Mesh is one drawable index range inside a MeshData container.
// LODOffset holds cumulative index counts relative to IndexOffset, so LOD i
// spans LODOffset[i]..LODOffset[i+1]. Indices are relative to VertexOffset.
type Mesh struct {
	LODCount     uint32
	IndexOffset  uint32
	VertexOffset uint32
	VertexCount  uint32
	LODOffset    [MaxLODs + 1]uint32
	MaterialID   uint32
}

// LODIndicesCount returns the number of indices in LOD lod, or 0 when the
// mesh has fewer levels.
func (m *Mesh) LODIndicesCount(lod uint32) uint32 {
	if lod >= m.LODCount {
		return 0
	}
	return m.LODOffset[lod+1] - m.LODOffset[lod]
}

// TotalIndices returns the number of indices over all LOD levels.
func (m *Mesh) TotalIndices() uint32 {
	return m.LODOffset[m.LODCount] - m.LODOffset[0]
}

// MeshFileHeader precedes every mesh file.
type MeshFileHeader struct {
	MagicValue     uint32
	MeshCount      uint32
	IndexDataSize  uint32 // bytes
	VertexDataSize uint32 // bytes
}

// MeshData owns the geometry of a scene: one shared index stream, one
// interleaved vertex blob and the meshes that slice them. Materials and
// TextureFiles travel in a separate material file.
type MeshData struct {
	Layout       VertexLayout
	IndexData    []uint32
	VertexData   []byte
	Meshes       []Mesh
	Boxes        []math.BoundingBox
	Materials    []Material
	TextureFiles []string
}

// Header returns the file header describing md.
func (md *MeshData) Header() MeshFileHeader {
	return MeshFileHeader{
		MagicValue:     MeshFileMagic,
		MeshCount:      uint32(len(md.Meshes)),
		IndexDataSize:  uint32(len(md.IndexData) * 4),
		VertexDataSize: uint32(len(md.VertexData)),
	}
}

// VertexCount returns the number of whole vertices in VertexData.
func (md *MeshData) VertexCount() int {
	stride := int(md.Layout.Stride())
	if stride == 0 {
		return 0
	}
	return len(md.VertexData) / stride
}

// View returns a typed view over VertexData.
func (md *MeshData) View() (VertexView, error) {
	return NewVertexView(md.VertexData, md.Layout)
}

// WithoutTextures returns a shallow copy of md whose materials reference
// no textures. Geometry slices are shared.
func (md *MeshData) WithoutTextures() *MeshData {
	out := *md
	out.Materials = make([]Material, len(md.Materials))
	for i, m := range md.Materials {
		for _, slot := range m.Textures() {
			*slot = NoTexture
		}
		out.Materials[i] = m
	}
	out.TextureFiles = nil
	return &out
}

// IndicesForLOD returns the indices of one LOD level of mesh meshIdx.
// The returned slice aliases IndexData.
func (md *MeshData) IndicesForLOD(meshIdx int, lod uint32) ([]uint32, error) {
	if meshIdx < 0 || meshIdx >= len(md.Meshes) {
		return nil, fmt.Errorf("%w: %d", ErrMeshOutOfRange, meshIdx)
	}
	m := &md.Meshes[meshIdx]
	if lod >= m.LODCount {
		return nil, fmt.Errorf("%w: mesh %d has %d LODs, asked for %d", ErrLODOutOfRange, meshIdx, m.LODCount, lod)
	}
	start := uint64(m.IndexOffset) + uint64(m.LODOffset[lod])
	end := start + uint64(m.LODIndicesCount(lod))
	if end > uint64(len(md.IndexData)) {
		return nil, fmt.Errorf("%w: mesh %d", ErrIndexRangeOverflow, meshIdx)
	}
	return md.IndexData[start:end], nil
}

var (
	meshFileHeaderSize = binary.Size(MeshFileHeader{})
	vertexLayoutSize   = binary.Size(VertexLayout{})
	meshRecordSize     = binary.Size(Mesh{})
	boxRecordSize      = binary.Size(math.BoundingBox{})
)

// expectedMeshFileSize returns the byte size a file with header h must have.
func expectedMeshFileSize(h MeshFileHeader) int64 {
	return int64(meshFileHeaderSize) + int64(vertexLayoutSize) +
		int64(h.MeshCount)*int64(meshRecordSize+boxRecordSize) +
		int64(h.IndexDataSize) + int64(h.VertexDataSize)
}

func checkMeshHeader(h MeshFileHeader, size int64) error {
	if h.MagicValue != MeshFileMagic {
		return fmt.Errorf("%w: 0x%08X", ErrInvalidMeshMagic, h.MagicValue)
	}
	if h.IndexDataSize%4 != 0 {
		return fmt.Errorf("%w: index data size %d is not a multiple of 4", ErrMeshSizeMismatch, h.IndexDataSize)
	}
	want := expectedMeshFileSize(h)
	if size < want {
		return fmt.Errorf("%w: have %d bytes, header declares %d", ErrTruncatedMeshData, size, want)
	}
	if size > want {
		return fmt.Errorf("%w: have %d bytes, header declares %d", ErrMeshSizeMismatch, size, want)
	}
	return nil
}

// checkMeshRecords verifies every mesh against an index stream of
// indexCount entries: at most MaxLODs levels, non-decreasing LOD offsets
// and an index range that ends inside the stream.
func checkMeshRecords(meshes []Mesh, indexCount uint32) error {
	for i := range meshes {
		m := &meshes[i]
		if m.LODCount > MaxLODs {
			return fmt.Errorf("%w: mesh %d has %d LODs, max %d", ErrInvalidMeshRecord, i, m.LODCount, MaxLODs)
		}
		for lod := uint32(0); lod < m.LODCount; lod++ {
			if m.LODOffset[lod+1] < m.LODOffset[lod] {
				return fmt.Errorf("%w: mesh %d LOD %d offset decreases", ErrInvalidMeshRecord, i, lod+1)
			}
		}
		if end := uint64(m.IndexOffset) + uint64(m.LODOffset[m.LODCount]); end > uint64(indexCount) {
			return fmt.Errorf("%w: mesh %d ends at index %d of %d", ErrInvalidMeshRecord, i, end, indexCount)
		}
	}
	return nil
}

// ParseMeshData parses a complete mesh file.
func ParseMeshData(data []byte) (MeshFileHeader, *MeshData, error) {
	var h MeshFileHeader
	if len(data) < meshFileHeaderSize {
		return h, nil, ErrTruncatedMeshData
	}

	r := bytes.NewReader(data)
	if err := binary.Read(r, byteOrder, &h); err != nil {
		return h, nil, fmt.Errorf("reading header: %w", err)
	}
	if err := checkMeshHeader(h, int64(len(data))); err != nil {
		return h, nil, err
	}

	md := &MeshData{
		Meshes:     make([]Mesh, h.MeshCount),
		Boxes:      make([]math.BoundingBox, h.MeshCount),
		IndexData:  make([]uint32, h.IndexDataSize/4),
		VertexData: make([]byte, h.VertexDataSize),
	}
	steps := []struct {
		name string
		dst  any
	}{
		{"vertex layout", &md.Layout},
		{"meshes", md.Meshes},
		{"bounding boxes", md.Boxes},
		{"index data", md.IndexData},
	}
	for _, s := range steps {
		if err := binary.Read(r, byteOrder, s.dst); err != nil {
			return h, nil, fmt.Errorf("reading %s: %w", s.name, errors.Join(ErrTruncatedMeshData, err))
		}
	}
	if _, err := io.ReadFull(r, md.VertexData); err != nil {
		return h, nil, fmt.Errorf("reading vertex data: %w", errors.Join(ErrTruncatedMeshData, err))
	}
	if err := checkMeshRecords(md.Meshes, uint32(len(md.IndexData))); err != nil {
		return h, nil, err
	}

	return h, md, nil
}

// LoadMeshData reads and parses a mesh file.
func LoadMeshData(path string) (MeshFileHeader, *MeshData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MeshFileHeader{}, nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseMeshData(data)
}

// ValidateMeshFile checks the header of a mesh file against its size and
// the mesh records against the index stream, without reading the payload.
func ValidateMeshFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	var h MeshFileHeader
	if err := binary.Read(f, byteOrder, &h); err != nil {
		return fmt.Errorf("reading header: %w", errors.Join(ErrTruncatedMeshData, err))
	}
	if err := checkMeshHeader(h, info.Size()); err != nil {
		return err
	}

	// Skip the layout; the header check bounds MeshCount by the file size.
	if _, err := f.Seek(int64(vertexLayoutSize), io.SeekCurrent); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	meshes := make([]Mesh, h.MeshCount)
	if err := binary.Read(bufio.NewReader(f), byteOrder, meshes); err != nil {
		return fmt.Errorf("reading meshes: %w", errors.Join(ErrTruncatedMeshData, err))
	}
	return checkMeshRecords(meshes, h.IndexDataSize/4)
}

// IsMeshDataValid reports whether path holds a well-formed mesh file.
// Callers use it to decide whether a cached file must be regenerated.
func IsMeshDataValid(path string) bool {
	return ValidateMeshFile(path) == nil
}

// WriteMeshData writes md in mesh file format.
func WriteMeshData(w io.Writer, md *MeshData) error {
	if len(md.Boxes) != len(md.Meshes) {
		return fmt.Errorf("%w: %d boxes, %d meshes", ErrBoxCountMismatch, len(md.Boxes), len(md.Meshes))
	}
	h := md.Header()
	for _, v := range []any{&h, &md.Layout, md.Meshes, md.Boxes, md.IndexData} {
		if err := binary.Write(w, byteOrder, v); err != nil {
			return err
		}
	}
	_, err := w.Write(md.VertexData)
	return err
}

// SaveMeshData writes md to path.
func SaveMeshData(path string, md *MeshData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := WriteMeshData(bw, md); err != nil {
		f.Close()
		return fmt.Errorf("writing mesh data: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing: %w", err)
	}
	return f.Close()
}
