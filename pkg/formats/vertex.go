package formats

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Faultbox/scenery/pkg/math"
)

// Vertex layout errors.
var (
	ErrInvalidVertexLayout = errors.New("invalid vertex layout")
	ErrVertexOutOfRange    = errors.New("vertex index out of range")
	ErrMissingAttribute    = errors.New("vertex attribute not present")
)

// Layout limits.
const (
	MaxVertexAttributes = 16
	MaxVertexBindings   = 16
)

// Attribute locations used by the importer.
const (
	LocationPosition = 0
	LocationTexCoord = 1
	LocationNormal   = 2
)

// VertexFormat identifies the element type of a vertex attribute.
type VertexFormat uint32

const (
	VertexFormatInvalid VertexFormat = iota
	VertexFormatFloat1
	VertexFormatFloat2
	VertexFormatFloat3
	VertexFormatFloat4
	VertexFormatHalfFloat2
	VertexFormatHalfFloat4
	VertexFormatUByte4Norm
	VertexFormatInt2_10_10_10Rev
)

// Size returns the attribute size in bytes.
func (f VertexFormat) Size() int {
	switch f {
	case VertexFormatFloat1, VertexFormatHalfFloat2, VertexFormatUByte4Norm, VertexFormatInt2_10_10_10Rev:
		return 4
	case VertexFormatFloat2, VertexFormatHalfFloat4:
		return 8
	case VertexFormatFloat3:
		return 12
	case VertexFormatFloat4:
		return 16
	default:
		return 0
	}
}

// Components returns the number of float32 components for float formats.
func (f VertexFormat) Components() int {
	switch f {
	case VertexFormatFloat1:
		return 1
	case VertexFormatFloat2:
		return 2
	case VertexFormatFloat3:
		return 3
	case VertexFormatFloat4:
		return 4
	default:
		return 0
	}
}

// String returns the format name.
func (f VertexFormat) String() string {
	switch f {
	case VertexFormatInvalid:
		return "Invalid"
	case VertexFormatFloat1:
		return "Float1"
	case VertexFormatFloat2:
		return "Float2"
	case VertexFormatFloat3:
		return "Float3"
	case VertexFormatFloat4:
		return "Float4"
	case VertexFormatHalfFloat2:
		return "HalfFloat2"
	case VertexFormatHalfFloat4:
		return "HalfFloat4"
	case VertexFormatUByte4Norm:
		return "UByte4Norm"
	case VertexFormatInt2_10_10_10Rev:
		return "Int2_10_10_10_REV"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(f))
	}
}

// VertexAttribute describes one attribute inside a vertex.
type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   VertexFormat
	Offset   uint32 // byte offset inside the vertex
}

// VertexBinding describes one vertex buffer binding.
type VertexBinding struct {
	Stride uint32
}

// VertexLayout is the attribute/binding table stored in mesh files.
// Unused slots are zero; the attribute list ends at the first slot with an
// invalid format.
type VertexLayout struct {
	Attributes [MaxVertexAttributes]VertexAttribute
	Bindings   [MaxVertexBindings]VertexBinding
}

// StandardLayout returns the interleaved position/uv/normal layout written by
// the importer: float3 position, float2 uv, float3 normal, 32-byte stride.
func StandardLayout() VertexLayout {
	var l VertexLayout
	l.Attributes[0] = VertexAttribute{Location: LocationPosition, Format: VertexFormatFloat3, Offset: 0}
	l.Attributes[1] = VertexAttribute{Location: LocationTexCoord, Format: VertexFormatFloat2, Offset: 12}
	l.Attributes[2] = VertexAttribute{Location: LocationNormal, Format: VertexFormatFloat3, Offset: 20}
	l.Bindings[0] = VertexBinding{Stride: 32}
	return l
}

// NumAttributes returns the number of populated attribute slots.
func (l *VertexLayout) NumAttributes() int {
	for i, a := range l.Attributes {
		if a.Format == VertexFormatInvalid {
			return i
		}
	}
	return MaxVertexAttributes
}

// Stride returns the byte stride of binding 0.
func (l *VertexLayout) Stride() uint32 {
	return l.Bindings[0].Stride
}

// Attribute returns the attribute bound to location.
func (l *VertexLayout) Attribute(location uint32) (VertexAttribute, bool) {
	for _, a := range l.Attributes[:l.NumAttributes()] {
		if a.Location == location {
			return a, true
		}
	}
	return VertexAttribute{}, false
}

// Validate checks that the layout has a stride and that every attribute
// fits inside one vertex.
func (l *VertexLayout) Validate() error {
	stride := l.Stride()
	if stride == 0 {
		return fmt.Errorf("%w: zero stride", ErrInvalidVertexLayout)
	}
	n := l.NumAttributes()
	if n == 0 {
		return fmt.Errorf("%w: no attributes", ErrInvalidVertexLayout)
	}
	for i, a := range l.Attributes[:n] {
		if a.Offset+uint32(a.Format.Size()) > stride {
			return fmt.Errorf("%w: attribute %d (%s at %d) exceeds stride %d",
				ErrInvalidVertexLayout, i, a.Format, a.Offset, stride)
		}
	}
	return nil
}

// VertexView gives bounds-checked typed access to an interleaved vertex blob.
type VertexView struct {
	data   []byte
	layout VertexLayout
	stride int
}

// NewVertexView wraps data using layout. The layout must validate.
func NewVertexView(data []byte, layout VertexLayout) (VertexView, error) {
	if err := layout.Validate(); err != nil {
		return VertexView{}, err
	}
	return VertexView{data: data, layout: layout, stride: int(layout.Stride())}, nil
}

// Len returns the number of whole vertices in the blob.
func (v VertexView) Len() int {
	return len(v.data) / v.stride
}

// Bytes returns the underlying blob.
func (v VertexView) Bytes() []byte {
	return v.data
}

// Floats reads the float components of attribute location for vertex i.
func (v VertexView) Floats(i int, location uint32, dst []float32) error {
	a, ok := v.layout.Attribute(location)
	if !ok {
		return fmt.Errorf("%w: location %d", ErrMissingAttribute, location)
	}
	n := a.Format.Components()
	if n == 0 || len(dst) < n {
		return fmt.Errorf("%w: location %d has format %s", ErrInvalidVertexLayout, location, a.Format)
	}
	if i < 0 || i >= v.Len() {
		return fmt.Errorf("%w: %d of %d", ErrVertexOutOfRange, i, v.Len())
	}
	base := i*v.stride + int(a.Offset)
	for c := 0; c < n; c++ {
		dst[c] = math32.Float32frombits(byteOrder.Uint32(v.data[base+c*4:]))
	}
	return nil
}

// SetFloats writes the float components of attribute location for vertex i.
func (v VertexView) SetFloats(i int, location uint32, src ...float32) error {
	a, ok := v.layout.Attribute(location)
	if !ok {
		return fmt.Errorf("%w: location %d", ErrMissingAttribute, location)
	}
	n := a.Format.Components()
	if n == 0 || len(src) != n {
		return fmt.Errorf("%w: location %d expects %d floats, got %d", ErrInvalidVertexLayout, location, n, len(src))
	}
	if i < 0 || i >= v.Len() {
		return fmt.Errorf("%w: %d of %d", ErrVertexOutOfRange, i, v.Len())
	}
	base := i*v.stride + int(a.Offset)
	for c, f := range src {
		byteOrder.PutUint32(v.data[base+c*4:], math32.Float32bits(f))
	}
	return nil
}

// Position returns the position attribute of vertex i.
func (v VertexView) Position(i int) (math.Vec3, error) {
	var p [4]float32
	if err := v.Floats(i, LocationPosition, p[:]); err != nil {
		return math.Vec3{}, err
	}
	return math.Vec3{X: p[0], Y: p[1], Z: p[2]}, nil
}
