package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Material file errors.
var (
	ErrTruncatedMaterials    = errors.New("truncated material data")
	ErrMaterialSizeMismatch  = errors.New("material record size mismatch")
	ErrTextureIndexOutOfList = errors.New("material references a texture outside the texture list")
)

// MaterialFlags is a bit set of material properties.
type MaterialFlags uint32

const (
	MaterialCastShadow MaterialFlags = 1 << iota
	MaterialReceiveShadow
	MaterialTransparent
)

// NoTexture marks an unused texture slot.
const NoTexture int32 = -1

// Material is the on-disk material record. Texture fields index the
// texture file list stored alongside the materials.
type Material struct {
	EmissiveFactor     [4]float32
	BaseColorFactor    [4]float32
	Roughness          float32
	TransparencyFactor float32
	AlphaTest          float32
	MetallicFactor     float32
	BaseColorTexture   int32
	EmissiveTexture    int32
	NormalTexture      int32
	OpacityTexture     int32
	Flags              MaterialFlags
}

// NewMaterial returns an opaque white material with no textures.
func NewMaterial() Material {
	return Material{
		BaseColorFactor:    [4]float32{1, 1, 1, 1},
		EmissiveFactor:     [4]float32{0, 0, 0, 1},
		Roughness:          1,
		TransparencyFactor: 1,
		BaseColorTexture:   NoTexture,
		EmissiveTexture:    NoTexture,
		NormalTexture:      NoTexture,
		OpacityTexture:     NoTexture,
		Flags:              MaterialCastShadow | MaterialReceiveShadow,
	}
}

// Textures returns pointers to the four texture slots in the order base
// color, emissive, normal, opacity.
func (m *Material) Textures() [4]*int32 {
	return [4]*int32{&m.BaseColorTexture, &m.EmissiveTexture, &m.NormalTexture, &m.OpacityTexture}
}

// IsTransparent reports whether the transparent flag is set.
func (m *Material) IsTransparent() bool {
	return m.Flags&MaterialTransparent != 0
}

var materialRecordSize = binary.Size(Material{})

// CheckMaterialTextures verifies every texture index is NoTexture or inside
// a list of numTextures entries.
func CheckMaterialTextures(materials []Material, numTextures int) error {
	for i := range materials {
		for slot, tex := range materials[i].Textures() {
			if *tex != NoTexture && (*tex < 0 || int(*tex) >= numTextures) {
				return fmt.Errorf("%w: material %d slot %d index %d of %d",
					ErrTextureIndexOutOfList, i, slot, *tex, numTextures)
			}
		}
	}
	return nil
}

// WriteMaterials writes a material file.
func WriteMaterials(w io.Writer, materials []Material, textureFiles []string) error {
	count := uint64(len(materials))
	size := count * uint64(materialRecordSize)
	for _, v := range []any{count, size, materials} {
		if err := binary.Write(w, byteOrder, v); err != nil {
			return err
		}
	}
	return WriteStringList(w, textureFiles)
}

// ParseMaterials parses a material file.
func ParseMaterials(data []byte) ([]Material, []string, error) {
	r := bytes.NewReader(data)

	var count, size uint64
	if err := binary.Read(r, byteOrder, &count); err != nil {
		return nil, nil, ErrTruncatedMaterials
	}
	if err := binary.Read(r, byteOrder, &size); err != nil {
		return nil, nil, ErrTruncatedMaterials
	}
	if size != count*uint64(materialRecordSize) {
		return nil, nil, fmt.Errorf("%w: %d materials in %d bytes", ErrMaterialSizeMismatch, count, size)
	}
	if size > uint64(r.Len()) {
		return nil, nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedMaterials, size, r.Len())
	}

	materials := make([]Material, count)
	if err := binary.Read(r, byteOrder, materials); err != nil {
		return nil, nil, fmt.Errorf("reading materials: %w", errors.Join(ErrTruncatedMaterials, err))
	}
	files, err := ReadStringList(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading texture list: %w", err)
	}
	return materials, files, nil
}

// LoadMaterials reads a material file.
func LoadMaterials(path string) ([]Material, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseMaterials(data)
}

// SaveMaterials writes a material file to path.
func SaveMaterials(path string, materials []Material, textureFiles []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := WriteMaterials(bw, materials, textureFiles); err != nil {
		f.Close()
		return fmt.Errorf("writing materials: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing: %w", err)
	}
	return f.Close()
}

// IsMaterialFileValid reports whether path parses as a material file whose
// texture indices stay inside its texture list.
func IsMaterialFileValid(path string) bool {
	materials, files, err := LoadMaterials(path)
	if err != nil {
		return false
	}
	return CheckMaterialTextures(materials, len(files)) == nil
}
