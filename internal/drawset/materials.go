package drawset

import (
	"bytes"
	"encoding/binary"

	"github.com/Faultbox/scenery/internal/gpu"
	"github.com/Faultbox/scenery/pkg/formats"
)

// GPUMaterial is the shader-side material layout. Texture fields hold live
// texture handles; zero means no texture.
type GPUMaterial struct {
	EmissiveFactor     [4]float32
	BaseColorFactor    [4]float32
	Roughness          float32
	TransparencyFactor float32
	AlphaTest          float32
	MetallicFactor     float32
	BaseColorTexture   uint32
	EmissiveTexture    uint32
	NormalTexture      uint32
	OpacityTexture     uint32
	Flags              uint32
	_                  [3]uint32
}

// GPUMaterialSize is the byte stride of GPUMaterial.
var GPUMaterialSize = binary.Size(GPUMaterial{})

// textureSlots returns pointers to the texture fields in the same order as
// formats.Material.Textures.
func (m *GPUMaterial) textureSlots() [4]*uint32 {
	return [4]*uint32{&m.BaseColorTexture, &m.EmissiveTexture, &m.NormalTexture, &m.OpacityTexture}
}

// newGPUMaterial converts m. resolve maps a texture file index to a handle
// and is only called for used slots.
func newGPUMaterial(m formats.Material, resolve func(file int32) gpu.Texture) GPUMaterial {
	g := GPUMaterial{
		EmissiveFactor:     m.EmissiveFactor,
		BaseColorFactor:    m.BaseColorFactor,
		Roughness:          m.Roughness,
		TransparencyFactor: m.TransparencyFactor,
		AlphaTest:          m.AlphaTest,
		MetallicFactor:     m.MetallicFactor,
		Flags:              uint32(m.Flags),
	}
	dst := g.textureSlots()
	for slot, src := range m.Textures() {
		if *src != formats.NoTexture {
			*dst[slot] = uint32(resolve(*src))
		}
	}
	return g
}

func encodeMaterials(materials []GPUMaterial) []byte {
	var buf bytes.Buffer
	buf.Grow(len(materials) * GPUMaterialSize)
	// Writing fixed-size values to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, byteOrder, materials)
	return buf.Bytes()
}
