// Package texture decodes material textures into RGBA pixels, downscales
// them and keeps a WebP conversion cache next to the converted scene.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

var (
	ErrTruncated         = errors.New("truncated image data")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Decode decodes an image file, choosing the decoder by extension.
func Decode(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	img, err := DecodeBytes(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// DecodeBytes decodes data as the format named by ext (".png", ".tga", ...).
func DecodeBytes(data []byte, ext string) (image.Image, error) {
	r := bytes.NewReader(data)
	switch strings.ToLower(ext) {
	case ".png":
		return png.Decode(r)
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".bmp":
		return bmp.Decode(r)
	case ".webp":
		return webp.Decode(r)
	case ".gif":
		return gif.Decode(r)
	case ".tga":
		return DecodeTGA(data)
	default:
		return nil, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
}

// ToRGBA returns img as *image.RGBA with bounds starting at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// FitSize returns the largest power of two not above min(n, maxSize).
func FitSize(n, maxSize int) int {
	limit := min(n, maxSize)
	p := 1
	for p*2 <= limit {
		p *= 2
	}
	return p
}

// Downscale resizes img to power-of-two dimensions no larger than maxSize
// using Catmull-Rom filtering. A maxSize below 1 disables resizing.
func Downscale(img *image.RGBA, maxSize int) *image.RGBA {
	if maxSize < 1 {
		return img
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	tw, th := FitSize(w, maxSize), FitSize(h, maxSize)
	if tw == w && th == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Loader reads texture files for the draw set.
type Loader struct {
	// MaxSize bounds the texture dimensions; 0 keeps the original size.
	MaxSize int
}

// Load decodes path into RGBA pixels, downscaled to MaxSize.
func (l Loader) Load(path string) (*image.RGBA, error) {
	img, err := Decode(path)
	if err != nil {
		return nil, err
	}
	return Downscale(ToRGBA(img), l.MaxSize), nil
}
