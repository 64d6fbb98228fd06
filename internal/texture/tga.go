package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ftrvxmtrx/tga"
)

// TGA image types handled by the built-in decoder.
const (
	TGATypeUncompressed = 2
	TGATypeRLE          = 10
)

var errTGAUnsupported = errors.New("unsupported TGA variant")

// DecodeTGA decodes a TGA file. True-colour 24/32-bit images, raw or RLE,
// are decoded directly; colour-mapped and grayscale images go through
// github.com/ftrvxmtrx/tga.
func DecodeTGA(data []byte) (image.Image, error) {
	img, err := decodeTrueColorTGA(data)
	if errors.Is(err, errTGAUnsupported) {
		img, err = tga.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode tga: %w", err)
		}
	}
	return img, err
}

func decodeTrueColorTGA(data []byte) (*image.RGBA, error) {
	if len(data) < 18 {
		return nil, fmt.Errorf("TGA header truncated: %w", ErrTruncated)
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topToBottom := data[17]&0x20 != 0

	if colorMapType != 0 || (imageType != TGATypeUncompressed && imageType != TGATypeRLE) || (bpp != 24 && bpp != 32) {
		return nil, errTGAUnsupported
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("TGA id field truncated: %w", ErrTruncated)
	}
	px := tgaPixels{
		img:         image.NewRGBA(image.Rect(0, 0, width, height)),
		width:       width,
		height:      height,
		bytesPer:    bpp / 8,
		topToBottom: topToBottom,
	}
	src := data[offset:]

	if imageType == TGATypeUncompressed {
		if len(src) < width*height*px.bytesPer {
			return nil, fmt.Errorf("TGA pixel data truncated: %w", ErrTruncated)
		}
		for i := 0; i < width*height; i++ {
			px.set(i, px.read(src[i*px.bytesPer:]))
		}
		return px.img, nil
	}

	n, i := width*height, 0
	for i < n && len(src) > 0 {
		packet := src[0]
		src = src[1:]
		count := int(packet&0x7f) + 1

		if packet&0x80 != 0 {
			if len(src) < px.bytesPer {
				break
			}
			c := px.read(src)
			src = src[px.bytesPer:]
			for ; count > 0 && i < n; count-- {
				px.set(i, c)
				i++
			}
			continue
		}
		for ; count > 0 && i < n && len(src) >= px.bytesPer; count-- {
			px.set(i, px.read(src))
			src = src[px.bytesPer:]
			i++
		}
	}
	return px.img, nil
}

type tgaPixels struct {
	img           *image.RGBA
	width, height int
	bytesPer      int
	topToBottom   bool
}

// read converts one BGR(A) pixel.
func (p *tgaPixels) read(b []byte) color.RGBA {
	c := color.RGBA{R: b[2], G: b[1], B: b[0], A: 255}
	if p.bytesPer == 4 {
		c.A = b[3]
	}
	return c
}

// set stores pixel i in file order, flipping bottom-up images.
func (p *tgaPixels) set(i int, c color.RGBA) {
	x, y := i%p.width, i/p.width
	if !p.topToBottom {
		y = p.height - 1 - y
	}
	p.img.SetRGBA(x, y, c)
}
