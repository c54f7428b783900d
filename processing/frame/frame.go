// Package frame holds the raw pixel buffer pulled from a capture source and the
// conversions needed to paint it.
package frame

import (
	"errors"
	"image"
	"image/color"
)

// Channels is the number of interleaved samples per pixel (B, G, R).
const Channels = 3

var ErrSize = errors.New("frame: buffer does not match dimensions")

// Frame is a BGR, 8 bit per channel image. It is overwritten on every tick.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// Set replaces the frame contents, reusing the existing buffer when it is
// large enough.
func (f *Frame) Set(width, height int, bgr []byte) error {
	if width <= 0 || height <= 0 || len(bgr) != width*height*Channels {
		return ErrSize
	}

	if cap(f.Pix) >= len(bgr) {
		f.Pix = f.Pix[:len(bgr)]
	} else {
		f.Pix = make([]byte, len(bgr))
	}
	copy(f.Pix, bgr)

	f.Width = width
	f.Height = height
	return nil
}

func (f *Frame) Empty() bool {
	return f == nil || f.Width == 0 || f.Height == 0 || len(f.Pix) == 0
}

func (f *Frame) Bounds() image.Rectangle { return image.Rect(0, 0, f.Width, f.Height) }

// ToRGBA converts the BGR buffer into an opaque RGBA image.
func (f *Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	if f.Empty() {
		return img
	}

	src := f.Pix
	dst := img.Pix
	for i, j := 0, 0; i+2 < len(src); i, j = i+3, j+4 {
		dst[j] = src[i+2]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i]
		dst[j+3] = 0xff
	}
	return img
}

// FromImage fills the frame from any image, storing it in BGR order.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := &Frame{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    make([]byte, b.Dx()*b.Dy()*Channels),
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			f.Pix[i] = c.B
			f.Pix[i+1] = c.G
			f.Pix[i+2] = c.R
			i += 3
		}
	}
	return f
}

// TestPattern returns a four-quadrant image (red, green, blue, white) shown
// before any video is loaded.
func TestPattern(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	halfW, halfH := width/2, height/2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.RGBA
			switch {
			case y < halfH && x < halfW:
				c = color.RGBA{255, 0, 0, 255}
			case y < halfH:
				c = color.RGBA{0, 255, 0, 255}
			case x < halfW:
				c = color.RGBA{0, 0, 255, 255}
			default:
				c = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
