package detector

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"visors/internal/models"
)

const (
	boxThickness = 2
	maskAlpha    = 0.5
)

var palette = []color.RGBA{
	{255, 56, 56, 255}, {255, 157, 151, 255}, {255, 112, 31, 255}, {255, 178, 29, 255},
	{207, 210, 49, 255}, {72, 249, 10, 255}, {146, 204, 23, 255}, {61, 219, 134, 255},
	{26, 147, 52, 255}, {0, 212, 187, 255}, {44, 153, 168, 255}, {0, 194, 255, 255},
	{52, 69, 147, 255}, {100, 115, 255, 255}, {0, 24, 236, 255}, {132, 56, 255, 255},
	{82, 0, 133, 255}, {203, 56, 255, 255}, {255, 149, 200, 255}, {255, 55, 199, 255},
}

// ClassColor returns the overlay color used for a class id.
func ClassColor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

// Plot draws masks, boxes and labels of res onto img in place.
func Plot(img *image.RGBA, res *models.DetectionResult) {
	if img == nil || res == nil {
		return
	}

	for _, d := range res.Detections {
		if d.Mask != nil {
			blendMask(img, d.Mask, ClassColor(d.ClassID))
		}
	}
	for _, d := range res.Detections {
		col := ClassColor(d.ClassID)
		drawRect(img, d.Box, col)
		drawLabel(img, d.Box.Min, fmt.Sprintf("%s %.2f", d.Label, d.Confidence), col)
	}
}

func blendMask(img *image.RGBA, mask *image.Alpha, col color.RGBA) {
	r := img.Bounds().Intersect(mask.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if mask.AlphaAt(x, y).A == 0 {
				continue
			}
			i := img.PixOffset(x, y)
			img.Pix[i] = mix(img.Pix[i], col.R)
			img.Pix[i+1] = mix(img.Pix[i+1], col.G)
			img.Pix[i+2] = mix(img.Pix[i+2], col.B)
		}
	}
}

func mix(a, b uint8) uint8 {
	return uint8(float64(a)*(1-maskAlpha) + float64(b)*maskAlpha)
}

func drawRect(img *image.RGBA, box image.Rectangle, col color.RGBA) {
	bounds := img.Bounds()

	setPixel := func(x, y int) {
		if (image.Point{x, y}).In(bounds) {
			img.SetRGBA(x, y, col)
		}
	}

	x1, y1, x2, y2 := box.Min.X, box.Min.Y, box.Max.X-1, box.Max.Y-1
	for t := 0; t < boxThickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(x, y1+t)
			setPixel(x, y2-t)
		}
		for y := y1; y <= y2; y++ {
			setPixel(x1+t, y)
			setPixel(x2-t, y)
		}
	}
}

// drawLabel writes text on a filled tag sitting on top of the box corner, or
// just inside it when the box touches the top edge.
func drawLabel(img *image.RGBA, at image.Point, text string, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	top := at.Y - height
	if top < img.Bounds().Min.Y {
		top = at.Y
	}
	tag := image.Rect(at.X, top, at.X+width+4, top+height)
	draw.Draw(img, tag.Intersect(img.Bounds()), image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(tag.Min.X+2, tag.Min.Y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
