package frame

import (
	"image"

	"golang.org/x/image/draw"
)

// Fit resamples img to exactly width x height with bilinear interpolation.
// Non-positive target sizes are clamped to 1.
func Fit(img image.Image, width, height int) *image.RGBA {
	width = max(1, width)
	height = max(1, height)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// ContentSize returns the drawable area left after subtracting the margins
// taken by controls around the video, never smaller than 1x1.
func ContentSize(winW, winH, marginW, marginH int) (int, int) {
	return max(1, winW-marginW), max(1, winH-marginH)
}
