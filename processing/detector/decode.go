package detector

import (
	"fmt"
	"image"
	"math"
)

// candidate is one row of the YOLO head that passed the confidence filter,
// before non-maximum suppression.
type candidate struct {
	box    image.Rectangle
	score  float32
	class  int
	coeffs []float32
}

// headShape describes the segmentation head output [1, 4+classes+masks, anchors].
type headShape struct {
	channels int
	anchors  int
	classes  int
	masks    int
}

func newHeadShape(detDims, protoDims []int) (headShape, error) {
	if len(detDims) != 3 || len(protoDims) != 4 {
		return headShape{}, fmt.Errorf("unexpected output shapes %v and %v", detDims, protoDims)
	}

	hs := headShape{
		channels: detDims[1],
		anchors:  detDims[2],
		masks:    protoDims[1],
	}
	hs.classes = hs.channels - 4 - hs.masks
	if hs.classes <= 0 || hs.anchors <= 0 {
		return headShape{}, fmt.Errorf("output %v does not fit %d mask coefficients", detDims, hs.masks)
	}
	return hs, nil
}

// classOffsetBoxes shifts every box by a multiple of the largest coordinate
// times its class, so boxes of different classes never overlap and a single
// NMS pass only suppresses within a class.
func classOffsetBoxes(cands []candidate) []image.Rectangle {
	off := 1
	for _, c := range cands {
		off = max(off, c.box.Max.X+1, c.box.Max.Y+1)
	}

	boxes := make([]image.Rectangle, len(cands))
	for i, c := range cands {
		d := c.class * off
		boxes[i] = c.box.Add(image.Pt(d, d))
	}
	return boxes
}

// decodeCandidates reads the channel-major head output and returns boxes in
// frame coordinates for every anchor whose best class reaches minScore.
func decodeCandidates(data []float32, hs headShape, inputSize int, frameSize image.Point, minScore float32) []candidate {
	n := hs.anchors
	if len(data) < hs.channels*n {
		return nil
	}

	sx := float32(frameSize.X) / float32(inputSize)
	sy := float32(frameSize.Y) / float32(inputSize)
	bounds := image.Rect(0, 0, frameSize.X, frameSize.Y)

	var out []candidate
	for i := 0; i < n; i++ {
		best := float32(0)
		bestClass := -1
		for c := 0; c < hs.classes; c++ {
			if s := data[(4+c)*n+i]; s > best {
				best = s
				bestClass = c
			}
		}
		if bestClass < 0 || best < minScore {
			continue
		}

		cx, cy := data[i], data[n+i]
		w, h := data[2*n+i], data[3*n+i]

		box := image.Rect(
			int((cx-w/2)*sx),
			int((cy-h/2)*sy),
			int((cx+w/2)*sx),
			int((cy+h/2)*sy),
		).Intersect(bounds)
		if box.Empty() {
			continue
		}

		coeffs := make([]float32, hs.masks)
		base := (4 + hs.classes) * n
		for k := 0; k < hs.masks; k++ {
			coeffs[k] = data[base+k*n+i]
		}

		out = append(out, candidate{box: box, score: best, class: bestClass, coeffs: coeffs})
	}
	return out
}

// buildMask combines mask coefficients with the prototype tensor
// [masks, mh, mw], samples the result bilinearly at frame resolution and keeps
// pixels inside box whose probability exceeds threshold.
func buildMask(coeffs, protos []float32, mh, mw int, box image.Rectangle, frameSize image.Point, threshold float32) *image.Alpha {
	plane := mh * mw
	if len(protos) < len(coeffs)*plane {
		return nil
	}

	lowres := make([]float32, plane)
	for k, c := range coeffs {
		p := protos[k*plane : (k+1)*plane]
		for j := range lowres {
			lowres[j] += c * p[j]
		}
	}
	for j, v := range lowres {
		lowres[j] = sigmoid(v)
	}

	mask := image.NewAlpha(image.Rect(0, 0, frameSize.X, frameSize.Y))
	fx := float32(mw) / float32(frameSize.X)
	fy := float32(mh) / float32(frameSize.Y)

	for y := box.Min.Y; y < box.Max.Y; y++ {
		py := (float32(y)+0.5)*fy - 0.5
		for x := box.Min.X; x < box.Max.X; x++ {
			px := (float32(x)+0.5)*fx - 0.5
			if sampleBilinear(lowres, mw, mh, px, py) > threshold {
				mask.Pix[mask.PixOffset(x, y)] = 0xff
			}
		}
	}
	return mask
}

func sampleBilinear(plane []float32, w, h int, x, y float32) float32 {
	x = clampf(x, 0, float32(w-1))
	y = clampf(y, 0, float32(h-1))

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	ax, ay := x-float32(x0), y-float32(y0)

	top := plane[y0*w+x0]*(1-ax) + plane[y0*w+x1]*ax
	bottom := plane[y1*w+x0]*(1-ax) + plane[y1*w+x1]*ax
	return top*(1-ay) + bottom*ay
}

func sigmoid(v float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(v))))
}

func clampf(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}
