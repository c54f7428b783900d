package detector

import (
	"image"
	"testing"
)

// headData lays out anchors channel-major the way the ONNX head does.
func headData(hs headShape, anchors [][]float32) []float32 {
	data := make([]float32, hs.channels*hs.anchors)
	for i, a := range anchors {
		for c, v := range a {
			data[c*hs.anchors+i] = v
		}
	}
	return data
}

func TestNewHeadShape(t *testing.T) {
	hs, err := newHeadShape([]int{1, 116, 8400}, []int{1, 32, 160, 160})
	if err != nil {
		t.Fatalf("newHeadShape() error = %v", err)
	}
	if hs.classes != 80 || hs.masks != 32 || hs.anchors != 8400 {
		t.Errorf("shape = %+v, want 80 classes, 32 masks, 8400 anchors", hs)
	}

	if _, err := newHeadShape([]int{1, 84, 8400}, []int{1, 32, 160}); err == nil {
		t.Error("expected an error for a 3-d prototype tensor")
	}
	if _, err := newHeadShape([]int{1, 30, 8400}, []int{1, 32, 160, 160}); err == nil {
		t.Error("expected an error when there is no room for class scores")
	}
}

func TestDecodeCandidates(t *testing.T) {
	hs := headShape{channels: 8, anchors: 3, classes: 2, masks: 2}
	data := headData(hs, [][]float32{
		// cx, cy, w, h, class0, class1, coeff0, coeff1
		{320, 320, 64, 64, 0.9, 0.1, 1, -1},
		{100, 100, 10, 10, 0.1, 0.2, 0, 0},
		{10, 10, 40, 40, 0.05, 0.7, 0.5, 0.25},
	})

	got := decodeCandidates(data, hs, 640, image.Pt(1280, 720), 0.25)
	if len(got) != 2 {
		t.Fatalf("decodeCandidates() returned %d candidates, want 2", len(got))
	}

	first := got[0]
	if first.class != 0 || first.score != 0.9 {
		t.Errorf("first candidate class=%d score=%v, want 0 / 0.9", first.class, first.score)
	}
	if want := image.Rect(576, 324, 704, 396); first.box != want {
		t.Errorf("first box = %v, want %v", first.box, want)
	}
	if len(first.coeffs) != 2 || first.coeffs[0] != 1 || first.coeffs[1] != -1 {
		t.Errorf("first coeffs = %v, want [1 -1]", first.coeffs)
	}

	second := got[1]
	if second.class != 1 {
		t.Errorf("second candidate class = %d, want 1", second.class)
	}
	if want := image.Rect(0, 0, 60, 33); second.box != want {
		t.Errorf("second box = %v, want %v (clamped to frame)", second.box, want)
	}
}

func TestDecodeCandidates_ShortBuffer(t *testing.T) {
	hs := headShape{channels: 8, anchors: 3, classes: 2, masks: 2}
	if got := decodeCandidates(make([]float32, 5), hs, 640, image.Pt(640, 640), 0.25); got != nil {
		t.Errorf("decodeCandidates() on a short buffer = %v, want nil", got)
	}
}

// leftHalfProtos returns one 4x4 prototype that is strongly positive in the
// two left columns and strongly negative in the right ones.
func leftHalfProtos() []float32 {
	p := make([]float32, 16)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				p[y*4+x] = 10
			} else {
				p[y*4+x] = -10
			}
		}
	}
	return p
}

func TestBuildMask(t *testing.T) {
	frameSize := image.Pt(8, 8)
	mask := buildMask([]float32{1}, leftHalfProtos(), 4, 4, image.Rect(0, 0, 8, 8), frameSize, 0.5)
	if mask == nil {
		t.Fatal("buildMask() returned nil")
	}

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			inside := mask.AlphaAt(x, y).A != 0
			if want := x < 4; inside != want {
				t.Errorf("mask(%d,%d) = %v, want %v", x, y, inside, want)
			}
		}
	}
}

func TestBuildMask_CroppedToBox(t *testing.T) {
	mask := buildMask([]float32{1}, leftHalfProtos(), 4, 4, image.Rect(0, 0, 2, 8), image.Pt(8, 8), 0.5)

	if mask.AlphaAt(1, 3).A == 0 {
		t.Error("pixel inside box and prototype should be set")
	}
	if mask.AlphaAt(3, 3).A != 0 {
		t.Error("pixel outside the box should not be set")
	}
}

func TestBuildMask_NegativeCoefficientInverts(t *testing.T) {
	mask := buildMask([]float32{-1}, leftHalfProtos(), 4, 4, image.Rect(0, 0, 8, 8), image.Pt(8, 8), 0.5)

	if mask.AlphaAt(0, 0).A != 0 {
		t.Error("left side should be cleared with a negative coefficient")
	}
	if mask.AlphaAt(7, 7).A == 0 {
		t.Error("right side should be set with a negative coefficient")
	}
}

func TestBuildMask_ShortPrototypes(t *testing.T) {
	if m := buildMask([]float32{1, 1}, leftHalfProtos(), 4, 4, image.Rect(0, 0, 8, 8), image.Pt(8, 8), 0.5); m != nil {
		t.Error("expected nil when prototypes are shorter than coefficients require")
	}
}

func TestSigmoid(t *testing.T) {
	if got := sigmoid(0); got != 0.5 {
		t.Errorf("sigmoid(0) = %v, want 0.5", got)
	}
	if got := sigmoid(20); got < 0.999 {
		t.Errorf("sigmoid(20) = %v, want ~1", got)
	}
	if got := sigmoid(-20); got > 0.001 {
		t.Errorf("sigmoid(-20) = %v, want ~0", got)
	}
}

func TestClassName(t *testing.T) {
	if got := className(COCOClasses, 0); got != "person" {
		t.Errorf("className(0) = %q, want person", got)
	}
	if got := className(COCOClasses, 79); got != "toothbrush" {
		t.Errorf("className(79) = %q, want toothbrush", got)
	}
	if got := className(COCOClasses, 80); got != "class 80" {
		t.Errorf("className(80) = %q, want fallback", got)
	}
}

func TestClassOffsetBoxes(t *testing.T) {
	person := candidate{box: image.Rect(100, 100, 300, 400), class: 0}
	dog := candidate{box: image.Rect(120, 150, 320, 420), class: 16}
	otherPerson := candidate{box: image.Rect(110, 110, 310, 410), class: 0}

	boxes := classOffsetBoxes([]candidate{person, dog, otherPerson})

	if boxes[0] != person.box {
		t.Errorf("class 0 box moved to %v", boxes[0])
	}
	if !boxes[0].Intersect(boxes[1]).Empty() {
		t.Errorf("boxes of different classes still overlap: %v and %v", boxes[0], boxes[1])
	}
	if boxes[0].Intersect(boxes[2]).Empty() {
		t.Error("boxes of the same class no longer overlap")
	}
	if boxes[1].Size() != dog.box.Size() {
		t.Errorf("offset changed the box size: %v", boxes[1].Size())
	}
}
