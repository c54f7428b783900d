package frame

import (
	"image"
	"image/color"
	"testing"
)

func TestFrame_ToRGBA_SwapsChannels(t *testing.T) {
	f := &Frame{}
	// two pixels: pure blue and pure red in BGR order
	if err := f.Set(2, 1, []byte{255, 0, 0, 0, 0, 255}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	img := f.ToRGBA()

	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("pixel 0 = %v, want blue", got)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("pixel 1 = %v, want red", got)
	}
}

func TestFrame_Set(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		buf     []byte
		wantErr bool
	}{
		{"exact", 2, 2, make([]byte, 12), false},
		{"short buffer", 2, 2, make([]byte, 11), true},
		{"zero width", 0, 2, nil, true},
		{"negative height", 2, -1, nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &Frame{}
			err := f.Set(tc.w, tc.h, tc.buf)
			if (err != nil) != tc.wantErr {
				t.Errorf("Set() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFrame_SetReusesBuffer(t *testing.T) {
	f := &Frame{}
	if err := f.Set(4, 4, make([]byte, 48)); err != nil {
		t.Fatal(err)
	}
	before := &f.Pix[0]

	if err := f.Set(2, 2, make([]byte, 12)); err != nil {
		t.Fatal(err)
	}
	if &f.Pix[0] != before {
		t.Error("smaller frame should reuse the existing buffer")
	}
	if f.Width != 2 || f.Height != 2 || len(f.Pix) != 12 {
		t.Errorf("frame = %dx%d len %d, want 2x2 len 12", f.Width, f.Height, len(f.Pix))
	}
}

func TestFromImage_RoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.SetRGBA(0, 0, color.RGBA{10, 20, 30, 255})
	src.SetRGBA(2, 1, color.RGBA{200, 100, 50, 255})

	f := FromImage(src)
	if f.Width != 3 || f.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", f.Width, f.Height)
	}
	if f.Pix[0] != 30 || f.Pix[1] != 20 || f.Pix[2] != 10 {
		t.Errorf("first pixel BGR = %v, want [30 20 10]", f.Pix[:3])
	}

	back := f.ToRGBA()
	if got := back.RGBAAt(2, 1); got != (color.RGBA{200, 100, 50, 255}) {
		t.Errorf("round trip pixel = %v", got)
	}
}

func TestFrame_Empty(t *testing.T) {
	var nilFrame *Frame
	if !nilFrame.Empty() {
		t.Error("nil frame should be empty")
	}
	if !(&Frame{}).Empty() {
		t.Error("zero frame should be empty")
	}
}

func TestTestPattern_Quadrants(t *testing.T) {
	img := TestPattern(640, 480)

	tests := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"top left red", 10, 10, color.RGBA{255, 0, 0, 255}},
		{"top right green", 630, 10, color.RGBA{0, 255, 0, 255}},
		{"bottom left blue", 10, 470, color.RGBA{0, 0, 255, 255}},
		{"bottom right white", 630, 470, color.RGBA{255, 255, 255, 255}},
		{"boundary belongs to right/bottom", 320, 240, color.RGBA{255, 255, 255, 255}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := img.RGBAAt(tc.x, tc.y); got != tc.want {
				t.Errorf("pixel (%d,%d) = %v, want %v", tc.x, tc.y, got, tc.want)
			}
		})
	}
}

func TestFit(t *testing.T) {
	src := TestPattern(640, 480)

	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"downscale", 320, 240, 320, 240},
		{"upscale", 1280, 720, 1280, 720},
		{"clamps zero", 0, 0, 1, 1},
		{"clamps negative", -20, 100, 1, 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Fit(src, tc.w, tc.h)
			b := got.Bounds()
			if b.Dx() != tc.wantW || b.Dy() != tc.wantH {
				t.Errorf("Fit() = %dx%d, want %dx%d", b.Dx(), b.Dy(), tc.wantW, tc.wantH)
			}
		})
	}
}

func TestFit_PreservesQuadrantColors(t *testing.T) {
	got := Fit(TestPattern(640, 480), 64, 48)

	if c := got.RGBAAt(2, 2); c.R < 250 || c.G > 5 || c.B > 5 {
		t.Errorf("top left after scaling = %v, want red", c)
	}
	if c := got.RGBAAt(61, 45); c.R < 250 || c.G < 250 || c.B < 250 {
		t.Errorf("bottom right after scaling = %v, want white", c)
	}
}

func TestContentSize(t *testing.T) {
	tests := []struct {
		winW, winH   int
		wantW, wantH int
	}{
		{800, 600, 780, 540},
		{20, 60, 1, 1},
		{5, 5, 1, 1},
	}

	for _, tc := range tests {
		w, h := ContentSize(tc.winW, tc.winH, 20, 60)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("ContentSize(%d,%d) = %dx%d, want %dx%d", tc.winW, tc.winH, w, h, tc.wantW, tc.wantH)
		}
	}
}
