package ui

import (
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"visors/processing/pump"
)

// videoView shows the latest frame and remembers the pixel size frames should
// be scaled to. The size is measured on the UI thread each time layout resizes
// the view, so the pump goroutine only reads atomics.
type videoView struct {
	widget.BaseWidget

	image   *canvas.Image
	measure func(fyne.Size) (int, int)

	width  atomic.Int64
	height atomic.Int64
}

func newVideoView(img image.Image, minW, minH float32, measure func(fyne.Size) (int, int)) *videoView {
	if measure == nil {
		measure = pixelSize
	}

	v := &videoView{image: canvas.NewImageFromImage(img), measure: measure}
	v.image.FillMode = canvas.ImageFillContain
	v.image.SetMinSize(fyne.NewSize(minW, minH))
	v.store(pixelSize(v.image.MinSize()))

	v.ExtendBaseWidget(v)
	return v
}

func (v *videoView) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(v.image)
}

func (v *videoView) Resize(size fyne.Size) {
	v.BaseWidget.Resize(size)
	v.store(v.measure(size))
}

func (v *videoView) store(w, h int) {
	v.width.Store(int64(max(1, w)))
	v.height.Store(int64(max(1, h)))
}

func (v *videoView) contentSize() (int, int) {
	return int(v.width.Load()), int(v.height.Load())
}

// pixelSize converts a layout size into whole pixels.
func pixelSize(sz fyne.Size) (int, int) {
	return max(1, int(sz.Width)), max(1, int(sz.Height))
}

// canvasSink paints pump output into a videoView. Calls arrive on the pump
// goroutine and are handed to the UI thread with fyne.Do.
type canvasSink struct {
	view   *videoView
	status *widget.Label
	logger *slog.Logger
}

var _ pump.Sink = (*canvasSink)(nil)

func (s *canvasSink) Size() (int, int) { return s.view.contentSize() }

func (s *canvasSink) Show(img image.Image) {
	fyne.Do(func() {
		s.view.image.Image = img
		s.view.image.Refresh()
	})
}

func (s *canvasSink) Status(msg string) {
	if s.status == nil {
		s.logger.Info(msg)
		return
	}
	fyne.Do(func() {
		s.status.SetText(msg)
	})
}

// runStatLoop refreshes the FPS and latency labels until stop is closed.
func runStatLoop(stop <-chan struct{}, p *pump.Processor, fpsLabel, latencyLabel *widget.Label) {
	uiTicker := time.NewTicker(200 * time.Millisecond)
	defer uiTicker.Stop()

	for {
		select {
		case <-uiTicker.C:
			fps, latency := formatFPS(p.FPS()), formatLatency(p.Latency())
			fyne.Do(func() {
				fpsLabel.SetText(fps)
				latencyLabel.SetText(latency)
			})
		case <-stop:
			return
		}
	}
}

func formatFPS(v uint) string {
	return fmt.Sprintf("FPS: %d", v)
}

func formatLatency(v time.Duration) string {
	return fmt.Sprintf("Latency: %d ms", v.Milliseconds())
}
