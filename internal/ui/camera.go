package ui

import (
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"visors/internal/config"
	"visors/internal/metrics"
	"visors/processing/capture"
	"visors/processing/frame"
	"visors/processing/pump"
)

// CameraApp shows a local camera feed as captured.
type CameraApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config    *config.Config
	processor *pump.Processor
	logger    *slog.Logger

	video        *videoView
	statusLabel  *widget.Label
	latencyLabel *widget.Label
	fpsLabel     *widget.Label

	stop chan struct{}
}

func CreateCameraApp(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *CameraApp {
	if logger == nil {
		logger = slog.Default()
	}

	a := app.New()
	w := a.NewWindow("Webcam")
	w.Resize(fyne.NewSize(float32(cfg.Display.Width), float32(cfg.Display.Height)))

	c := &CameraApp{
		fyneApp: a,
		mainWin: w,
		config:  cfg,
		logger:  logger,
		stop:    make(chan struct{}),
	}

	c.statusLabel = widget.NewLabel("")
	c.video = newVideoView(frame.TestPattern(cfg.Display.Width, cfg.Display.Height), 320, 240, pixelSize)

	c.processor = pump.NewProcessor(pump.Config{
		Interval: cfg.GetTickInterval(),
		Stage:    pump.Convert(),
		Sink: &canvasSink{
			view:   c.video,
			status: c.statusLabel,
			logger: logger,
		},
		Metrics: m,
		Logger:  logger,
	})
	return c
}

func (c *CameraApp) Run() {
	c.latencyLabel = widget.NewLabel(formatLatency(0))
	c.fpsLabel = widget.NewLabel(formatFPS(0))

	c.mainWin.SetContent(container.NewBorder(
		container.NewHBox(c.fpsLabel, widget.NewSeparator(), c.latencyLabel),
		c.statusLabel,
		nil, nil,
		c.video,
	))

	c.mainWin.SetCloseIntercept(func() {
		close(c.stop)
		c.processor.Stop()
		c.mainWin.Close()
	})

	c.openCamera()
	go runStatLoop(c.stop, c.processor, c.fpsLabel, c.latencyLabel)

	c.mainWin.CenterOnScreen()
	c.mainWin.ShowAndRun()
}

// openCamera starts the feed. On failure the window stays up without one.
func (c *CameraApp) openCamera() {
	id := c.config.Camera.DeviceID

	src, err := capture.NewSource(capture.KindCamera, c.config, "")
	if err != nil {
		c.logger.Error("open camera", "device", id, "error", err)
		c.statusLabel.SetText(fmt.Sprintf("Error: Could not open camera %d", id))
		return
	}
	c.processor.Start(src)
}
