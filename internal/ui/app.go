package ui

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"visors/internal/config"
	"visors/internal/metrics"
	"visors/internal/ui/cwidget"
	"visors/processing/capture"
	"visors/processing/detector"
	"visors/processing/frame"
	"visors/processing/pump"
)

const (
	StatusModelLoadFailed   = "Error: Could not load detection model"
	StatusModelSwitchFailed = "Error: Could not load new model"
	StatusVideoOpenFailed   = "Error: Could not open video file"
)

// Room left around the video for the control row and the status line.
const (
	contentMarginW = 20
	contentMarginH = 60
)

// DetectApp is the video file viewer: it plays a file in a loop through the
// detector held in slot and paints the annotated frames.
type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config     *config.Config
	configPath string
	processor  *pump.Processor
	slot       *detector.Slot
	switcher   *detector.Switcher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	video        *videoView
	statusLabel  *widget.Label
	latencyLabel *widget.Label
	fpsLabel     *widget.Label

	stop chan struct{}
}

type DetectOptions struct {
	ConfigPath string
	Slot       *detector.Slot
	Loader     detector.Loader
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func CreateApp(cfg *config.Config, opts DetectOptions) *DetectApp {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Slot == nil {
		opts.Slot = &detector.Slot{}
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.DefaultConfigPath
	}

	a := app.New()
	w := a.NewWindow("Object Detection")
	w.Resize(fyne.NewSize(float32(cfg.Display.Width), float32(cfg.Display.Height)))

	d := &DetectApp{
		fyneApp:    a,
		mainWin:    w,
		config:     cfg,
		configPath: opts.ConfigPath,
		slot:       opts.Slot,
		switcher:   detector.NewSwitcher(opts.Slot, opts.Loader),
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		stop:       make(chan struct{}),
	}

	d.statusLabel = widget.NewLabel("Select a video file to start")
	d.statusLabel.Truncation = fyne.TextTruncateEllipsis

	w0, h0 := frame.ContentSize(cfg.Display.Width, cfg.Display.Height, contentMarginW, contentMarginH)
	d.video = newVideoView(frame.TestPattern(w0, h0), 320, 240, d.contentSize)
	d.video.store(w0, h0)

	sink := &canvasSink{
		view:   d.video,
		status: d.statusLabel,
		logger: d.logger,
	}
	d.processor = pump.NewProcessor(pump.Config{
		Interval: cfg.GetTickInterval(),
		Loop:     cfg.Video.Loop,
		Stage:    pump.Detection(d.slot, d.metrics),
		Sink:     sink,
		Metrics:  d.metrics,
		Logger:   d.logger,
	})
	return d
}

// contentSize is the window size minus the room taken by the controls. It runs
// on the UI thread whenever layout resizes the video view.
func (a *DetectApp) contentSize(fyne.Size) (int, int) {
	sz := a.mainWin.Canvas().Size()
	return frame.ContentSize(int(sz.Width), int(sz.Height), contentMarginW, contentMarginH)
}

func (a *DetectApp) Run() {
	a.latencyLabel = widget.NewLabel(formatLatency(0))
	a.fpsLabel = widget.NewLabel(formatFPS(0))

	openBtn := widget.NewButtonWithIcon("Select Video File", theme.FolderOpenIcon(), a.showFileDialog)

	modelSelect := widget.NewSelect(config.ModelsList[:], nil)
	modelSelect.SetSelected(a.config.GetModel())
	modelSelect.OnChanged = func(model string) {
		a.switchModel(model)
	}

	tickInput := cwidget.NewIntInput(
		"Tick interval (ms)",
		"Enter integer",
		int(a.config.GetTickInterval()/time.Millisecond),
		1, 1000,
		func(ms int) {
			a.config.SetTickInterval(ms)
			a.processor.SetInterval(time.Duration(ms) * time.Millisecond)
		},
	)

	controls := container.NewHBox(
		openBtn,
		widget.NewLabel("Model:"),
		modelSelect,
		widget.NewSeparator(),
		a.fpsLabel,
		widget.NewSeparator(),
		a.latencyLabel,
	)

	content := container.NewBorder(
		controls,
		container.NewBorder(nil, nil, nil, tickInput, a.statusLabel),
		nil, nil,
		a.video,
	)
	a.mainWin.SetContent(content)

	a.mainWin.SetCloseIntercept(func() {
		a.shutdown()
		a.mainWin.Close()
	})

	go a.loadModel(a.config.GetModel(), StatusModelLoadFailed)
	go runStatLoop(a.stop, a.processor, a.fpsLabel, a.latencyLabel)

	if path := a.config.GetVideoPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			a.openVideo(path)
		}
	}

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

func (a *DetectApp) shutdown() {
	close(a.stop)
	a.processor.Stop()

	if err := a.switcher.Close(); err != nil {
		a.logger.Warn("close detector", "error", err)
	}
	if model := a.switcher.Model(); model != "" {
		a.config.SetModel(model)
	}
	if err := a.config.Save(a.configPath); err != nil {
		a.logger.Error("save config", "path", a.configPath, "error", err)
	}
}

func (a *DetectApp) showFileDialog() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		a.openVideo(path)
	}, a.mainWin)

	fd.SetFilter(storage.NewExtensionFileFilter(config.VideoExtensions[:]))
	fd.Show()
}

// openVideo replaces the running source with the file at path. The previous
// capture is released before the new one is read.
func (a *DetectApp) openVideo(path string) {
	src, err := capture.NewSource(capture.KindFile, a.config, path)
	if err != nil {
		a.logger.Error("open video", "path", path, "error", err)
		a.statusLabel.SetText(StatusVideoOpenFailed)
		dialog.ShowError(err, a.mainWin)
		return
	}

	if vs, ok := src.(*capture.VideoSource); ok {
		a.logger.Info("video selected", "path", path, "kind", vs.Kind(), "fps", vs.FPS())
	}
	a.config.SetVideoPath(path)
	a.statusLabel.SetText("")
	a.processor.Start(src)
}

func (a *DetectApp) switchModel(model string) {
	a.logger.Info("switching model", "model", model)
	go a.loadModel(model, StatusModelSwitchFailed)
}

// loadModel installs model unless a newer selection or window close replaced
// the request. failStatus is shown when the load itself fails.
func (a *DetectApp) loadModel(model, failStatus string) {
	err := a.switcher.Switch(model)
	if errors.Is(err, detector.ErrSuperseded) || errors.Is(err, detector.ErrClosed) {
		a.logger.Debug("model load discarded", "model", model, "reason", err)
		return
	}

	if a.metrics != nil {
		a.metrics.ObserveModelLoad(model, err)
	}
	if err != nil {
		a.logger.Error("load model", "model", model, "error", err)
		fyne.Do(func() { a.statusLabel.SetText(failStatus) })
		return
	}
	a.logger.Info("model loaded", "model", model)
}
