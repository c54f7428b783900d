// Package pump drives the per-tick read, convert, detect and render cycle
// shared by both viewers.
package pump

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"visors/internal/logging"
	"visors/internal/metrics"
	"visors/processing/capture"
	"visors/processing/frame"
)

const (
	StatusRestarting = "End of video reached - Restarting"
	StatusEnded      = "End of video reached"
)

// Sink is where each tick ends up. Every call happens on the pump goroutine,
// so implementations backed by a GUI must hand the work to the UI thread.
type Sink interface {
	// Size is the content area, in pixels, the frame is scaled to.
	Size() (width, height int)
	Show(img image.Image)
	Status(msg string)
}

// Result is what a Stage produces for one frame.
type Result struct {
	Image  *image.RGBA
	Status string
}

// Stage turns a raw BGR frame into the image to paint.
type Stage func(ctx context.Context, f *frame.Frame) (Result, error)

type Config struct {
	Interval time.Duration
	// Loop rewinds sources that support it when a read fails. Without it
	// playback of such a source ends at its last frame.
	Loop    bool
	Stage   Stage
	Sink    Sink
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Processor owns the timer loop and the capture source it reads from. At most
// one loop runs at a time.
type Processor struct {
	cfg      Config
	logger   *slog.Logger
	interval atomic.Int64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	src    capture.Source

	// finished is owned by the pump goroutine.
	finished bool

	mu         sync.RWMutex
	active     bool
	latency    time.Duration
	fps        uint
	frameCount uint64
}

func NewProcessor(cfg Config) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Stage == nil {
		cfg.Stage = Convert()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Millisecond
	}
	if cfg.Sink == nil {
		cfg.Sink = discardSink{}
	}

	p := &Processor{cfg: cfg, logger: cfg.Logger}
	p.interval.Store(int64(cfg.Interval))
	return p
}

// Start stops any running loop, releasing its source, and then starts pumping
// src. The processor takes ownership of src.
func (p *Processor) Start(src capture.Source) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(logging.With(context.Background(), p.logger.With("source", src.Name())))
	done := make(chan struct{})

	p.cancel = cancel
	p.done = done
	p.src = src
	p.finished = false

	p.mu.Lock()
	p.active = true
	p.frameCount = 0
	p.fps = 0
	p.mu.Unlock()

	p.logger.Info("capture started", "source", src.Name(), "interval", p.Interval())
	go p.run(ctx, src, done)
}

// Stop cancels the loop, waits for the current tick to finish and releases
// the source. It is safe to call at any time and more than once.
func (p *Processor) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.stopLocked()
}

func (p *Processor) stopLocked() {
	if p.cancel == nil {
		return
	}

	p.cancel()
	<-p.done

	if err := p.src.Close(); err != nil {
		p.logger.Warn("release capture source", "source", p.src.Name(), "error", err)
	}
	p.logger.Info("capture stopped", "source", p.src.Name())

	p.cancel = nil
	p.done = nil
	p.src = nil

	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
}

// SetInterval changes the tick period; a running loop picks it up on its next tick.
func (p *Processor) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval.Store(int64(d))
	}
}

func (p *Processor) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

func (p *Processor) IsActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

func (p *Processor) Latency() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latency
}

func (p *Processor) FPS() uint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fps
}

func (p *Processor) FrameCount() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frameCount
}

func (p *Processor) run(ctx context.Context, src capture.Source, done chan struct{}) {
	defer close(done)

	current := p.Interval()
	ticker := time.NewTicker(current)
	defer ticker.Stop()

	var (
		f             frame.Frame
		rendered      uint
		lastFpsUpdate = time.Now()
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.tick(ctx, src, &f) {
				rendered++
			}
			if p.finished {
				p.logger.Info("playback finished", "source", src.Name())
				p.mu.Lock()
				p.active = false
				p.fps = 0
				p.mu.Unlock()
				return
			}

			if time.Since(lastFpsUpdate) >= time.Second {
				p.mu.Lock()
				p.fps = rendered
				p.mu.Unlock()
				rendered = 0
				lastFpsUpdate = time.Now()
			}

			if next := p.Interval(); next != current {
				current = next
				ticker.Reset(current)
			}
		}
	}
}

// tick runs one read-convert-render cycle and reports whether a frame was
// painted. Failures are logged and never stop the loop.
func (p *Processor) tick(ctx context.Context, src capture.Source, f *frame.Frame) (painted bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("frame processing panicked", "error", r)
			p.cfg.Sink.Status(fmt.Sprintf("Error: %v", r))
			p.count(func(m *metrics.Metrics) { m.FramesDropped.Inc() })
			painted = false
		}
	}()

	start := time.Now()

	if !src.Read(f) {
		p.count(func(m *metrics.Metrics) { m.ReadFailures.Inc() })
		p.finished = !p.endOfStream(src)
		return false
	}
	p.count(func(m *metrics.Metrics) { m.FramesRead.Inc() })

	p.mu.Lock()
	p.frameCount++
	n := p.frameCount
	p.mu.Unlock()
	p.logger.Debug("processing frame", "frame", n, "width", f.Width, "height", f.Height)

	res, err := p.cfg.Stage(ctx, f)
	if err != nil {
		p.logger.Error("error processing frame", "frame", n, "error", err)
		p.cfg.Sink.Status("Error: " + err.Error())
		p.count(func(m *metrics.Metrics) { m.FramesDropped.Inc() })
		return false
	}
	if res.Image == nil {
		p.count(func(m *metrics.Metrics) { m.FramesDropped.Inc() })
		return false
	}

	w, h := p.cfg.Sink.Size()
	p.cfg.Sink.Show(frame.Fit(res.Image, w, h))
	if res.Status != "" {
		p.cfg.Sink.Status(res.Status)
	}

	elapsed := time.Since(start)
	p.mu.Lock()
	p.latency = elapsed
	p.mu.Unlock()

	p.count(func(m *metrics.Metrics) {
		m.FramesRendered.Inc()
		m.FrameTime.Observe(elapsed.Seconds())
	})
	return true
}

// endOfStream handles a failed read and reports whether the loop should keep
// reading. Sources that cannot rewind, such as cameras, are retried silently.
func (p *Processor) endOfStream(src capture.Source) bool {
	rw, ok := src.(capture.Rewinder)
	if !ok {
		return true
	}

	p.logger.Info("end of video reached", "source", src.Name())
	if !p.cfg.Loop {
		p.cfg.Sink.Status(StatusEnded)
		return false
	}

	if err := rw.Rewind(); err != nil {
		p.logger.Error("rewind failed", "source", src.Name(), "error", err)
		p.cfg.Sink.Status("Error: " + err.Error())
		return true
	}
	p.cfg.Sink.Status(StatusRestarting)
	p.count(func(m *metrics.Metrics) { m.StreamRestarts.Inc() })
	return true
}

func (p *Processor) count(fn func(m *metrics.Metrics)) {
	if p.cfg.Metrics != nil {
		fn(p.cfg.Metrics)
	}
}

type discardSink struct{}

func (discardSink) Size() (int, int) { return 1, 1 }
func (discardSink) Show(image.Image) {}
func (discardSink) Status(string)    {}
