// Package metrics exposes frame pump counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one viewer process.
type Metrics struct {
	FramesRead     prometheus.Counter
	FramesRendered prometheus.Counter
	FramesDropped  prometheus.Counter
	ReadFailures   prometheus.Counter
	StreamRestarts prometheus.Counter
	ModelLoads     *prometheus.CounterVec
	Detections     prometheus.Counter
	InferenceTime  prometheus.Histogram
	FrameTime      prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry. app becomes a
// constant label so both viewers can be scraped side by side.
func New(app string) *Metrics {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"app": app}

	m := &Metrics{
		FramesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "visors_frames_read_total",
			Help:        "Frames read from the capture source.",
			ConstLabels: labels,
		}),
		FramesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "visors_frames_rendered_total",
			Help:        "Frames painted into the window.",
			ConstLabels: labels,
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "visors_frames_dropped_total",
			Help:        "Frames lost to a conversion, inference or render failure.",
			ConstLabels: labels,
		}),
		ReadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "visors_read_failures_total",
			Help:        "Ticks where the capture source returned no frame.",
			ConstLabels: labels,
		}),
		StreamRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "visors_stream_restarts_total",
			Help:        "Times a video file was rewound to its first frame.",
			ConstLabels: labels,
		}),
		ModelLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "visors_model_loads_total",
			Help:        "Detector model loads by outcome.",
			ConstLabels: labels,
		}, []string{"model", "result"}),
		Detections: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "visors_detections_total",
			Help:        "Objects reported by the detector.",
			ConstLabels: labels,
		}),
		InferenceTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "visors_inference_seconds",
			Help:        "Detector latency per frame.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		FrameTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "visors_frame_seconds",
			Help:        "Time spent on one tick from read to paint.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.FramesRead,
		m.FramesRendered,
		m.FramesDropped,
		m.ReadFailures,
		m.StreamRestarts,
		m.ModelLoads,
		m.Detections,
		m.InferenceTime,
		m.FrameTime,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveModelLoad counts a model load attempt.
func (m *Metrics) ObserveModelLoad(model string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ModelLoads.WithLabelValues(model, result).Inc()
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables it.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
}
