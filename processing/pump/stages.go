package pump

import (
	"context"
	"fmt"
	"time"

	"visors/internal/logging"
	"visors/internal/metrics"
	"visors/processing/detector"
	"visors/processing/frame"
)

// Convert shows the frame as captured.
func Convert() Stage {
	return func(_ context.Context, f *frame.Frame) (Result, error) {
		return Result{Image: f.ToRGBA()}, nil
	}
}

// Detection runs det on every frame. The annotated frame is shown only when
// the result carries at least one mask; otherwise the plain frame is shown.
// The status line lists what was found and is logged through the logger
// carried by ctx.
func Detection(det detector.Detector, m *metrics.Metrics) Stage {
	return func(ctx context.Context, f *frame.Frame) (Result, error) {
		logger := logging.From(ctx)

		start := time.Now()
		res, err := det.Detect(ctx, f)
		if err != nil {
			return Result{}, fmt.Errorf("detect: %w", err)
		}
		if m != nil {
			m.InferenceTime.Observe(time.Since(start).Seconds())
		}

		img := f.ToRGBA()
		if res == nil {
			return Result{Image: img}, nil
		}

		if res.HasMasks() {
			logger.Debug("using annotated frame with masks", "detections", len(res.Detections))
			detector.Plot(img, res)
		} else {
			logger.Debug("using original frame (no masks)")
		}

		if m != nil {
			m.Detections.Add(float64(len(res.Detections)))
		}

		status := res.Summary()
		if status != "" {
			logger.Info(status)
		}
		return Result{Image: img, Status: status}, nil
	}
}
