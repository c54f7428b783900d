// Package detector runs pretrained segmentation models over frames and draws
// their output.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"visors/internal/config"
	"visors/internal/models"
	"visors/processing/frame"
)

var (
	ErrUnknownModel   = errors.New("unknown model")
	ErrUnknownBackend = errors.New("unknown detector backend")
)

// Detector maps a frame to detections.
type Detector interface {
	Detect(ctx context.Context, f *frame.Frame) (*models.DetectionResult, error)
	Close() error
}

// Config holds the settings shared by the YOLO segmentation backends.
type Config struct {
	ModelPath     string
	InputSize     int
	Confidence    float32
	NMS           float32
	MaskThreshold float32
	Classes       []string
}

// DefaultConfig returns defaults for the nano segmentation model.
func DefaultConfig() Config {
	return Config{
		ModelPath:     filepath.Join("models", config.DefaultModel+".onnx"),
		InputSize:     640,
		Confidence:    0.25,
		NMS:           0.45,
		MaskThreshold: 0.5,
		Classes:       COCOClasses,
	}
}

// Loader builds a detector for a model name.
type Loader func(model string) (Detector, error)

// NewLoader returns a Loader bound to the detector section of the config.
func NewLoader(dc config.DetectorConfig, logger *slog.Logger) Loader {
	return func(model string) (Detector, error) {
		return New(dc, model, logger)
	}
}

// New creates the configured backend for model.
func New(dc config.DetectorConfig, model string, logger *slog.Logger) (Detector, error) {
	if !slices.Contains(config.ModelsList[:], model) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultConfig()
	cfg.ModelPath = filepath.Join(dc.ModelsDir, model+".onnx")
	if dc.InputSize > 0 {
		cfg.InputSize = dc.InputSize
	}
	if dc.Confidence > 0 {
		cfg.Confidence = dc.Confidence
	}
	if dc.NMS > 0 {
		cfg.NMS = dc.NMS
	}
	if dc.MaskThreshold > 0 {
		cfg.MaskThreshold = dc.MaskThreshold
	}

	switch dc.Backend {
	case config.BackendLocal:
		logger.Info("loading model", "model", model, "path", cfg.ModelPath)
		return NewYOLOSeg(cfg)
	case config.BackendRemote:
		logger.Info("using remote detector", "model", model, "host", dc.RemoteHost)
		return NewRemoteDetector(dc.RemoteHost, model, RemoteConfig{Logger: logger}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, dc.Backend)
	}
}
