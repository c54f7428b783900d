package models

import (
	"fmt"
	"image"
	"strings"
)

// Detection is one object found in a frame. Box is in frame pixels; Mask, when
// present, covers the whole frame.
type Detection struct {
	ClassID    int             `json:"class_id"`
	Label      string          `json:"label"`
	Confidence float32         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
	Mask       *image.Alpha    `json:"-"`
}

// DetectionResult is what a detector returns for a single frame.
type DetectionResult struct {
	FrameSize  image.Point
	Detections []Detection
}

// HasMasks reports whether at least one detection carries a segmentation mask.
func (r *DetectionResult) HasMasks() bool {
	if r == nil {
		return false
	}
	for _, d := range r.Detections {
		if d.Mask != nil {
			return true
		}
	}
	return false
}

// Summary renders the status line shown under the video, e.g.
// "Detected: person (0.91), dog (0.55)". Empty when nothing was found.
func (r *DetectionResult) Summary() string {
	if r == nil || len(r.Detections) == 0 {
		return ""
	}

	parts := make([]string, 0, len(r.Detections))
	for _, d := range r.Detections {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", d.Label, d.Confidence))
	}
	return "Detected: " + strings.Join(parts, ", ")
}
