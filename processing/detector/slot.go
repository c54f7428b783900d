package detector

import (
	"context"
	"sync"

	"visors/internal/models"
	"visors/processing/frame"
)

// Slot holds the currently loaded detector and lets the UI swap models while
// frames are being processed. An empty slot passes frames through: Detect
// returns a nil result and no error.
type Slot struct {
	mu    sync.RWMutex
	det   Detector
	model string
}

func (s *Slot) Detect(ctx context.Context, f *frame.Frame) (*models.DetectionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.det == nil {
		return nil, nil
	}
	return s.det.Detect(ctx, f)
}

// Swap installs det under the name model once any in-flight Detect has
// finished, then closes the previous detector.
func (s *Slot) Swap(det Detector, model string) error {
	s.mu.Lock()
	old := s.det
	s.det = det
	s.model = model
	s.mu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

func (s *Slot) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *Slot) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.det != nil
}

func (s *Slot) Close() error {
	return s.Swap(nil, "")
}
