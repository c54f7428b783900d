package detector

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrSuperseded is returned when a newer Switch was requested before this
	// one could install its detector.
	ErrSuperseded = errors.New("model selection superseded")
	ErrClosed     = errors.New("detector switcher closed")
)

// Switcher loads models into a Slot one at a time. Only the most recent
// request is installed: an older load that finishes late is closed and
// discarded.
type Switcher struct {
	slot *Slot
	load Loader

	gen atomic.Uint64

	mu        sync.Mutex
	closed    bool
	installed string
}

func NewSwitcher(slot *Slot, load Loader) *Switcher {
	return &Switcher{slot: slot, load: load}
}

// Switch loads model and swaps it into the slot. On a load error the current
// detector stays in place.
func (s *Switcher) Switch(model string) error {
	g := s.gen.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.load == nil {
		return errors.New("no detector loader configured")
	}
	if s.gen.Load() != g {
		return ErrSuperseded
	}

	det, err := s.load(model)
	if err != nil {
		return err
	}
	if s.gen.Load() != g {
		det.Close()
		return ErrSuperseded
	}

	if err := s.slot.Swap(det, model); err != nil {
		return err
	}
	s.installed = model
	return nil
}

// Model is the name of the last model installed, kept after Close.
func (s *Switcher) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installed
}

// Close waits for a running load, discards it, and closes the slot. Later
// calls to Switch fail with ErrClosed.
func (s *Switcher) Close() error {
	s.gen.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.slot.Close()
}
