package detector

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// gatedLoader hands out fakeDetectors. Loads of the gated model block until
// release is closed.
type gatedLoader struct {
	gated   string
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	built map[string]*fakeDetector
}

func newGatedLoader(gated string) *gatedLoader {
	return &gatedLoader{
		gated:   gated,
		started: make(chan struct{}),
		release: make(chan struct{}),
		built:   map[string]*fakeDetector{},
	}
}

func (l *gatedLoader) load(model string) (Detector, error) {
	if model == l.gated {
		close(l.started)
		<-l.release
	}
	if model == "broken" {
		return nil, errors.New("no such weights")
	}

	det := &fakeDetector{label: model}
	l.mu.Lock()
	l.built[model] = det
	l.mu.Unlock()
	return det, nil
}

func (l *gatedLoader) detector(model string) *fakeDetector {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.built[model]
}

func TestSwitcher_LatestSelectionWins(t *testing.T) {
	var slot Slot
	loader := newGatedLoader("yolo11x-seg")
	sw := NewSwitcher(&slot, loader.load)

	slowErr := make(chan error, 1)
	go func() { slowErr <- sw.Switch("yolo11x-seg") }()
	<-loader.started

	fastErr := make(chan error, 1)
	go func() { fastErr <- sw.Switch("yolo11n-seg") }()

	// Give the second request time to queue behind the first.
	time.Sleep(10 * time.Millisecond)
	close(loader.release)

	if err := <-slowErr; !errors.Is(err, ErrSuperseded) {
		t.Errorf("slow load error = %v, want ErrSuperseded", err)
	}
	if err := <-fastErr; err != nil {
		t.Fatalf("fast load error = %v", err)
	}

	if got := slot.Model(); got != "yolo11n-seg" {
		t.Errorf("slot model = %q, want yolo11n-seg", got)
	}
	if got := sw.Model(); got != "yolo11n-seg" {
		t.Errorf("installed model = %q, want yolo11n-seg", got)
	}
	if det := loader.detector("yolo11x-seg"); det == nil || det.closed.Load() != 1 {
		t.Error("discarded detector was not closed")
	}
}

func TestSwitcher_LoadFailureKeepsCurrent(t *testing.T) {
	var slot Slot
	loader := newGatedLoader("")
	sw := NewSwitcher(&slot, loader.load)

	if err := sw.Switch("yolo11n-seg"); err != nil {
		t.Fatal(err)
	}
	if err := sw.Switch("broken"); err == nil {
		t.Fatal("expected the broken model to fail")
	}

	if slot.Model() != "yolo11n-seg" || sw.Model() != "yolo11n-seg" {
		t.Errorf("model = %q/%q, want the previous one", slot.Model(), sw.Model())
	}
	if loader.detector("yolo11n-seg").closed.Load() != 0 {
		t.Error("current detector closed after a failed load")
	}
}

func TestSwitcher_CloseDiscardsPendingLoad(t *testing.T) {
	var slot Slot
	loader := newGatedLoader("yolo11l-seg")
	sw := NewSwitcher(&slot, loader.load)

	if err := sw.Switch("yolo11n-seg"); err != nil {
		t.Fatal(err)
	}

	pending := make(chan error, 1)
	go func() { pending <- sw.Switch("yolo11l-seg") }()
	<-loader.started

	closed := make(chan error, 1)
	go func() { closed <- sw.Close() }()

	time.Sleep(10 * time.Millisecond)
	close(loader.release)

	if err := <-pending; !errors.Is(err, ErrSuperseded) {
		t.Errorf("pending load error = %v, want ErrSuperseded", err)
	}
	if err := <-closed; err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if slot.Loaded() {
		t.Error("slot still holds a detector after Close")
	}
	if loader.detector("yolo11l-seg").closed.Load() != 1 {
		t.Error("late detector leaked past Close")
	}
	if loader.detector("yolo11n-seg").closed.Load() != 1 {
		t.Error("installed detector not closed")
	}
	if got := sw.Model(); got != "yolo11n-seg" {
		t.Errorf("Model() after Close = %q, want the last installed", got)
	}
	if err := sw.Switch("yolo11s-seg"); !errors.Is(err, ErrClosed) {
		t.Errorf("Switch after Close error = %v, want ErrClosed", err)
	}
}
