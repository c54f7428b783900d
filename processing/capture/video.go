package capture

import (
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"visors/processing/frame"
)

type Kind int

const (
	KindCamera Kind = iota
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindCamera:
		return "camera"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// VideoSource reads frames through OpenCV's VideoCapture.
type VideoSource struct {
	mu        sync.Mutex
	closeOnce sync.Once

	kind   Kind
	name   string
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	conv   gocv.Mat
	closed bool
}

// Camera is a live capture device. It does not implement Rewinder, so a
// failed read is retried on the next tick instead of ending the stream.
type Camera struct {
	vs *VideoSource
}

// OpenCamera opens a local capture device by index.
func OpenCamera(deviceID int) (*Camera, error) {
	vs, err := open(KindCamera, deviceID, "camera "+strconv.Itoa(deviceID))
	if err != nil {
		return nil, err
	}
	return &Camera{vs: vs}, nil
}

func (c *Camera) Read(dst *frame.Frame) bool { return c.vs.Read(dst) }
func (c *Camera) Close() error               { return c.vs.Close() }
func (c *Camera) Name() string               { return c.vs.Name() }

// OpenFile opens a video file. The first frame is read once to make sure the
// container is decodable, then the position is reset to frame zero.
func OpenFile(path string) (*VideoSource, error) {
	vs, err := open(KindFile, path, path)
	if err != nil {
		return nil, err
	}

	var probe frame.Frame
	if !vs.Read(&probe) {
		vs.Close()
		return nil, fmt.Errorf("read first frame of %s: %w", path, ErrNotOpened)
	}
	if err := vs.Rewind(); err != nil {
		vs.Close()
		return nil, err
	}
	return vs, nil
}

func open(kind Kind, device any, name string) (*VideoSource, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open %s %s: %w", kind, name, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open %s %s: %w", kind, name, ErrNotOpened)
	}

	return &VideoSource{
		kind: kind,
		name: name,
		vc:   vc,
		mat:  gocv.NewMat(),
		conv: gocv.NewMat(),
	}, nil
}

func (vs *VideoSource) Kind() Kind   { return vs.kind }
func (vs *VideoSource) Name() string { return vs.name }

// Read decodes the next frame into dst.
func (vs *VideoSource) Read(dst *frame.Frame) bool {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.closed || vs.vc == nil {
		return false
	}
	if ok := vs.vc.Read(&vs.mat); !ok || vs.mat.Empty() {
		return false
	}

	src := vs.mat
	switch vs.mat.Channels() {
	case 1:
		gocv.CvtColor(vs.mat, &vs.conv, gocv.ColorGrayToBGR)
		src = vs.conv
	case 4:
		gocv.CvtColor(vs.mat, &vs.conv, gocv.ColorBGRAToBGR)
		src = vs.conv
	}

	return dst.Set(src.Cols(), src.Rows(), src.ToBytes()) == nil
}

// Rewind seeks back to the first frame.
func (vs *VideoSource) Rewind() error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.closed || vs.vc == nil {
		return ErrClosed
	}
	vs.vc.Set(gocv.VideoCapturePosFrames, 0)
	return nil
}

// FPS reports the stream's nominal frame rate, 0 when unknown.
func (vs *VideoSource) FPS() float64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.closed || vs.vc == nil {
		return 0
	}
	return vs.vc.Get(gocv.VideoCaptureFPS)
}

// Close releases the capture handle. Calling it more than once is safe.
func (vs *VideoSource) Close() error {
	var err error
	vs.closeOnce.Do(func() {
		vs.mu.Lock()
		defer vs.mu.Unlock()

		vs.closed = true
		if vs.vc != nil {
			err = vs.vc.Close()
			vs.mat.Close()
			vs.conv.Close()
		}
	})
	return err
}
