package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	xdraw "golang.org/x/image/draw"

	"visors/internal/models"
	"visors/processing/frame"
)

const defaultRemoteTimeout = 2 * time.Second

// RemoteConfig tunes the websocket detector.
type RemoteConfig struct {
	Timeout     time.Duration
	JPEGQuality int
	Logger      *slog.Logger
}

// wireDetection is one element of the JSON array the server answers with.
// Box is normalized [y1, x1, y2, x2]; Mask is an optional PNG covering the frame.
type wireDetection struct {
	Label      string    `json:"label"`
	ClassID    int       `json:"class_id"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"`
	Mask       []byte    `json:"mask,omitempty"`
}

// RemoteDetector sends each frame as a JPEG binary message to a detection
// server and waits for its JSON reply. A broken connection is dropped and
// redialed on the next call.
type RemoteDetector struct {
	serverURL string
	cfg       RemoteConfig
	dialer    *websocket.Dialer
	logger    *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewRemoteDetector(host, model string, cfg RemoteConfig) *RemoteDetector {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	if model != "" {
		u.RawQuery = url.Values{"model": {model}}.Encode()
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRemoteTimeout
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 85
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RemoteDetector{
		serverURL: u.String(),
		cfg:       cfg,
		dialer:    &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
		logger:    logger,
	}
}

func (d *RemoteDetector) URL() string { return d.serverURL }

func (d *RemoteDetector) Detect(ctx context.Context, f *frame.Frame) (*models.DetectionResult, error) {
	if f.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.ToRGBA(), &jpeg.Options{Quality: d.cfg.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(d.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		d.drop(err)
		return nil, fmt.Errorf("send frame: %w", err)
	}

	conn.SetReadDeadline(deadline)
	_, message, err := conn.ReadMessage()
	if err != nil {
		d.drop(err)
		return nil, fmt.Errorf("read result: %w", err)
	}

	var wire []wireDetection
	if err := json.Unmarshal(message, &wire); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	return toResult(wire, image.Pt(f.Width, f.Height)), nil
}

func (d *RemoteDetector) connect(ctx context.Context) (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}

	d.logger.Info("connecting to detector server", "url", d.serverURL)
	conn, _, err := d.dialer.DialContext(ctx, d.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", d.serverURL, err)
	}
	d.logger.Info("connected to detection server")

	d.conn = conn
	return conn, nil
}

func (d *RemoteDetector) drop(cause error) {
	if d.conn == nil {
		return
	}
	d.logger.Warn("connection lost", "error", cause)
	d.conn.Close()
	d.conn = nil
}

func (d *RemoteDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func toResult(wire []wireDetection, size image.Point) *models.DetectionResult {
	res := &models.DetectionResult{FrameSize: size}
	fw, fh := float32(size.X), float32(size.Y)
	bounds := image.Rect(0, 0, size.X, size.Y)

	for _, w := range wire {
		if len(w.Box) != 4 {
			continue
		}
		det := models.Detection{
			ClassID:    w.ClassID,
			Label:      w.Label,
			Confidence: w.Confidence,
			Box: image.Rect(
				int(w.Box[1]*fw),
				int(w.Box[0]*fh),
				int(w.Box[3]*fw),
				int(w.Box[2]*fh),
			).Intersect(bounds),
		}
		if len(w.Mask) > 0 {
			det.Mask = decodeMask(w.Mask, bounds)
		}
		res.Detections = append(res.Detections, det)
	}
	return res
}

// decodeMask turns a PNG into an alpha mask at frame resolution. Any non-zero
// gray level counts as inside.
func decodeMask(data []byte, bounds image.Rectangle) *image.Alpha {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	gray := image.NewGray(bounds)
	xdraw.NearestNeighbor.Scale(gray, bounds, img, img.Bounds(), xdraw.Src, nil)

	mask := image.NewAlpha(bounds)
	for i, v := range gray.Pix {
		if v > 0 {
			mask.Pix[i] = 0xff
		}
	}
	return mask
}
